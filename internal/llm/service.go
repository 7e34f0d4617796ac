// Package llm wraps an OpenAI-compatible chat completion endpoint behind a
// small Service contract consumed by the intent classifier, entity
// extractor, question generator, and policy agent.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Message represents a single chat turn sent to the model.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// CallStats reports token usage and timing for a single call, used for the
// audit log and operational metrics.
type CallStats struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	TotalDurationMs  int64
}

// Service is the LLM contract every upstream component depends on.
type Service interface {
	// Chat performs one synchronous completion at the given temperature.
	Chat(ctx context.Context, messages []Message, temperature float32) (string, *CallStats, error)

	// Warmup sends a lightweight request to establish the connection.
	Warmup(ctx context.Context)
}

// Config configures the OpenAI-compatible client.
type Config struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	MaxTokens      int
	Timeout        int // seconds
	RequestsPerSec float64 // outbound rate limit; 0 disables limiting
}

type service struct {
	client    *openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
}

var providerDefaultBaseURL = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"zai":         "https://open.bigmodel.cn/api/paas/v4",
	"openai":      "https://api.openai.com/v1",
	"ollama":      "http://localhost:11434",
}

// NewService builds a Service from Config.
func NewService(cfg *Config) (Service, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = providerDefaultBaseURL[cfg.Provider]
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient(cfg.Timeout)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &service{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: maxTokens,
		limiter:   limiter,
	}, nil
}

func newHTTPClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (s *service) Chat(ctx context.Context, messages []Message, temperature float32) (string, *CallStats, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", nil, fmt.Errorf("llm rate limiter: %w", err)
		}
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    chatMessages,
		MaxTokens:   s.maxTokens,
		Temperature: temperature,
	})
	duration := time.Since(start)
	if err != nil {
		return "", nil, fmt.Errorf("llm chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("llm chat completion: empty choices")
	}

	stats := &CallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		TotalDurationMs:  duration.Milliseconds(),
	}

	return resp.Choices[0].Message.Content, stats, nil
}

func (s *service) Warmup(ctx context.Context) {
	_, _, err := s.Chat(ctx, []Message{{Role: "user", Content: "ping"}}, 0)
	if err != nil {
		slog.WarnContext(ctx, "llm warmup failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "llm warmup succeeded")
}

// Temperature bands used consistently across callers: low temperature for
// deterministic classification/extraction, higher for free-form generation.
const (
	TemperatureClassification float32 = 0.3
	TemperatureExtraction     float32 = 0.2
	TemperatureGeneration     float32 = 0.7
	TemperaturePolicyAnswer   float32 = 0.3
)
