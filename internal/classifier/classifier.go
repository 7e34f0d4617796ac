// Package classifier implements the three-step intent classification
// contract: a cached-result lookup, a deterministic pattern match, and an
// LLM fallback, in that order. Each step is cheaper and less precise than
// the one after it, so the classifier always tries the cheapest step first
// and only pays for an LLM round trip when the message is genuinely
// ambiguous.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/store"
	"github.com/convergeai/core/store/cache"
)

// Method reports which step of the three-step contract produced a Result.
type Method string

const (
	MethodCache    Method = "cache"
	MethodPattern  Method = "pattern"
	MethodLLM      Method = "llm"
	MethodFallback Method = "fallback"
)

// multiIntentSignalWords forces the pattern-match step to defer to the LLM
// even on a high-confidence single match, since the message likely carries
// a second intent the regex scan can't see.
var multiIntentSignalWords = []string{"and", "also", "plus", "then", "additionally", "by the way"}

// IntentGuess is one candidate in a classification result.
type IntentGuess struct {
	Intent     string            `json:"intent"`
	Confidence float32           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
}

// Result is the outcome of a Classify call.
type Result struct {
	Intents               []IntentGuess
	Primary               string
	ContextUsed           bool
	Method                Method
	RequiresClarification bool
}

// ActiveState summarizes the fields of the caller's active dialog state the
// classifier needs, without taking a dependency on the dialog package.
type ActiveState struct {
	TargetIntent   string
	ExpectedEntity string
	Collecting     bool // true iff state kind == collecting_info
}

// Classifier implements the 3-step contract.
type Classifier struct {
	catalog  *catalog.Registry
	llmSvc   llm.Service
	cache    *cache.Cache
	feedback store.Driver // optional; nil disables feedback persistence
	inflight singleflight.Group
}

// Config configures a Classifier.
type Config struct {
	Catalog      *catalog.Registry
	LLM          llm.Service
	Feedback     store.Driver
	CacheTTL     time.Duration
	CacheMaxSize int
}

// New constructs a Classifier. Catalog and LLM are required; Feedback may be
// nil to disable the feedback-loop persistence step.
func New(cfg Config) *Classifier {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxSize := cfg.CacheMaxSize
	if maxSize <= 0 {
		maxSize = 2000
	}

	return &Classifier{
		catalog:  cfg.Catalog,
		llmSvc:   cfg.LLM,
		cache:    cache.New(cache.Config{DefaultTTL: ttl, MaxItems: maxSize}),
		feedback: cfg.Feedback,
	}
}

// Classify maps a message, given conversation history and an optional
// active dialog state, to an ordered list of (intent, confidence, entities)
// guesses.
func (c *Classifier) Classify(ctx context.Context, message string, history []llm.Message, active *ActiveState) (*Result, error) {
	key := cacheKey(message, active)
	if cached, ok := c.cache.Get(key); ok {
		result := cached.(Result)
		result.Method = MethodCache
		return &result, nil
	}

	if result, ok := c.matchPattern(message, active); ok {
		c.cache.Set(key, *result)
		return result, nil
	}

	// singleflight collapses concurrent identical lookups (e.g. a retried
	// request racing the original) into one LLM round trip.
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		return c.classifyWithLLM(ctx, message, history, active)
	})
	if err != nil {
		slog.WarnContext(ctx, "llm classification failed, falling back", "error", err)
		return c.fallback(), nil
	}

	result := v.(*Result)
	c.cache.SetTTL(key, *result, 30*time.Minute)
	return result, nil
}

// matchPattern implements step 1. It returns ok=false whenever the message
// doesn't meet every condition for an immediate, high-confidence return —
// the caller then proceeds to the LLM step.
func (c *Classifier) matchPattern(message string, active *ActiveState) (*Result, bool) {
	lower := strings.ToLower(message)
	for _, word := range multiIntentSignalWords {
		if strings.Contains(lower, word) {
			return nil, false
		}
	}

	var match *catalog.Intent
	var matchCount int
	for _, in := range c.catalog.Intents() {
		if matchesIntent(in, message, lower) {
			matchCount++
			match = in
		}
	}
	if matchCount != 1 || match == nil {
		return nil, false
	}

	// Context-aware rule: while a collecting_info state is active, a single
	// pattern hit for a different intent is not returned from this step;
	// the message goes on to LLM classification with the active state as
	// context instead.
	if active != nil && active.Collecting && active.TargetIntent != "" && active.TargetIntent != match.Kind {
		return nil, false
	}

	return &Result{
		Intents:     []IntentGuess{{Intent: match.Kind, Confidence: 0.90, Entities: map[string]string{}}},
		Primary:     match.Kind,
		ContextUsed: active != nil,
		Method:      MethodPattern,
	}, true
}

func matchesIntent(in *catalog.Intent, raw, lower string) bool {
	for _, re := range in.CompiledPatterns() {
		if re.MatchString(raw) {
			return true
		}
	}
	for _, kw := range in.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// llmClassificationOutput is the structured-output shape step 2 requires
// from the model. The prompt instructs the model to emit exactly this JSON.
type llmClassificationOutput struct {
	Intents       []IntentGuess `json:"intents"`
	PrimaryIntent string        `json:"primary_intent"`
	ContextUsed   bool          `json:"context_used"`
}

func (c *Classifier) classifyWithLLM(ctx context.Context, message string, history []llm.Message, active *ActiveState) (*Result, error) {
	messages := c.buildLLMPrompt(message, history, active)

	raw, _, err := c.llmSvc.Chat(ctx, messages, llm.TemperatureClassification)
	if err != nil {
		return nil, fmt.Errorf("llm classification call: %w", err)
	}

	var out llmClassificationOutput
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse llm classification output: %w", err)
	}

	// Schema validator: coerce a nil/omitted entities map to an empty one so
	// downstream callers never nil-deref.
	for i := range out.Intents {
		if out.Intents[i].Entities == nil {
			out.Intents[i].Entities = map[string]string{}
		}
	}
	if len(out.Intents) == 0 || out.PrimaryIntent == "" {
		return nil, fmt.Errorf("llm classification output missing intents")
	}

	return &Result{
		Intents:     out.Intents,
		Primary:     out.PrimaryIntent,
		ContextUsed: out.ContextUsed,
		Method:      MethodLLM,
	}, nil
}

func (c *Classifier) buildLLMPrompt(message string, history []llm.Message, active *ActiveState) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You classify a user message into one or more intents from a fixed catalog. ")
	sys.WriteString("Respond with strict JSON only: {\"intents\":[{\"intent\":string,\"confidence\":number 0-1,\"entities\":object}],\"primary_intent\":string,\"context_used\":bool}. ")
	sys.WriteString("Known intents:\n")
	for _, in := range c.catalog.Intents() {
		fmt.Fprintf(&sys, "- %s (%s): requires %v\n", in.Kind, in.DisplayName, in.RequiredEntities)
	}
	sys.WriteString("Reserved intents not in the catalog: greeting, general_query, out_of_scope, unclear_intent.\n")
	if active != nil && active.Collecting {
		fmt.Fprintf(&sys, "An active slot-filling flow for intent %q is in progress, expecting entity %q; prefer this intent unless the message clearly signals a different one.\n", active.TargetIntent, active.ExpectedEntity)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: sys.String()})
	// Only the last 10 turns are relevant per the rolling session window.
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}

// extractJSON trims leading/trailing prose a model sometimes wraps around
// its JSON despite instructions, by slicing to the outermost braces.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func (c *Classifier) fallback() *Result {
	return &Result{
		Intents:               []IntentGuess{{Intent: catalog.IntentUnclear, Confidence: 0.5, Entities: map[string]string{}}},
		Primary:               catalog.IntentUnclear,
		Method:                MethodFallback,
		RequiresClarification: true,
	}
}

// RecordFeedback persists an operator or downstream correction against a
// prior classification, closing the loop the pattern step can later learn
// from informally (operators audit ByIntent/BySource stats; there is no
// automatic weight adjustment in this core).
func (c *Classifier) RecordFeedback(ctx context.Context, fb *store.ClassifierFeedback) error {
	if c.feedback == nil {
		return nil
	}
	return c.feedback.CreateClassifierFeedback(ctx, &store.CreateClassifierFeedback{
		UserID:    fb.UserID,
		Input:     fb.Input,
		Predicted: fb.Predicted,
		Actual:    fb.Actual,
		Outcome:   fb.Outcome,
		Source:    fb.Source,
		Timestamp: fb.Timestamp,
	})
}

func cacheKey(message string, active *ActiveState) string {
	h := sha256.New()
	h.Write([]byte(message))
	if active != nil {
		h.Write([]byte("|"))
		h.Write([]byte(active.TargetIntent))
		h.Write([]byte("|"))
		h.Write([]byte(active.ExpectedEntity))
	}
	return "classify:" + hex.EncodeToString(h.Sum(nil)[:8])
}
