package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the ConvergeAI core service.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol). All providers
	// (zai, deepseek, openai, siliconflow, ollama) use the same shape.
	ALLMProvider string
	ALLMAPIKey   string
	ALLMBaseURL  string
	ALLMModel    string
	ALLMTimeout  int // seconds

	// Embedding configuration, backing the policy corpus vector index.
	AIEmbeddingProvider string
	AIEmbeddingModel    string
	AIEmbeddingAPIKey   string
	AIEmbeddingBaseURL  string

	// Intent classifier LLM fallback configuration (step 3 of classification).
	AIIntentProvider string
	AIIntentModel    string
	AIIntentAPIKey   string
	AIIntentBaseURL  string

	Mode        string // demo | dev | prod
	DSN         string
	Driver      string // postgres only
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int
	AIEnabled   bool

	// ConfigDir points at the runtime-config YAML directory (intent
	// catalog, entity types, validation rules, SLA/threshold values).
	ConfigDir string
}

var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-5.2",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.ALLMAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ALLMProvider = getEnvOrDefault("CONVERGEAI_LLM_PROVIDER", "zai")
	p.ALLMAPIKey = getEnvOrDefault("CONVERGEAI_LLM_API_KEY", "")
	p.ALLMBaseURL = getEnvOrDefault("CONVERGEAI_LLM_BASE_URL", "")
	p.ALLMModel = getEnvOrDefault("CONVERGEAI_LLM_MODEL", "")
	p.ALLMTimeout = getEnvOrDefaultInt("CONVERGEAI_LLM_TIMEOUT_SECONDS", 30)

	p.AIEnabled = p.ALLMAPIKey != ""

	if p.ALLMProvider != "" {
		if _, ok := llmProviderDefaults[p.ALLMProvider]; !ok {
			slog.Warn("unknown LLM provider, using default: zai", "provider", p.ALLMProvider)
			p.ALLMProvider = "zai"
		}
	}
	if p.ALLMBaseURL == "" || p.ALLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.ALLMProvider]; ok {
			if p.ALLMBaseURL == "" {
				p.ALLMBaseURL = defaults.BaseURL
			}
			if p.ALLMModel == "" {
				p.ALLMModel = defaults.Model
			}
		}
	}

	p.AIEmbeddingProvider = getEnvOrDefault("CONVERGEAI_EMBEDDING_PROVIDER", "siliconflow")
	p.AIEmbeddingModel = getEnvOrDefault("CONVERGEAI_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.AIEmbeddingAPIKey = getEnvOrDefault("CONVERGEAI_EMBEDDING_API_KEY", "")
	p.AIEmbeddingBaseURL = getEnvOrDefault("CONVERGEAI_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")

	p.AIIntentProvider = getEnvOrDefault("CONVERGEAI_INTENT_PROVIDER", "siliconflow")
	p.AIIntentModel = getEnvOrDefault("CONVERGEAI_INTENT_MODEL", "Qwen/Qwen2.5-7B-Instruct")
	p.AIIntentAPIKey = getEnvOrDefault("CONVERGEAI_INTENT_API_KEY", "")
	p.AIIntentBaseURL = getEnvOrDefault("CONVERGEAI_INTENT_BASE_URL", "https://api.siliconflow.cn/v1")

	p.ConfigDir = getEnvOrDefault("CONVERGEAI_CONFIG_DIR", "config")
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes mode and checks the data directory exists.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "postgres"
	}
	if p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only postgres is supported", p.Driver)
	}

	return nil
}
