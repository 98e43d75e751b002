package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize = 1200
	DefaultTopK      = 3

	defaultAddr        = ":7000"
	defaultMaxUploadMB = 32
	defaultTempDir     = "temp"
	defaultAPIKeyEnv   = "OPENROUTER_API_KEY"
	defaultLLMBaseURL  = "https://openrouter.ai/api/v1"
	defaultLLMModel    = "openai/gpt-4o-mini"
	defaultEmbedURL    = "http://localhost:11434"
	defaultEmbedModel  = "all-minilm"
	defaultBatchSize   = 64
	defaultTable       = "document_chunks"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	RAG      RAGConfig      `yaml:"rag"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	LLM      LLMConfig      `yaml:"llm"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Mode        string `yaml:"mode"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RAGConfig controls chunking and retrieval.
type RAGConfig struct {
	ChunkSize int    `yaml:"chunk_size"`
	TopK      int    `yaml:"top_k"`
	TempDir   string `yaml:"temp_dir"`
}

// LLMConfig describes one model endpoint. It is used both for the embedding
// model and for the chat completion model.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
	// Key is resolved from APIKeyEnv at load time, never read from YAML.
	Key string `yaml:"-"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig is only used by the pgvector index backend.
type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env"`
	Table       string `yaml:"table"`
	Debug       bool   `yaml:"debug"`
	Password    string `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and resolves
// secrets from the environment. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyDefaults(&cfg)
	cfg.resolveSecrets()
	return &cfg, nil
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.LLM.Key == "" {
		return fmt.Errorf("missing completion API key: set %s", c.LLM.APIKeyEnv)
	}
	if c.EmbedLLM.Provider == "openai" && c.EmbedLLM.Key == "" && c.EmbedLLM.APIKeyEnv != "" {
		return fmt.Errorf("missing embedding API key: set %s", c.EmbedLLM.APIKeyEnv)
	}
	switch c.Index.Backend {
	case "flat", "chromem":
	case "pgvector":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the pgvector index")
		}
	default:
		return fmt.Errorf("unknown index backend: %s", c.Index.Backend)
	}
	switch c.EmbedLLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.EmbedLLM.Provider)
	}
	return nil
}

func (c *Config) resolveSecrets() {
	if c.LLM.APIKeyEnv != "" {
		c.LLM.Key = os.Getenv(c.LLM.APIKeyEnv)
	}
	if c.EmbedLLM.APIKeyEnv != "" {
		c.EmbedLLM.Key = os.Getenv(c.EmbedLLM.APIKeyEnv)
	}
	if c.Database.PasswordEnv != "" {
		c.Database.Password = os.Getenv(c.Database.PasswordEnv)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.TempDir == "" {
		cfg.RAG.TempDir = defaultTempDir
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == "ollama" {
		cfg.EmbedLLM.BaseURL = defaultEmbedURL
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultEmbedModel
	}
	if cfg.EmbedLLM.BatchSize <= 0 {
		cfg.EmbedLLM.BatchSize = defaultBatchSize
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultLLMModel
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultAPIKeyEnv
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "flat"
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = defaultTable
	}
}
