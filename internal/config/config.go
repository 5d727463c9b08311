package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rag-chatbot/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	DefaultConfigPath = "./configs/config.yaml"
)

type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
	Index     IndexConfig     `yaml:"index"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Timeout   time.Duration   `yaml:"timeout"`
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Key        string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
	Debug   bool   `yaml:"debug"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	GinMode     string        `yaml:"gin_mode"`
	MaxUploadMB int64         `yaml:"max_upload_mb"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	UploadDir   string        `yaml:"upload_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the documented defaults
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   ProviderOpenAI,
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  512,
		},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o",
		},
		RAG: RAGConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         models.DefaultTopK,
		},
		Index: IndexConfig{
			Backend: BackendChromem,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			GinMode:     "release",
			MaxUploadMB: 20,
			SessionTTL:  30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Timeout: 60 * time.Second,
	}
}

// LoadConfig reads path over the defaults; a missing file keeps the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", models.ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	key := os.Getenv("OPENAI_API_KEY")
	if c.Embedding.Key == "" {
		c.Embedding.Key = key
	}
	if c.LLM.Key == "" {
		c.LLM.Key = key
	}
}

func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk_size %d, chunk_overlap %d", models.ErrChunk, c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", models.ErrInvalidConfig)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", models.ErrInvalidConfig)
	}
	for _, p := range []string{c.Embedding.Provider, c.LLM.Provider} {
		if p != ProviderOpenAI && p != ProviderOllama {
			return fmt.Errorf("%w: unknown provider %q", models.ErrInvalidConfig, p)
		}
	}
	switch c.Index.Backend {
	case BackendChromem:
	case BackendPgvector:
		if c.Index.DSN == "" {
			return fmt.Errorf("%w: index.dsn is required for the pgvector backend", models.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index backend %q", models.ErrInvalidConfig, c.Index.Backend)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
