package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Providers   []ProviderConfig  `json:"providers"`
	Agent       AgentConfig       `json:"agent"`
	RAG         RAGConfig         `json:"rag"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	Qdrant      QdrantConfig      `json:"qdrant"`
	Redis       RedisConfig       `json:"redis"`
	Postgres    PostgresConfig    `json:"postgres"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // openai|anthropic
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// AgentConfig tunes the thinking pipeline. The thinking model runs the
// planning/decision/synthesis calls; the response model writes the final
// answer, usually at a lower temperature.
type AgentConfig struct {
	Provider            string  `json:"provider"` // provider ID from Providers
	ResponseModel       string  `json:"response_model"`
	ThinkingModel       string  `json:"thinking_model"`
	ThinkingTemperature float64 `json:"thinking_temperature"`
	ResponseTemperature float64 `json:"response_temperature"`
	MaxTokens           int     `json:"max_tokens"`
}

type RAGConfig struct {
	ChunkSize       int `json:"chunk_size"`
	ChunkOverlap    int `json:"chunk_overlap"`
	TopK            int `json:"top_k"`
	MaxContextChars int `json:"max_context_chars"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

type VectorStoreConfig struct {
	Backend    string `json:"backend"` // "qdrant" or "memory"
	Collection string `json:"collection"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Agent.ThinkingTemperature == 0 {
		c.Agent.ThinkingTemperature = 0.7
	}
	if c.Agent.ResponseTemperature == 0 {
		c.Agent.ResponseTemperature = 0.3
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 2000
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = 4000
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "memory"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "knowledge"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 384
	}
}
