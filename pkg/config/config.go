// Package config loads application configuration from file and
// environment via viper. Structural defaults live here; component
// packages keep their own algorithmic defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// PostgresConfig holds the relational chunk store configuration.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// Neo4jConfig holds the graph store configuration.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// LLMConfig holds chat capability configuration.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"`
	// Breaker enables circuit breaking around the chat client.
	Breaker bool `mapstructure:"breaker"`
}

// EmbeddingConfig holds embedding capability configuration.
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
	// CachePath enables the on-disk embedding cache when set; empty
	// keeps the cache in memory, "off" disables it.
	CachePath string `mapstructure:"cache_path"`
}

// IngestionConfig holds write-path tuning.
type IngestionConfig struct {
	ChunkSize             int `mapstructure:"chunk_size"`
	ChunkOverlap          int `mapstructure:"chunk_overlap"`
	ExtractionConcurrency int `mapstructure:"extraction_concurrency"`
	MaxExtractionAttempts int `mapstructure:"max_extraction_attempts"`
}

// RetrievalConfig holds read-path defaults, overridable per request.
type RetrievalConfig struct {
	MaxChunks             int     `mapstructure:"max_chunks"`
	MaxEntities           int     `mapstructure:"max_entities"`
	MaxGraphTriples       int     `mapstructure:"max_graph_triples"`
	ChunkThreshold        float64 `mapstructure:"chunk_threshold"`
	Reranker              string  `mapstructure:"reranker"`
	BFSDepth              int     `mapstructure:"bfs_depth"`
	RRFK                  int     `mapstructure:"rrf_k"`
	MMRLambda             float64 `mapstructure:"mmr_lambda"`
	CrossEncoderThreshold float64 `mapstructure:"cross_encoder_threshold"`
}

var (
	// ErrMissingLLMKey means no chat credential was configured.
	ErrMissingLLMKey = errors.New("config: llm api key is required")
	// ErrMissingPostgres means no chunk store connection was configured.
	ErrMissingPostgres = errors.New("config: postgres url is required")
	// ErrMissingNeo4j means no graph store connection was configured.
	ErrMissingNeo4j = errors.New("config: neo4j uri is required")
)

// Load reads configuration from the optional config file already bound to
// viper, applies defaults and environment overrides, and returns the
// result. Validation is separate so commands that never reach the stores
// can still load config.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)
	return config, nil
}

// Validate checks the fields every store-touching command needs.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingLLMKey
	}
	if c.Postgres.URL == "" {
		return ErrMissingPostgres
	}
	if c.Neo4j.URI == "" {
		return ErrMissingNeo4j
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_retries", 3)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.batch_size", 100)

	viper.SetDefault("ingestion.chunk_size", 1200)
	viper.SetDefault("ingestion.chunk_overlap", 200)
	viper.SetDefault("ingestion.extraction_concurrency", 4)
	viper.SetDefault("ingestion.max_extraction_attempts", 3)

	viper.SetDefault("retrieval.max_chunks", 10)
	viper.SetDefault("retrieval.max_entities", 15)
	viper.SetDefault("retrieval.max_graph_triples", 20)
	viper.SetDefault("retrieval.chunk_threshold", 0.3)
	viper.SetDefault("retrieval.reranker", "rrf")
	viper.SetDefault("retrieval.bfs_depth", 2)
	viper.SetDefault("retrieval.rrf_k", 60)
	viper.SetDefault("retrieval.mmr_lambda", 0.5)
	viper.SetDefault("retrieval.cross_encoder_threshold", 0.5)
}

func overrideWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = key
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Postgres.URL = url
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Neo4j.Password = pass
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}

// WriteDefault writes a starter YAML config to path, failing if the file
// already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}

	setDefaults()
	starter := &Config{}
	if err := viper.Unmarshal(starter); err != nil {
		return fmt.Errorf("unable to build default config: %w", err)
	}

	out, err := yaml.Marshal(configToYAML(starter))
	if err != nil {
		return fmt.Errorf("unable to render default config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// configToYAML rebuilds the nested map so yaml keys match the
// mapstructure tags instead of Go field names.
func configToYAML(c *Config) map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"server": map[string]any{
			"host": c.Server.Host,
			"port": c.Server.Port,
			"mode": c.Server.Mode,
		},
		"postgres": map[string]any{
			"url": c.Postgres.URL,
		},
		"neo4j": map[string]any{
			"uri":      c.Neo4j.URI,
			"username": c.Neo4j.Username,
			"password": c.Neo4j.Password,
			"database": c.Neo4j.Database,
		},
		"llm": map[string]any{
			"api_key":     c.LLM.APIKey,
			"model":       c.LLM.Model,
			"base_url":    c.LLM.BaseURL,
			"temperature": c.LLM.Temperature,
			"max_tokens":  c.LLM.MaxTokens,
			"max_retries": c.LLM.MaxRetries,
			"breaker":     c.LLM.Breaker,
		},
		"embedding": map[string]any{
			"api_key":    c.Embedding.APIKey,
			"model":      c.Embedding.Model,
			"base_url":   c.Embedding.BaseURL,
			"dimensions": c.Embedding.Dimensions,
			"batch_size": c.Embedding.BatchSize,
			"cache_path": c.Embedding.CachePath,
		},
		"ingestion": map[string]any{
			"chunk_size":              c.Ingestion.ChunkSize,
			"chunk_overlap":           c.Ingestion.ChunkOverlap,
			"extraction_concurrency":  c.Ingestion.ExtractionConcurrency,
			"max_extraction_attempts": c.Ingestion.MaxExtractionAttempts,
		},
		"retrieval": map[string]any{
			"max_chunks":              c.Retrieval.MaxChunks,
			"max_entities":            c.Retrieval.MaxEntities,
			"max_graph_triples":       c.Retrieval.MaxGraphTriples,
			"chunk_threshold":         c.Retrieval.ChunkThreshold,
			"reranker":                c.Retrieval.Reranker,
			"bfs_depth":               c.Retrieval.BFSDepth,
			"rrf_k":                   c.Retrieval.RRFK,
			"mmr_lambda":              c.Retrieval.MMRLambda,
			"cross_encoder_threshold": c.Retrieval.CrossEncoderThreshold,
		},
	}
}
