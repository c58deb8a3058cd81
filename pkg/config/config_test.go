package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 10, cfg.Retrieval.MaxChunks)
	assert.Equal(t, "rrf", cfg.Retrieval.Reranker)
	assert.Equal(t, 2, cfg.Retrieval.BFSDepth)
}

func TestLoadEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/rg")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "postgres://localhost/rg", cfg.Postgres.URL)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingLLMKey)

	cfg.LLM.APIKey = "sk-test"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingPostgres)

	cfg.Postgres.URL = "postgres://localhost/rg"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingNeo4j)

	cfg.Neo4j.URI = "bolt://localhost:7687"
	assert.NoError(t, cfg.Validate())
}

func TestWriteDefault(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "relaygraph.yaml")

	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "retrieval:")
	assert.Contains(t, string(data), "rrf")

	assert.Error(t, WriteDefault(path), "must not overwrite an existing file")
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "relaygraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  max_chunks: 25\nlog:\n  level: debug\n"), 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Retrieval.MaxChunks)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15, cfg.Retrieval.MaxEntities, "unset keys keep defaults")
}
