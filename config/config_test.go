package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "LLM_PROVIDER", "EMBEDDING_PROVIDER", "ENABLE_LOCAL_FALLBACK",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVAL_K", "INDEX_BACKEND", "POSTGRES_DSN",
		"LLM_TIMEOUT", "VECTOR_DB_PATH", EnvConfigPath,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "whisper-1", cfg.STT.HostedModel)
	assert.Equal(t, "base", cfg.STT.LocalModel)
	assert.True(t, cfg.STT.EnableLocalFallback)
	assert.Equal(t, 1000, cfg.Index.ChunkSize)
	assert.Equal(t, 200, cfg.Index.ChunkOverlap)
	assert.Equal(t, 3, cfg.Index.RetrievalK)
	assert.Equal(t, IndexBackendFile, cfg.Index.Backend)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "voicerag.toml")
	content := `
data_dir = "docs"

[index]
backend = "file"
path = "/tmp/idx"
chunk_size = 500
chunk_overlap = 50
retrieval_k = 5

[llm]
provider = "openai"
model = "gpt-4o-mini"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("RETRIEVAL_K", "7")
	t.Setenv("LLM_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docs", cfg.DataDir)
	assert.Equal(t, "/tmp/idx", cfg.Index.Path)
	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.Equal(t, 50, cfg.Index.ChunkOverlap)
	assert.Equal(t, 7, cfg.Index.RetrievalK, "environment wins over the file")
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.OpenAIAPIKey = "sk-test"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("overlap must be smaller than size", func(t *testing.T) {
		cfg := valid()
		cfg.Index.ChunkOverlap = cfg.Index.ChunkSize
		assert.ErrorContains(t, cfg.Validate(), "chunk overlap")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.LLM.Provider = "anthropic"
		assert.ErrorContains(t, cfg.Validate(), "Provider")
	})

	t.Run("postgres backend needs dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Index.Backend = IndexBackendPostgres
		assert.ErrorContains(t, cfg.Validate(), "POSTGRES_DSN")
	})

	t.Run("openai provider needs key", func(t *testing.T) {
		cfg := valid()
		cfg.OpenAIAPIKey = ""
		assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")
	})

	t.Run("fully local without key", func(t *testing.T) {
		cfg := valid()
		cfg.OpenAIAPIKey = ""
		cfg.LLM.Provider = ProviderOllama
		cfg.Embeddings.Provider = ProviderLocal
		require.NoError(t, cfg.Validate())

		cfg.STT.EnableLocalFallback = false
		assert.ErrorContains(t, cfg.Validate(), "enable local fallback")
	})
}
