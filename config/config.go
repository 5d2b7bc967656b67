// Package config assembles runtime settings from defaults, an optional TOML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	// ProviderLocal runs embeddings in-process.
	ProviderLocal = "local"

	IndexBackendFile     = "file"
	IndexBackendPostgres = "postgres"
)

// EnvConfigPath names the variable consulted when Load receives no path.
const EnvConfigPath = "VOICERAG_CONFIG"

type Config struct {
	OpenAIAPIKey  string `toml:"-"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	OllamaHost    string `toml:"ollama_host"`
	DataDir       string `toml:"data_dir"`

	PostgresDSN string `toml:"postgres_dsn"`
	Neo4jURI    string `toml:"neo4j_uri"`
	Neo4jUser   string `toml:"neo4j_user"`
	Neo4jPass   string `toml:"-"`

	LLM        LLMConfig       `toml:"llm"`
	Embeddings EmbeddingConfig `toml:"embeddings"`
	STT        STTConfig       `toml:"stt"`
	Index      IndexConfig     `toml:"index"`
	Server     ServerConfig    `toml:"server"`
	Tools      ToolsConfig     `toml:"tools"`
	Log        LogConfig       `toml:"log"`

	MaxRetries int           `toml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `toml:"-"`
}

type LLMConfig struct {
	Provider string        `toml:"provider" validate:"required,oneof=openai ollama"`
	Model    string        `toml:"model" validate:"required"`
	Timeout  time.Duration `toml:"-"`
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider" validate:"required,oneof=openai ollama local"`
	Model     string `toml:"model" validate:"required"`
	Dimension int    `toml:"dimension" validate:"gte=0"`
	// ModelDir caches downloaded models for the local provider.
	ModelDir  string `toml:"model_dir"`
	BatchSize int    `toml:"batch_size" validate:"gt=0"`
	Workers   int    `toml:"workers" validate:"gt=0"`
}

type STTConfig struct {
	HostedModel         string        `toml:"hosted_model" validate:"required"`
	LocalModel          string        `toml:"local_model" validate:"required"`
	LocalBaseURL        string        `toml:"local_base_url"`
	EnableLocalFallback bool          `toml:"enable_local_fallback"`
	Timeout             time.Duration `toml:"-"`
}

type IndexConfig struct {
	Backend      string `toml:"backend" validate:"required,oneof=file postgres"`
	Path         string `toml:"path" validate:"required"`
	ChunkSize    int    `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int    `toml:"chunk_overlap" validate:"gte=0"`
	RetrievalK   int    `toml:"retrieval_k" validate:"gt=0"`
}

type ServerConfig struct {
	Addr           string        `toml:"addr" validate:"required"`
	ReadTimeout    time.Duration `toml:"-"`
	WriteTimeout   time.Duration `toml:"-"`
	RequestTimeout time.Duration `toml:"-"`
	MaxUploadBytes int64         `toml:"max_upload_bytes" validate:"gt=0"`
}

type ToolsConfig struct {
	GeocodingURL string        `toml:"geocoding_url" validate:"required,url"`
	ForecastURL  string        `toml:"forecast_url" validate:"required,url"`
	Timeout      time.Duration `toml:"-"`
	// RatePerSecond caps outbound weather lookups.
	RatePerSecond float64 `toml:"rate_per_second" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// Default returns the baseline configuration before any file or environment
// overrides are applied.
func Default() Config {
	return Config{
		OllamaHost: "http://localhost:11434",
		DataDir:    "data",
		Neo4jUser:  "neo4j",
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o",
			Timeout:  60 * time.Second,
		},
		Embeddings: EmbeddingConfig{
			Provider:  ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			ModelDir:  "models",
			BatchSize: 64,
			Workers:   4,
		},
		STT: STTConfig{
			HostedModel:         "whisper-1",
			LocalModel:          "base",
			LocalBaseURL:        "http://localhost:9000/v1",
			EnableLocalFallback: true,
			Timeout:             120 * time.Second,
		},
		Index: IndexConfig{
			Backend:      IndexBackendFile,
			Path:         "vector_index",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			RetrievalK:   3,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   180 * time.Second,
			RequestTimeout: 170 * time.Second,
			MaxUploadBytes: 25 << 20,
		},
		Tools: ToolsConfig{
			GeocodingURL:  "https://geocoding-api.open-meteo.com/v1/search",
			ForecastURL:   "https://api.open-meteo.com/v1/forecast",
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Load builds a validated Config. path may be empty, in which case
// VOICERAG_CONFIG is consulted and, if unset, no file is read.
func Load(path string) (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)

	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.Neo4jURI = getEnv("NEO4J_URI", cfg.Neo4jURI)
	cfg.Neo4jUser = getEnv("NEO4J_USERNAME", cfg.Neo4jUser)
	cfg.Neo4jPass = getEnv("NEO4J_PASSWORD", cfg.Neo4jPass)

	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Embeddings.Provider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", cfg.Embeddings.Provider))
	cfg.Embeddings.Model = getEnv("EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.Embeddings.Dimension = getEnvInt("EMBEDDING_DIMENSION", cfg.Embeddings.Dimension)
	cfg.Embeddings.ModelDir = getEnv("EMBEDDING_MODEL_DIR", cfg.Embeddings.ModelDir)
	cfg.Embeddings.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", cfg.Embeddings.BatchSize)
	cfg.Embeddings.Workers = getEnvInt("EMBEDDING_WORKERS", cfg.Embeddings.Workers)

	cfg.STT.HostedModel = getEnv("STT_MODEL_API", cfg.STT.HostedModel)
	cfg.STT.LocalModel = getEnv("STT_MODEL_LOCAL", cfg.STT.LocalModel)
	cfg.STT.LocalBaseURL = getEnv("STT_LOCAL_BASE_URL", cfg.STT.LocalBaseURL)
	cfg.STT.EnableLocalFallback = getEnvBool("ENABLE_LOCAL_FALLBACK", cfg.STT.EnableLocalFallback)
	cfg.STT.Timeout = getEnvDuration("STT_TIMEOUT", cfg.STT.Timeout)

	cfg.Index.Backend = strings.ToLower(getEnv("INDEX_BACKEND", cfg.Index.Backend))
	cfg.Index.Path = getEnv("VECTOR_DB_PATH", cfg.Index.Path)
	cfg.Index.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.Index.ChunkSize)
	cfg.Index.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", cfg.Index.ChunkOverlap)
	cfg.Index.RetrievalK = getEnvInt("RETRIEVAL_K", cfg.Index.RetrievalK)

	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(cfg.Server.MaxUploadBytes)))

	cfg.Tools.GeocodingURL = getEnv("WEATHER_GEOCODING_URL", cfg.Tools.GeocodingURL)
	cfg.Tools.ForecastURL = getEnv("WEATHER_FORECAST_URL", cfg.Tools.ForecastURL)
	cfg.Tools.Timeout = getEnvDuration("TOOL_TIMEOUT", cfg.Tools.Timeout)

	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Log.Format))

	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = getEnvDuration("RETRY_DELAY", cfg.RetryDelay)
}

var validate = validator.New()

// Validate checks field constraints and the rules that span several fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("invalid config: chunk overlap %d must be smaller than chunk size %d", c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Index.Backend == IndexBackendPostgres {
		if c.PostgresDSN == "" {
			return fmt.Errorf("invalid config: POSTGRES_DSN is required for the postgres index backend")
		}
		if c.Embeddings.Dimension <= 0 {
			return fmt.Errorf("invalid config: EMBEDDING_DIMENSION must be set for the postgres index backend")
		}
	}
	if c.OpenAIAPIKey == "" {
		if c.LLM.Provider == ProviderOpenAI {
			return fmt.Errorf("invalid config: OPENAI_API_KEY is required for the openai llm provider")
		}
		if c.Embeddings.Provider == ProviderOpenAI {
			return fmt.Errorf("invalid config: OPENAI_API_KEY is required for the openai embedding provider")
		}
		if !c.STT.EnableLocalFallback {
			return fmt.Errorf("invalid config: OPENAI_API_KEY not found, set it or enable local fallback")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
