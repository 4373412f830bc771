// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the LLM/embedding
// provider, retrieval tuning, web-search caching, rate limiting, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "wedding-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig holds the chat-completions / embeddings provider settings. Both
// endpoints live under the same base URL and share one bearer token.
type LLMConfig struct {
	Endpoint      string        // LLM_ENDPOINT base URL
	Token         string        // LLM_TOKEN bearer credential
	DefaultModel  string        // LLM_DEFAULT_MODEL
	Models        []string      // LLM_MODELS (CSV of selectable model ids)
	Temperature   float64       // LLM_TEMPERATURE
	MaxTokens     int           // LLM_MAX_TOKENS per completion
	MaxToolRounds int           // AGENT_MAX_TOOL_ROUNDS ceiling per turn
	Timeout       time.Duration // LLM_TIMEOUT per HTTP call
	SystemMessage string        // SYSTEM_MESSAGE base instructions

	EmbeddingModel     string // EMBEDDING_MODEL
	EmbeddingDimension int    // EMBEDDING_DIMENSION
}

// RAGConfig tunes document chunking and vector retrieval.
type RAGConfig struct {
	ChunkSize           int     // CHUNK_SIZE characters per chunk
	ChunkOverlap        int     // CHUNK_OVERLAP characters shared by neighbors
	EmbedBatchSize      int     // EMBED_BATCH_SIZE chunks per embeddings call
	SearchLimit         int     // SEARCH_LIMIT top-k chunks per query
	SimilarityThreshold float64 // SIMILARITY_THRESHOLD minimum cosine similarity [0,1]
}

// WebSearchConfig holds the external web-search API settings and cache TTL.
type WebSearchConfig struct {
	APIKey   string        // TAVILY_API_KEY (empty disables live search)
	Endpoint string        // TAVILY_ENDPOINT
	CacheTTL time.Duration // SEARCH_CACHE_TTL for cached results
}

// MemoryConfig tunes cross-conversation memory retrieval.
type MemoryConfig struct {
	RecallLimit   int // MEMORY_RECALL_LIMIT summaries injected per turn
	MinImportance int // MEMORY_MIN_IMPORTANCE floor for recalled summaries
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath    string // SQLite path
	LLM       LLMConfig
	RAG       RAGConfig
	WebSearch WebSearchConfig
	Memory    MemoryConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),
		LLM: LLMConfig{
			Endpoint:      strings.TrimRight(getenv("LLM_ENDPOINT", "https://models.inference.ai.azure.com"), "/"),
			Token:         getenv("LLM_TOKEN", ""),
			DefaultModel:  getenv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			Models:        splitCSV(getenv("LLM_MODELS", "gpt-4o,gpt-4o-mini")),
			Temperature:   getfloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:     getint("LLM_MAX_TOKENS", 2000),
			MaxToolRounds: getint("AGENT_MAX_TOOL_ROUNDS", 8),
			Timeout:       getdur("LLM_TIMEOUT", 60*time.Second),
			SystemMessage: getenv("SYSTEM_MESSAGE", "You are a helpful wedding-planning assistant."),

			EmbeddingModel:     getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getint("EMBEDDING_DIMENSION", 1536),
		},
		RAG: RAGConfig{
			ChunkSize:           getint("CHUNK_SIZE", 1000),
			ChunkOverlap:        getint("CHUNK_OVERLAP", 200),
			EmbedBatchSize:      getint("EMBED_BATCH_SIZE", 10),
			SearchLimit:         getint("SEARCH_LIMIT", 5),
			SimilarityThreshold: getfloat("SIMILARITY_THRESHOLD", 0.5),
		},
		WebSearch: WebSearchConfig{
			APIKey:   getenv("TAVILY_API_KEY", ""),
			Endpoint: getenv("TAVILY_ENDPOINT", "https://api.tavily.com/search"),
			CacheTTL: getdur("SEARCH_CACHE_TTL", 7*24*time.Hour),
		},
		Memory: MemoryConfig{
			RecallLimit:   getint("MEMORY_RECALL_LIMIT", 5),
			MinImportance: getint("MEMORY_MIN_IMPORTANCE", 3),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "wedding-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.Endpoint) == "" {
		return cfg, errors.New("LLM_ENDPOINT must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.DefaultModel) == "" {
		return cfg, errors.New("LLM_DEFAULT_MODEL must not be empty")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	if cfg.LLM.MaxTokens <= 0 {
		return cfg, errors.New("LLM_MAX_TOKENS must be > 0")
	}
	if cfg.LLM.MaxToolRounds < 1 {
		return cfg, errors.New("AGENT_MAX_TOOL_ROUNDS must be >= 1")
	}
	if cfg.LLM.EmbeddingDimension <= 0 {
		return cfg, errors.New("EMBEDDING_DIMENSION must be > 0")
	}
	if cfg.RAG.ChunkSize <= 0 {
		return cfg, errors.New("CHUNK_SIZE must be > 0")
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return cfg, errors.New("CHUNK_OVERLAP must be >= 0 and < CHUNK_SIZE")
	}
	if cfg.RAG.EmbedBatchSize < 1 {
		return cfg, errors.New("EMBED_BATCH_SIZE must be >= 1")
	}
	if cfg.RAG.SimilarityThreshold < 0 || cfg.RAG.SimilarityThreshold > 1 {
		return cfg, errors.New("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if cfg.WebSearch.CacheTTL <= 0 {
		return cfg, errors.New("SEARCH_CACHE_TTL must be > 0")
	}
	if cfg.Memory.RecallLimit < 0 {
		return cfg, errors.New("MEMORY_RECALL_LIMIT must be >= 0")
	}
	if cfg.Memory.MinImportance < 0 || cfg.Memory.MinImportance > 10 {
		return cfg, errors.New("MEMORY_MIN_IMPORTANCE must be in [0,10]")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
