package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wrap-render-server/modules/render"
)

// Backend identifiers for RENDER_BACKEND
const (
	BackendFunction = "function"
	BackendGemini   = "gemini"
)

// Config - all environment driven settings
type Config struct {
	// Server
	Port     string
	AppEnv   string
	LogLevel string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string
	SupabaseStorageBucket  string

	// Render backend
	RenderBackend      string
	RenderFunctionsURL string
	RenderTimeout      time.Duration

	// Gemini API
	GeminiAPIKeys      []string
	GeminiModel        string
	GeminiInspectModel string
	VertexAIProject    string
	VertexAILocation   string

	// Engine
	ViewConcurrency int
	ContinuityTTL   time.Duration
	QualityGateView string
}

// LoadConfig - load environment variables (.env first when present)
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", true),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "renders"),

		RenderBackend:      strings.ToLower(getEnv("RENDER_BACKEND", BackendFunction)),
		RenderFunctionsURL: getEnv("RENDER_FUNCTIONS_URL", ""),
		RenderTimeout:      getEnvDuration("RENDER_TIMEOUT", 90*time.Second),

		GeminiAPIKeys:      splitList(getEnv("GEMINI_API_KEYS", getEnv("GEMINI_API_KEY", ""))),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiInspectModel: getEnv("GEMINI_INSPECT_MODEL", "gemini-2.5-flash"),
		VertexAIProject:    getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation:   getEnv("VERTEXAI_LOCATION", "us-central1"),

		ViewConcurrency: getEnvInt("VIEW_CONCURRENCY", 3),
		ContinuityTTL:   getEnvDuration("CONTINUITY_TTL", 7*24*time.Hour),
		QualityGateView: strings.ToLower(getEnv("QUALITY_GATE_VIEW", string(render.ViewSide))),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.RenderFunctionsURL == "" && cfg.SupabaseURL != "" {
		cfg.RenderFunctionsURL = strings.TrimRight(cfg.SupabaseURL, "/") + "/functions/v1"
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	log.Printf("   Supabase: %s", cfg.SupabaseURL)
	log.Printf("   Render backend: %s", cfg.RenderBackend)

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	switch c.RenderBackend {
	case BackendFunction:
	case BackendGemini:
		if len(c.GeminiAPIKeys) == 0 && c.VertexAIProject == "" {
			return fmt.Errorf("GEMINI_API_KEYS or VERTEXAI_PROJECT is required for the gemini backend")
		}
	default:
		return fmt.Errorf("unsupported RENDER_BACKEND %q", c.RenderBackend)
	}
	if c.ViewConcurrency <= 0 {
		return fmt.Errorf("VIEW_CONCURRENCY must be positive")
	}
	// the hero is never gated, it renders before the batch
	if gated := render.ViewType(c.QualityGateView); !gated.Valid() || gated == render.ViewHero {
		return fmt.Errorf("unsupported QUALITY_GATE_VIEW %q", c.QualityGateView)
	}
	return nil
}

// GetRedisAddr - host:port for redis
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// IsDevelopment reports whether APP_ENV selects development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
