package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is process-wide configuration loaded once at startup, in the
// teacher's env-var-with-defaults style (services/config previously
// covered Supabase/ElevenLabs/Cartesia; this system has no storage or
// audio concerns, spec §1 Non-goals).
type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis (Scheduler wake-up store, spec §4.4)
	RedisURL string

	// Orchestrator
	MaxConcurrentShots int
	WorkerEnabled      bool // when false, ResumeAll/Scheduler.Run are not started (API-only mode)

	// Provider defaults (owner-specific credentials come from the
	// credentials.Store collaborator; these are dev-mode fallbacks used
	// by cmd/api to seed a StaticStore when no real credential backend
	// is wired, spec §6).
	OpenAIKey string
	GeminiKey string
	XAIKey    string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		MaxConcurrentShots: getEnvInt("MAX_CONCURRENT_SHOTS", 4),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		XAIKey:             getEnv("XAI_API_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
