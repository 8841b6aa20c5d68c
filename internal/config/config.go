package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration, loaded once in main and
// injected into the components that need it.
type Config struct {
	GeminiAPIKey string
	GeminiModel  string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string
}

const defaultGeminiModel = "gemini-1.5-flash"

// Load reads configuration from the environment, consulting a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_AI_MODEL", defaultGeminiModel),
		DatabaseURL:  getEnv("DATABASE_URL", "neuralearn.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
