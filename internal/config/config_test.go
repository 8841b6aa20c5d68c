package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.GeminiModel != defaultGeminiModel {
		t.Errorf("expected default model, got %q", cfg.GeminiModel)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "neuralearn.db" {
		t.Errorf("expected default database path, got %q", cfg.DatabaseURL)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Error("expected an error when GEMINI_API_KEY is unset")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("expected an error when JWT_SECRET is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GEMINI_AI_MODEL", "gemini-1.5-pro")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.GeminiModel != "gemini-1.5-pro" {
		t.Errorf("expected overridden model, got %q", cfg.GeminiModel)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("expected overridden port, got %q", cfg.HTTPPort)
	}
}
