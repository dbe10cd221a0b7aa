package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 8000 {
		t.Fatalf("default port = %d, want 8000", cfg.App.Port)
	}
	if cfg.Upload.MaxBytes != 10485760 {
		t.Fatalf("default max bytes = %d", cfg.Upload.MaxBytes)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Fatalf("default gemini model = %q", cfg.Gemini.Model)
	}
	if got := cfg.HTTPAddr(); got != "0.0.0.0:8000" {
		t.Fatalf("HTTPAddr() = %q", got)
	}
	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Fatalf("ShutdownTimeout() = %v", got)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9100

[upload]
dir = "from-file"
max_bytes = 2048

[redis]
enabled = true
addr = "redis:6379"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("UPLOAD_DIR", "from-env")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("VISION_ENABLED", "not-a-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != 9100 {
		t.Fatalf("port = %d, want 9100 from file", cfg.App.Port)
	}
	if cfg.Upload.Dir != "from-env" {
		t.Fatalf("upload dir = %q, env should win", cfg.Upload.Dir)
	}
	if cfg.Upload.MaxBytes != 2048 {
		t.Fatalf("max bytes = %d", cfg.Upload.MaxBytes)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis config = %+v", cfg.Redis)
	}
	if cfg.Gemini.APIKey != "gm-key" {
		t.Fatalf("gemini key = %q", cfg.Gemini.APIKey)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("origins = %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.HTTP.RateLimitRPS != 2.5 {
		t.Fatalf("rate limit = %v", cfg.HTTP.RateLimitRPS)
	}
	if cfg.Vision.Enabled {
		t.Fatal("invalid bool should fall back to default false")
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[app\nport = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected decode error")
	}
}
