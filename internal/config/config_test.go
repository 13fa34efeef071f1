package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Env != "dev" {
		t.Fatalf("App.Env = %q", c.App.Env)
	}
	if c.API.BaseURL != "http://localhost:8080" {
		t.Fatalf("API.BaseURL = %q", c.API.BaseURL)
	}
	if c.APITimeout() != 30*time.Second {
		t.Fatalf("APITimeout = %v", c.APITimeout())
	}
	if c.ValidateTimeout() != 5*time.Second {
		t.Fatalf("ValidateTimeout = %v", c.ValidateTimeout())
	}
	if c.Cache.Kind != "memory" {
		t.Fatalf("Cache.Kind = %q", c.Cache.Kind)
	}
	if c.Storage.Dir == "" {
		t.Fatal("Storage.Dir should default to a home subdir")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  app_env: prod
api:
  base_url: https://sunschool.xyz
  timeout: 10s
  validate_timeout: 2s
cache:
  kind: redis
  redis:
    addr: localhost:6379
    db: 3
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Env != "prod" {
		t.Fatalf("App.Env = %q", c.App.Env)
	}
	if c.API.BaseURL != "https://sunschool.xyz" {
		t.Fatalf("API.BaseURL = %q", c.API.BaseURL)
	}
	if c.APITimeout() != 10*time.Second {
		t.Fatalf("APITimeout = %v", c.APITimeout())
	}
	if c.ValidateTimeout() != 2*time.Second {
		t.Fatalf("ValidateTimeout = %v", c.ValidateTimeout())
	}
	if c.Cache.Kind != "redis" || c.Cache.Redis.Addr != "localhost:6379" || c.Cache.Redis.DB != 3 {
		t.Fatalf("Cache = %+v", c.Cache)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q", c.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUNSCHOOL_API_URL", "http://10.0.0.5:9000")
	t.Setenv("SUNSCHOOL_CACHE_KIND", "redis")
	t.Setenv("SUNSCHOOL_REDIS_ADDR", "10.0.0.5:6379")
	t.Setenv("SUNSCHOOL_REDIS_DB", "7")
	t.Setenv("LOG_LEVEL", "warn")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.API.BaseURL != "http://10.0.0.5:9000" {
		t.Fatalf("API.BaseURL = %q", c.API.BaseURL)
	}
	if c.Cache.Kind != "redis" || c.Cache.Redis.Addr != "10.0.0.5:6379" || c.Cache.Redis.DB != 7 {
		t.Fatalf("Cache = %+v", c.Cache)
	}
	if c.Log.Level != "warn" {
		t.Fatalf("Log.Level = %q", c.Log.Level)
	}
}

func TestValidateRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  timeout: never\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want error for unparseable duration")
	}
}

func TestValidateRejectsUnknownCacheKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  kind: memcached\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want error for unknown cache kind")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("want error for missing explicit config file")
	}
}
