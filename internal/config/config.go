// Package config carga la configuración del cliente: YAML + overrides por env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda "dev".
	App struct {
		// dev | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	API struct {
		// BaseURL del API remoto, ej. https://sunschool.xyz
		BaseURL string `yaml:"base_url"`
		// Timeout por request. Default: 30s
		Timeout string `yaml:"timeout"`
		// ValidateTimeout acota la validación del token al arranque. Default: 5s
		ValidateTimeout string `yaml:"validate_timeout"`
	} `yaml:"api"`

	Storage struct {
		// Dir donde vive el estado persistido. Default: ~/.sunschool
		Dir string `yaml:"dir"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML en path (opcional: "" usa solo defaults+env), aplica
// defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Defaults
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = "dev"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "30s"
	}
	if c.API.ValidateTimeout == "" {
		c.API.ValidateTimeout = "5s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Storage.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Storage.Dir = filepath.Join(home, ".sunschool")
		} else {
			c.Storage.Dir = ".sunschool"
		}
	}

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SUNSCHOOL_API_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := getEnvStr("SUNSCHOOL_STORAGE_DIR"); ok {
		c.Storage.Dir = v
	}
	if v, ok := getEnvStr("SUNSCHOOL_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("SUNSCHOOL_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("SUNSCHOOL_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
}

// Validate verifica que las duraciones parseen y los enums sean conocidos.
func (c *Config) Validate() error {
	for _, d := range []string{c.API.Timeout, c.API.ValidateTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", d, err)
		}
	}
	if c.Cache.Memory.DefaultTTL != "" {
		if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
			return fmt.Errorf("config: invalid cache ttl %q: %w", c.Cache.Memory.DefaultTTL, err)
		}
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	return nil
}

// APITimeout retorna el timeout por request ya parseado.
func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidateTimeout retorna el timeout de validación inicial ya parseado.
func (c *Config) ValidateTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.ValidateTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
