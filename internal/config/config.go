package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Handoff configura el token firmado que viaja hacia el provider.
	Handoff struct {
		Secret    string `yaml:"secret"` // override por env LINKPASS_HANDOFF_SECRET
		Issuer    string `yaml:"issuer"`
		Audience  string `yaml:"audience"`
		TTL       string `yaml:"ttl"`
		Skew      string `yaml:"skew"`
		ParamName string `yaml:"param_name"`
	} `yaml:"handoff"`

	// Session configura el token de sesión del broker (instant login).
	Session struct {
		Secret string `yaml:"secret"` // override por env LINKPASS_SESSION_SECRET
		TTL    string `yaml:"ttl"`
	} `yaml:"session"`

	Admin struct {
		APIKey string `yaml:"api_key"` // override por env LINKPASS_ADMIN_KEY
	} `yaml:"admin"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

// Load lee el YAML, aplica defaults y luego overrides por env.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config read: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config parse: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if cfg.Handoff.Secret == "" {
		return nil, fmt.Errorf("config: handoff secret vacío (handoff.secret o LINKPASS_HANDOFF_SECRET)")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "30s"
	}
	if c.Handoff.Issuer == "" {
		c.Handoff.Issuer = "linkpass"
	}
	if c.Handoff.Audience == "" {
		c.Handoff.Audience = "linkpass:provider"
	}
	if c.Handoff.TTL == "" {
		c.Handoff.TTL = "5m"
	}
	if c.Handoff.Skew == "" {
		c.Handoff.Skew = "5m"
	}
	if c.Handoff.ParamName == "" {
		c.Handoff.ParamName = "redirect_token"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "24h"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 20
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LINKPASS_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("LINKPASS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LINKPASS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LINKPASS_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("LINKPASS_CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := os.Getenv("LINKPASS_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LINKPASS_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = n
		}
	}
	if v := os.Getenv("LINKPASS_HANDOFF_SECRET"); v != "" {
		c.Handoff.Secret = v
	}
	if v := os.Getenv("LINKPASS_SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("LINKPASS_ADMIN_KEY"); v != "" {
		c.Admin.APIKey = v
	}
	if v := os.Getenv("LINKPASS_MIGRATE"); v != "" {
		c.Flags.Migrate = v == "1" || v == "true"
	}
}

// Duration parsea un string de duración con fallback.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
