package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Invitations  InvitationConfig   `yaml:"invitations"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	CORS         CORSConfig         `yaml:"cors"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig controls how the caller identity forwarded by the edge is read.
type AuthConfig struct {
	Mode      string `yaml:"mode"` // principal, jwt
	JWTSecret string `yaml:"jwt_secret"`
	DevBypass bool   `yaml:"dev_bypass"`
}

type InvitationConfig struct {
	DefaultTTLHours int `yaml:"default_ttl_hours"`
	MaxTTLHours     int `yaml:"max_ttl_hours"`
	PurgeAfterDays  int `yaml:"purge_after_days"` // 0 keeps expired invitations forever
}

type HousekeepingConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Schedule         string `yaml:"schedule"` // standard 5-field cron expression
	LogRetentionDays int    `yaml:"log_retention_days"`
}

// RateLimitConfig applies to the public invitation token routes.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

const (
	AuthModePrincipal = "principal"
	AuthModeJWT       = "jwt"
)

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Unmarshal over the defaults so partial files keep sane values.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "meridian.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Mode: AuthModePrincipal,
		},
		Invitations: InvitationConfig{
			DefaultTTLHours: 72,
			MaxTTLHours:     720,
			PurgeAfterDays:  30,
		},
		Housekeeping: HousekeepingConfig{
			Enabled:          true,
			Schedule:         "30 3 * * *",
			LogRetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 20,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if mode := os.Getenv("AUTH_MODE"); mode != "" {
		c.Auth.Mode = strings.ToLower(mode)
	}
	if secret := os.Getenv("AUTH_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if bypass := os.Getenv("DEV_AUTH_BYPASS"); bypass != "" {
		c.Auth.DevBypass = bypass == "true" || bypass == "1"
	}
	if ttl := os.Getenv("INVITE_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			c.Invitations.DefaultTTLHours = hours
		}
	}
	if origins := os.Getenv("CORS_ALLOW_ORIGINS"); origins != "" {
		c.CORS.AllowOrigins = splitList(origins)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
