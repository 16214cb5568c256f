package config

import (
	"log"
	"strings"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Remote    RemoteConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig configures operator authentication. An empty secret disables it.
type JWTConfig struct {
	Secret string
}

// RemoteConfig describes the system-of-record endpoint. URL, Tenant,
// Principal and APIKey are all required before any sync can run.
type RemoteConfig struct {
	URL        string
	Tenant     string
	Principal  string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
}

type SyncConfig struct {
	PullInterval    time.Duration // 0 disables scheduled pulls
	PushInterval    time.Duration // 0 disables scheduled pushes
	PushConcurrency int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Validate reports every missing remote option at once.
func (c RemoteConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(c.Tenant) == "" {
		missing = append(missing, "tenant")
	}
	if strings.TrimSpace(c.Principal) == "" {
		missing = append(missing, "principal")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "apiKey")
	}
	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}
	if c.Timeout <= 0 {
		return &domain.ConfigError{Message: "timeout must be positive"}
	}
	return nil
}

// IsDevelopment reports whether the server runs outside production
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REMOTE_TIMEOUT", "30s")
	v.SetDefault("REMOTE_MAX_RETRIES", 2)
	v.SetDefault("REMOTE_PAGE_SIZE", 1000)
	v.SetDefault("SYNC_PULL_INTERVAL", "0s")
	v.SetDefault("SYNC_PUSH_INTERVAL", "0s")
	v.SetDefault("SYNC_PUSH_CONCURRENCY", 8)
	v.SetDefault("RATE_LIMIT_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
}

// Load reads configuration from ./.env and the process environment.
func Load() *Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	var origins []string
	for _, o := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: origins,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Remote: RemoteConfig{
			URL:        strings.TrimRight(v.GetString("REMOTE_URL"), "/"),
			Tenant:     v.GetString("REMOTE_TENANT"),
			Principal:  v.GetString("REMOTE_PRINCIPAL"),
			APIKey:     v.GetString("REMOTE_API_KEY"),
			Timeout:    v.GetDuration("REMOTE_TIMEOUT"),
			MaxRetries: v.GetInt("REMOTE_MAX_RETRIES"),
			PageSize:   v.GetInt("REMOTE_PAGE_SIZE"),
		},
		Sync: SyncConfig{
			PullInterval:    v.GetDuration("SYNC_PULL_INTERVAL"),
			PushInterval:    v.GetDuration("SYNC_PUSH_INTERVAL"),
			PushConcurrency: v.GetInt("SYNC_PUSH_CONCURRENCY"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}
