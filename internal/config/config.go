package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

type AppConfig struct {
	Addr           string   `env:"APP_ADDR" envDefault:"localhost:8090"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type SessionConfig struct {
	JWTSecret string `env:"SESSION_JWT_SECRET"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"gigearn"`
	Password string `env:"DB_PASSWORD" envDefault:"gigearn"`
	Name     string `env:"DB_NAME" envDefault:"gigearn_link"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type StoreConfig struct {
	Kind       string `env:"TOKEN_STORE" envDefault:"memory"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"gigearn-link.db"`
	SecretKey  string `env:"SECRET_KEY"`
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
}

type LinkConfig struct {
	RedirectBase        string        `env:"LINK_REDIRECT_BASE" envDefault:"gigearn://oauth/callback"`
	AttemptTTL          time.Duration `env:"LINK_ATTEMPT_TTL" envDefault:"10m"`
	WaitTimeout         time.Duration `env:"LINK_WAIT_TIMEOUT" envDefault:"55s"`
	ExchangeMaxAttempts uint          `env:"EXCHANGE_MAX_ATTEMPTS" envDefault:"3"`
	ExchangeTimeout     time.Duration `env:"EXCHANGE_TIMEOUT" envDefault:"15s"`
}

type OAuthProviderConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:" "`
}

type UberAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL" envDefault:"https://auth.uber.com/oauth/v2/authorize"`
	TokenURL     string   `env:"TOKEN_URL" envDefault:"https://auth.uber.com/oauth/v2/token"`
	Scopes       []string `env:"SCOPES" envSeparator:" " envDefault:"partner.accounts partner.payments partner.trips"`
}

type LyftAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL" envDefault:"https://api.lyft.com/oauth/authorize"`
	TokenURL     string   `env:"TOKEN_URL" envDefault:"https://api.lyft.com/oauth/token"`
	Scopes       []string `env:"SCOPES" envSeparator:" " envDefault:"public profile rides.read offline"`
}

type DoorDashAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthURL      string   `env:"AUTH_URL" envDefault:"https://identity.doordash.com/connect/authorize"`
	TokenURL     string   `env:"TOKEN_URL" envDefault:"https://identity.doordash.com/connect/token"`
	Scopes       []string `env:"SCOPES" envSeparator:" " envDefault:"openid dasher.earnings offline_access"`
}

type Authorization struct {
	Uber     UberAuthConfig     `envPrefix:"UBER_"`
	Lyft     LyftAuthConfig     `envPrefix:"LYFT_"`
	DoorDash DoorDashAuthConfig `envPrefix:"DOORDASH_"`
}

type Config struct {
	App           AppConfig
	Session       SessionConfig
	Authorization Authorization
	Database      DatabaseConfig
	Redis         RedisConfig
	Store         StoreConfig
	Backend       BackendConfig
	Link          LinkConfig
	AutoMigration bool `env:"DB_AUTO_MIGRATION" envDefault:"true"`
}

const envFile = ".env"

func LoadConfig() (*Config, error) {
	var cfg Config

	if CheckFileExistence(envFile) {
		err := godotenv.Load(envFile)
		if err != nil {
			fmt.Println("No .env file found, loading from environment variables.")
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.Store.Kind = strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	cfg.Link.RedirectBase = strings.TrimRight(cfg.Link.RedirectBase, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StorePostgres, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown token store %q", c.Store.Kind)
	}
	if c.Store.Kind != StoreMemory && len(c.Store.SecretKey) < 16 {
		return errors.New("SECRET_KEY must be at least 16 characters for persistent token stores")
	}
	if len(c.Session.JWTSecret) < 16 {
		return errors.New("SESSION_JWT_SECRET must be at least 16 characters")
	}
	if c.Link.RedirectBase == "" {
		return errors.New("LINK_REDIRECT_BASE is required")
	}
	if c.Link.AttemptTTL <= 0 {
		return errors.New("LINK_ATTEMPT_TTL must be positive")
	}
	if c.Link.ExchangeMaxAttempts == 0 {
		c.Link.ExchangeMaxAttempts = 1
	}
	return nil
}

// Providers returns the provider blocks keyed by provider name.
func (a Authorization) Providers() map[string]OAuthProviderConfig {
	return map[string]OAuthProviderConfig{
		"uber":     OAuthProviderConfig(a.Uber),
		"lyft":     OAuthProviderConfig(a.Lyft),
		"doordash": OAuthProviderConfig(a.DoorDash),
	}
}

func CheckFileExistence(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
