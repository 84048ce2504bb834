package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevelopmentSecret signs tokens when JWT_SECRET is unset outside production.
// Every restart with a different secret invalidates all issued tokens.
const DevelopmentSecret = "mercado-development-secret-change-me"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the process-wide settings. It is built once at startup and
// passed by reference to whatever needs it.
type Config struct {
	Env           string
	Port          string
	Database      DatabaseConfig
	JWT           JWTConfig
	RabbitMQ      RabbitMQConfig
	Redis         RedisConfig
	ResetCodeTTL  time.Duration
	BcryptCost    int
	AuthRateLimit int // requests per minute per IP on login/recovery, 0 disables
}

// DatabaseConfig selects the GORM dialector.
type DatabaseConfig struct {
	Driver string // postgres or sqlite
	DSN    string
}

// JWTConfig configures the token service.
type JWTConfig struct {
	Secret         string
	Expiry         time.Duration
	Issuer         string
	Audience       string
	SecretFallback bool // true when DevelopmentSecret is in use
}

// RabbitMQConfig configures the event publisher. An empty URL disables events.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	AuditQueue string
}

// RedisConfig configures the token revocation store. An empty Addr disables revocation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvProduction)
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:mercado.db?cache=shared")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY", "168h")
	v.SetDefault("JWT_ISSUER", "marketplace-api")
	v.SetDefault("JWT_AUDIENCE", "marketplace-users")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "marketplace")
	v.SetDefault("RABBITMQ_AUDIT_QUEUE", "marketplace_audit")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RESET_CODE_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("AUTH_RATE_LIMIT", 20)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:  strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		Port: v.GetString("APP_PORT"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("JWT_SECRET"),
			Expiry:   v.GetDuration("JWT_EXPIRY"),
			Issuer:   v.GetString("JWT_ISSUER"),
			Audience: v.GetString("JWT_AUDIENCE"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        v.GetString("RABBITMQ_URL"),
			Exchange:   v.GetString("RABBITMQ_EXCHANGE"),
			AuditQueue: v.GetString("RABBITMQ_AUDIT_QUEUE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		ResetCodeTTL:  v.GetDuration("RESET_CODE_TTL"),
		BcryptCost:    v.GetInt("BCRYPT_COST"),
		AuthRateLimit: v.GetInt("AUTH_RATE_LIMIT"),
	}

	if cfg.Env == "" {
		cfg.Env = EnvProduction
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}

	if cfg.JWT.Expiry <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRY must be positive, got %s", cfg.JWT.Expiry)
	}
	if cfg.JWT.Issuer == "" || cfg.JWT.Audience == "" {
		return nil, fmt.Errorf("JWT_ISSUER and JWT_AUDIENCE are required")
	}
	if cfg.JWT.Secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWT.Secret = DevelopmentSecret
		cfg.JWT.SecretFallback = true
	}

	if cfg.ResetCodeTTL <= 0 {
		return nil, fmt.Errorf("RESET_CODE_TTL must be positive, got %s", cfg.ResetCodeTTL)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}
	if cfg.AuthRateLimit < 0 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT must not be negative")
	}

	return cfg, nil
}

// IsDevelopment reports whether internal error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
