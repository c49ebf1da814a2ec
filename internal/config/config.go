package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the programs in this repo
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Memory keeps all data in-process instead of Postgres.
	Memory          bool          `yaml:"memory"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// RedisConfig is shared by the alert queue and the Redis session backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CheckoutConfig describes the hosted payment processor
type CheckoutConfig struct {
	// BaseURL is the processor API, e.g. http://localhost:8090.
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// WebhookURL is where the simulator posts payment events.
	WebhookURL string `yaml:"webhook_url"`
	// AppURL is the front-end origin used to build return URLs.
	AppURL string `yaml:"app_url"`
	// ListenPort is the simulator's own port.
	ListenPort int `yaml:"listen_port"`
}

// ClientConfig configures gigctl
type ClientConfig struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	SessionBackend string        `yaml:"session_backend"` // file | redis
	SessionPath    string        `yaml:"session_path"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	Timeout        time.Duration `yaml:"timeout"`
	OrderPoll      time.Duration `yaml:"order_poll"`
	ThreadPoll     time.Duration `yaml:"thread_poll"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a config usable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "", Port: 8080, ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", Password: "postgres",
			DBName: "gighub", SSLMode: "disable",
		},
		JWT:   JWTConfig{Secret: "dev-secret-change-me", TTL: 72 * time.Hour},
		Redis: RedisConfig{},
		Checkout: CheckoutConfig{
			BaseURL:       "http://localhost:8090",
			APIKey:        "sk_test_local",
			WebhookSecret: "whsec_local",
			WebhookURL:    "http://localhost:8080/api/payments/webhook",
			AppURL:        "http://localhost:5173",
			ListenPort:    8090,
		},
		Client: ClientConfig{
			APIBaseURL:     "http://localhost:8080/api",
			SessionBackend: "file",
			SessionPath:    defaultSessionPath(),
			RedisPrefix:    "gighub:session:",
			Timeout:        15 * time.Second,
			OrderPoll:      5 * time.Second,
			ThreadPoll:     2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gighub-session.json"
	}
	return dir + "/gighub/session.json"
}

// Load reads an optional .env file, an optional YAML file at path and then
// applies environment overrides on top of Default(). A missing file is not
// an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &cfg.Server.Port)
	flag("GIGHUB_MEMORY", &cfg.Server.Memory)

	str("DB_HOST", &cfg.Database.Host)
	num("DB_PORT", &cfg.Database.Port)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_NAME", &cfg.Database.DBName)
	str("DB_SSLMODE", &cfg.Database.SSLMode)

	str("JWT_SECRET", &cfg.JWT.Secret)
	dur("JWT_TTL", &cfg.JWT.TTL)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)

	str("CHECKOUT_BASE_URL", &cfg.Checkout.BaseURL)
	str("CHECKOUT_API_KEY", &cfg.Checkout.APIKey)
	str("CHECKOUT_WEBHOOK_SECRET", &cfg.Checkout.WebhookSecret)
	str("CHECKOUT_WEBHOOK_URL", &cfg.Checkout.WebhookURL)
	str("GIGHUB_APP_URL", &cfg.Checkout.AppURL)

	str("GIGHUB_API_URL", &cfg.Client.APIBaseURL)
	str("GIGHUB_SESSION_BACKEND", &cfg.Client.SessionBackend)
	str("GIGHUB_SESSION_PATH", &cfg.Client.SessionPath)
	dur("GIGHUB_TIMEOUT", &cfg.Client.Timeout)

	str("LOG_LEVEL", &cfg.Log.Level)
	flag("LOG_PRETTY", &cfg.Log.Pretty)

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr is the listen address of the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
