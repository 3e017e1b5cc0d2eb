package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds every setting of the server process.
type Config struct {
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"logLevel"`
	HTTPPort    string `yaml:"httpPort"`
	Storage     string `yaml:"storage"`
	DBDSN       string `yaml:"dbDSN"`

	JWTSecret string        `yaml:"jwtSecret"`
	JWTIssuer string        `yaml:"jwtIssuer"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`

	CORSOrigins []string `yaml:"corsOrigins"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisChannel  string `yaml:"redisChannel"`

	TelegramToken         string `yaml:"telegramToken"`
	TelegramTeacherChatID int64  `yaml:"telegramTeacherChatID"`

	RejectOverlappingSlots bool          `yaml:"rejectOverlappingSlots"`
	SweepInterval          time.Duration `yaml:"sweepInterval"`
	CommandTimeout         time.Duration `yaml:"commandTimeout"`
}

func defaults() *Config {
	return &Config{
		Environment:    "development",
		LogLevel:       "info",
		HTTPPort:       "3001",
		Storage:        StoragePostgres,
		JWTIssuer:      "class-scheduler",
		TokenTTL:       24 * time.Hour,
		CORSOrigins:    []string{"http://localhost:5173"},
		RedisChannel:   "class-scheduler:events",
		SweepInterval:  5 * time.Minute,
		CommandTimeout: 10 * time.Second,
	}
}

// Load reads .env (if present), then the optional YAML file named by CONFIG_FILE,
// then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.Storage = strings.ToLower(getEnv("STORAGE", c.Storage))
	c.DBDSN = getEnv("DB_DSN", c.DBDSN)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.TokenTTL = durationEnv("TOKEN_TTL", c.TokenTTL)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisChannel = getEnv("REDIS_CHANNEL", c.RedisChannel)

	c.TelegramToken = getEnv("TELEGRAM_TOKEN", c.TelegramToken)
	c.TelegramTeacherChatID = int64Env("TELEGRAM_TEACHER_CHAT_ID", c.TelegramTeacherChatID)

	c.RejectOverlappingSlots = boolEnv("SLOTS_REJECT_OVERLAP", c.RejectOverlappingSlots)
	c.SweepInterval = durationEnv("SWEEP_INTERVAL", c.SweepInterval)
	c.CommandTimeout = durationEnv("COMMAND_TIMEOUT", c.CommandTimeout)
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required but not set")
	}
	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return errors.New("config: DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be > 0")
	}
	if c.CommandTimeout <= 0 {
		return errors.New("config: COMMAND_TIMEOUT must be > 0")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: SWEEP_INTERVAL must be > 0")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramTeacherChatID != 0
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) HTTPAddr() string {
	return ":" + c.HTTPPort
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			log.Printf("invalid bool for %s, using fallback %v", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}

func int64Env(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			log.Printf("invalid int for %s, using fallback %d", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
