package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. WHITEBOARD_HTTP_ADDR or
// WHITEBOARD_STORAGE_POSTGRES_DSN.
const EnvPrefix = "WHITEBOARD"

type HTTP struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
}

// GRPC serves the health service only. An empty addr disables it.
type GRPC struct {
	Addr           string        `yaml:"addr"`
	HealthInterval time.Duration `yaml:"healthInterval" split_words:"true"`
}

type Logging struct {
	Env       string `yaml:"env" validate:"oneof=dev stage prod"` // dev|stage|prod
	Service   string `yaml:"service"`                             // whiteboard-service
	Version   string `yaml:"version"`                             // v0.1.0
	Backend   string `yaml:"backend" validate:"oneof=std zap"`    // std|zap
	AddSource bool   `yaml:"addSource" split_words:"true"`        // false|true
	Debug     bool   `yaml:"debug"`                               // false|true
}

type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns" split_words:"true"`
	MinConns        int32         `yaml:"minConns" split_words:"true"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime" split_words:"true"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Badger struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"inMemory" split_words:"true"`
}

type Storage struct {
	Driver   string   `yaml:"driver" validate:"oneof=memory postgres sqlite badger"`
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
	Badger   Badger   `yaml:"badger"`
}

type Reaper struct {
	Interval  time.Duration `yaml:"interval" validate:"gt=0"`
	Retention time.Duration `yaml:"retention" validate:"gt=0"`
}

type Session struct {
	SendBuffer     int           `yaml:"sendBuffer" split_words:"true" validate:"gt=0"`
	WriteWait      time.Duration `yaml:"writeWait" split_words:"true" validate:"gt=0"`
	PongWait       time.Duration `yaml:"pongWait" split_words:"true" validate:"gt=0"`
	MaxMessageSize int64         `yaml:"maxMessageSize" split_words:"true" validate:"gt=0"`
}

type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Logging   Logging   `yaml:"logging"`
	Storage   Storage   `yaml:"storage"`
	Reaper    Reaper    `yaml:"reaper"`
	Session   Session   `yaml:"session"`
	Discovery Discovery `yaml:"discovery"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml). A .env file in
// the working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

// Load reads the YAML file at path, applies WHITEBOARD_* overrides from the
// environment, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.GRPC.HealthInterval == 0 {
		c.GRPC.HealthInterval = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "whiteboard-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = string(logger.EnvDev)
	}
	// aliases such as production or staging are folded the way the logger reads them
	if env, ok := logger.LookupEnv(c.Logging.Env); ok {
		c.Logging.Env = string(env)
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "whiteboard.db"
	}
	if c.Storage.Badger.Dir == "" {
		c.Storage.Badger.Dir = "data/badger"
	}

	if c.Reaper.Interval == 0 {
		c.Reaper.Interval = time.Hour
	}
	if c.Reaper.Retention == 0 {
		c.Reaper.Retention = 24 * time.Hour
	}

	if c.Session.SendBuffer == 0 {
		c.Session.SendBuffer = 256
	}
	if c.Session.WriteWait == 0 {
		c.Session.WriteWait = 10 * time.Second
	}
	if c.Session.PongWait == 0 {
		c.Session.PongWait = 60 * time.Second
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = 1 << 20
	}

	if c.Discovery.Service == "" {
		c.Discovery.Service = "_whiteboard._tcp"
	}
	if c.Discovery.Instance == "" {
		c.Discovery.Instance = c.Logging.Service
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == "postgres" && c.Storage.Postgres.DSN == "" {
		return errors.New("storage.postgres.dsn is required for the postgres driver")
	}
	return nil
}
