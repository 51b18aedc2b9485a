// Package config загружает конфигурацию сервиса: YAML-файл, затем .env,
// затем переменные окружения, затем значения по умолчанию.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Виды источника данных
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
	SourceS3       = "s3"
)

// DotEnvPath файл переменных окружения, подхватываемый при загрузке
var DotEnvPath = ".env"

// Config содержит конфигурацию сервиса
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Model    ModelConfig    `yaml:"model"`
	Source   SourceConfig   `yaml:"source"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig настройки HTTP-сервера
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// RunOnStart выполнить прогон сразу после запуска
	RunOnStart bool `yaml:"run_on_start"`
}

// RedisConfig подключение к Redis для кэша отчетов
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	ReportTTL time.Duration `yaml:"report_ttl"`
}

// ModelConfig расположение и загрузка модели
type ModelConfig struct {
	ServingURL   string        `yaml:"serving_url"`
	Name         string        `yaml:"name"`
	ArtifactPath string        `yaml:"artifact"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SourceConfig выбор и параметры источника датасета
type SourceConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	URL       string `yaml:"url"`
	DSN       string `yaml:"dsn"`
	Limit     int    `yaml:"limit"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Object    string `yaml:"object"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// PipelineConfig параметры прогона конвейера
type PipelineConfig struct {
	Workers int `yaml:"workers"`
	// WindowSize фиксирован моделью и хранится только для отображения
	WindowSize int    `yaml:"window_size"`
	RandomSeed uint64 `yaml:"random_seed"`
}

// LogConfig уровень логирования и режим разработки
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load читает конфигурацию. Пустой path означает конфигурацию только из окружения.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(DotEnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Model.ServingURL, "MODEL_SERVING_URL")
	setString(&c.Model.Name, "MODEL_NAME")
	setString(&c.Model.ArtifactPath, "MODEL_ARTIFACT")
	setString(&c.Source.Kind, "SOURCE_KIND")
	setString(&c.Source.Path, "SOURCE_PATH")
	setString(&c.Source.URL, "SOURCE_URL")
	setString(&c.Source.DSN, "SOURCE_DSN")
	setString(&c.Source.Endpoint, "S3_ENDPOINT")
	setString(&c.Source.Bucket, "S3_BUCKET")
	setString(&c.Source.Object, "S3_OBJECT")
	setString(&c.Source.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Source.SecretKey, "S3_SECRET_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	for _, v := range []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.Redis.DB},
		{"SOURCE_LIMIT", &c.Source.Limit},
		{"WORKER_COUNT", &c.Pipeline.Workers},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if value := os.Getenv("RANDOM_SEED"); value != "" {
		seed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("RANDOM_SEED: %w", err)
		}
		c.Pipeline.RandomSeed = seed
	}

	if err := setBool(&c.Source.UseSSL, "S3_USE_SSL"); err != nil {
		return err
	}
	return setBool(&c.Log.Development, "LOG_DEVELOPMENT")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.ReportTTL == 0 {
		c.Redis.ReportTTL = time.Hour
	}
	if c.Model.Name == "" {
		c.Model.Name = "lstm_model"
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 10 * time.Second
	}
	c.Source.Kind = strings.ToLower(c.Source.Kind)
	if c.Source.Kind == "" {
		c.Source.Kind = SourceFile
	}
	if c.Source.Kind == SourceFile && c.Source.Path == "" {
		c.Source.Path = "data/machine_data.csv"
	}
	if c.Source.Limit == 0 {
		c.Source.Limit = 1000
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	if c.Pipeline.WindowSize == 0 {
		c.Pipeline.WindowSize = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Model.ServingURL != "" && c.Model.ArtifactPath != "" {
		return fmt.Errorf("model: serving_url and artifact are mutually exclusive")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.WindowSize != 30 {
		return fmt.Errorf("pipeline.window_size is fixed at 30, got %d", c.Pipeline.WindowSize)
	}
	if c.Source.Limit < 1 {
		return fmt.Errorf("source.limit must be >= 1, got %d", c.Source.Limit)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for kind %s", c.Source.Kind)
		}
	case SourceHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required for kind %s", c.Source.Kind)
		}
	case SourcePostgres:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for kind %s", c.Source.Kind)
		}
	case SourceS3:
		if c.Source.Endpoint == "" || c.Source.Bucket == "" || c.Source.Object == "" {
			return fmt.Errorf("source.endpoint, source.bucket and source.object are required for kind %s", c.Source.Kind)
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	return nil
}
