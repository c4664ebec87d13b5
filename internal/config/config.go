package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// configPathEnv points at an optional YAML file with non-secret tuning.
const configPathEnv = "NUTRILAB_CONFIG"

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int `yaml:"maxOpenConns"`
	MaxIdleConns       int `yaml:"maxIdleConns"`
	ConnMaxLifetimeSec int `yaml:"connMaxLifetimeSec"`

	// StatementTimeout is sent as the statement_timeout session parameter. Zero leaves the server default.
	StatementTimeout time.Duration `yaml:"statementTimeout"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LLMConfig configures the OpenAI-compatible completion API.
type LLMConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	APIKey        string        `yaml:"-"`
	Model         string        `yaml:"model"`
	VisionModel   string        `yaml:"visionModel"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"maxTokens"`
	MaxInputChars int           `yaml:"maxInputChars"`
	Timeout       time.Duration `yaml:"timeout"`
}

// WorkerPersistTimeout bounds the write that ends a claim. The write runs
// after the tick deadline, so a lease has to outlast both.
const WorkerPersistTimeout = 10 * time.Second

// WorkerConfig tunes the background extraction loop.
type WorkerConfig struct {
	Enabled      bool          `yaml:"-"`
	BatchSize    int           `yaml:"batchSize"`
	PollInterval time.Duration `yaml:"pollInterval"`
	TickTimeout  time.Duration `yaml:"tickTimeout"`
	ClaimLease   time.Duration `yaml:"claimLease"`
	Concurrency  int           `yaml:"concurrency"`
}

// DocumentConfig controls where document bytes may be read from.
type DocumentConfig struct {
	Root         string        `yaml:"root"`
	MaxBytes     int64         `yaml:"maxBytes"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// AppConfig is the centralized configuration struct for the application.
// Values come from defaults, then the optional YAML file, then environment variables.
type AppConfig struct {
	AppHost    string
	Port       string
	LogLevel   string
	Timezone   string
	AdminToken string
	Database   DatabaseConfig `yaml:"database"`
	MinIO      MinIOConfig
	LLM        LLMConfig      `yaml:"llm"`
	Worker     WorkerConfig   `yaml:"worker"`
	Documents  DocumentConfig `yaml:"documents"`
}

// fileConfig is the subset of AppConfig that may be set from YAML.
type fileConfig struct {
	LogLevel  string          `yaml:"logLevel"`
	Timezone  string          `yaml:"timezone"`
	Database  *DatabaseConfig `yaml:"database"`
	LLM       *LLMConfig      `yaml:"llm"`
	Worker    *workerFile     `yaml:"worker"`
	Documents *DocumentConfig `yaml:"documents"`
}

type workerFile struct {
	WorkerConfig `yaml:",inline"`
	Enabled      *bool `yaml:"enabled"`
}

func defaults() *AppConfig {
	return &AppConfig{
		AppHost:  "localhost:8080",
		Port:     "8080",
		LogLevel: "info",
		Timezone: "UTC",
		Database: DatabaseConfig{
			Port:               "5432",
			SSLMode:            "disable",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
			StatementTimeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			VisionModel:   "gpt-4o",
			Temperature:   0.3,
			MaxTokens:     10000,
			MaxInputChars: 20000,
			Timeout:       60 * time.Second,
		},
		Worker: WorkerConfig{
			Enabled:      true,
			BatchSize:    10,
			PollInterval: 30 * time.Second,
			TickTimeout:  5 * time.Minute,
			ClaimLease:   10 * time.Minute,
			Concurrency:  1,
		},
		Documents: DocumentConfig{
			Root:         "./uploads",
			MaxBytes:     25 << 20,
			FetchTimeout: 30 * time.Second,
		},
	}
}

// Load reads configuration. A .env file can be auto-loaded by importing
// _ "github.com/joho/godotenv/autoload"; real environment variables take precedence
// over both the .env file and the YAML overlay.
func Load() *AppConfig {
	cfg := defaults()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *AppConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Timezone != "" {
		c.Timezone = fc.Timezone
	}
	if fc.Database != nil {
		mergeInt(&c.Database.MaxOpenConns, fc.Database.MaxOpenConns)
		mergeInt(&c.Database.MaxIdleConns, fc.Database.MaxIdleConns)
		mergeInt(&c.Database.ConnMaxLifetimeSec, fc.Database.ConnMaxLifetimeSec)
		mergeDuration(&c.Database.StatementTimeout, fc.Database.StatementTimeout)
	}
	if l := fc.LLM; l != nil {
		mergeString(&c.LLM.BaseURL, l.BaseURL)
		mergeString(&c.LLM.Model, l.Model)
		mergeString(&c.LLM.VisionModel, l.VisionModel)
		if l.Temperature > 0 {
			c.LLM.Temperature = l.Temperature
		}
		mergeInt(&c.LLM.MaxTokens, l.MaxTokens)
		mergeInt(&c.LLM.MaxInputChars, l.MaxInputChars)
		mergeDuration(&c.LLM.Timeout, l.Timeout)
	}
	if w := fc.Worker; w != nil {
		if w.Enabled != nil {
			c.Worker.Enabled = *w.Enabled
		}
		mergeInt(&c.Worker.BatchSize, w.BatchSize)
		mergeDuration(&c.Worker.PollInterval, w.PollInterval)
		mergeDuration(&c.Worker.TickTimeout, w.TickTimeout)
		mergeDuration(&c.Worker.ClaimLease, w.ClaimLease)
		mergeInt(&c.Worker.Concurrency, w.Concurrency)
	}
	if d := fc.Documents; d != nil {
		mergeString(&c.Documents.Root, d.Root)
		if d.MaxBytes > 0 {
			c.Documents.MaxBytes = d.MaxBytes
		}
		mergeDuration(&c.Documents.FetchTimeout, d.FetchTimeout)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	c.AppHost = getEnv("APP_HOST", c.AppHost)
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Timezone = getEnv("TZ", c.Timezone)
	c.AdminToken = getEnv("ADMIN_TOKEN", c.AdminToken)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", c.Database.ConnMaxLifetimeSec)
	c.Database.StatementTimeout = getEnvDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = getEnv("MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.UseSSL = getEnvBool("MINIO_USE_SSL", c.MinIO.UseSSL)

	c.LLM.BaseURL = getEnv("AI_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("AI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("AI_MODEL", c.LLM.Model)
	c.LLM.VisionModel = getEnv("AI_VISION_MODEL", c.LLM.VisionModel)
	c.LLM.Temperature = getEnvFloat("AI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvInt("AI_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.MaxInputChars = getEnvInt("AI_MAX_INPUT_CHARS", c.LLM.MaxInputChars)
	c.LLM.Timeout = getEnvDuration("AI_TIMEOUT", c.LLM.Timeout)

	c.Worker.Enabled = getEnvBool("WORKER_ENABLED", c.Worker.Enabled)
	c.Worker.BatchSize = getEnvInt("WORKER_BATCH_SIZE", c.Worker.BatchSize)
	c.Worker.PollInterval = getEnvDuration("WORKER_POLL_INTERVAL", c.Worker.PollInterval)
	c.Worker.TickTimeout = getEnvDuration("WORKER_TICK_TIMEOUT", c.Worker.TickTimeout)
	c.Worker.ClaimLease = getEnvDuration("WORKER_CLAIM_LEASE", c.Worker.ClaimLease)
	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)

	c.Documents.Root = getEnv("DOCUMENT_ROOT", c.Documents.Root)
	c.Documents.MaxBytes = int64(getEnvInt("MAX_DOCUMENT_BYTES", int(c.Documents.MaxBytes)))
	c.Documents.FetchTimeout = getEnvDuration("DOCUMENT_FETCH_TIMEOUT", c.Documents.FetchTimeout)
}

// Validate reports every setting that prevents the service from running.
// The admin extraction routes need the AI key even with the worker disabled.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("AI_API_KEY is required"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, errors.New("WORKER_BATCH_SIZE must be positive"))
	}
	if c.Worker.PollInterval <= 0 {
		errs = append(errs, errors.New("WORKER_POLL_INTERVAL must be positive"))
	}
	if c.Worker.TickTimeout <= 0 {
		errs = append(errs, errors.New("WORKER_TICK_TIMEOUT must be positive"))
	} else if minLease := c.minClaimLease(); c.Worker.ClaimLease <= minLease {
		errs = append(errs, fmt.Errorf("WORKER_CLAIM_LEASE (%s) must exceed %s: a shorter lease lets another worker reclaim posts still in flight",
			c.Worker.ClaimLease, minLease))
	}
	if c.LLM.MaxInputChars <= 0 {
		errs = append(errs, errors.New("AI_MAX_INPUT_CHARS must be positive"))
	}
	if c.Documents.MaxBytes <= 0 {
		errs = append(errs, errors.New("MAX_DOCUMENT_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// minClaimLease is the longest a claim can be held: a full tick, or one
// admin extraction (fetch plus AI call), followed by the terminal write.
func (c *AppConfig) minClaimLease() time.Duration {
	return max(c.Worker.TickTimeout, c.Documents.FetchTimeout+c.LLM.Timeout) + WorkerPersistTimeout
}

// Location resolves Timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
