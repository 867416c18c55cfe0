package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Generator backends selectable via GENERATOR_BACKEND.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Translation failure policies selectable via TRANSLATION_FAILURE_POLICY.
const (
	// PolicyFallback generates from the untranslated text.
	PolicyFallback = "fallback"
	// PolicyAbort fails the queue entry.
	PolicyAbort = "abort"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`

	// Dispatcher: bounded pool so concurrent calls to the AI service stay capped.
	Workers           int `env:"DISPATCH_WORKERS" envDefault:"8"`
	DispatchQueueSize int `env:"DISPATCH_QUEUE_SIZE" envDefault:"1000"`

	// Generation service
	GeneratorBackend  string        `env:"GENERATOR_BACKEND" envDefault:"openai"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GenerateTimeout   time.Duration `env:"GENERATE_TIMEOUT" envDefault:"60s"`
	GenerateRateLimit int           `env:"GENERATE_RATE_LIMIT" envDefault:"5"`

	// Translation service
	TranslatorURL            string        `env:"TRANSLATOR_URL" envDefault:"http://localhost:5000"`
	TranslatorAPIKey         string        `env:"TRANSLATOR_API_KEY"`
	TranslateTimeout         time.Duration `env:"TRANSLATE_TIMEOUT" envDefault:"10s"`
	TranslateRateLimit       int           `env:"TRANSLATE_RATE_LIMIT" envDefault:"20"`
	TargetLanguage           string        `env:"TARGET_LANGUAGE" envDefault:"en"`
	TranslationFailurePolicy string        `env:"TRANSLATION_FAILURE_POLICY" envDefault:"fallback"`

	// Notification fan-out. Empty RedisURL keeps events in the log only.
	RedisURL      string `env:"REDIS_URL"`
	NotifyChannel string `env:"NOTIFY_CHANNEL" envDefault:"note-queue-events"`
	NotifyBuffer  int    `env:"NOTIFY_BUFFER" envDefault:"256"`

	// Queue monitor
	MonitorInterval  time.Duration `env:"MONITOR_INTERVAL" envDefault:"15s"`
	StaleQueuedAfter time.Duration `env:"STALE_QUEUED_AFTER" envDefault:"10m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.GeneratorBackend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai backend"))
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GENERATOR_BACKEND %q", c.GeneratorBackend))
	}

	switch c.TranslationFailurePolicy {
	case PolicyFallback, PolicyAbort:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSLATION_FAILURE_POLICY %q", c.TranslationFailurePolicy))
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("DISPATCH_WORKERS must be at least 1"))
	}
	if c.DispatchQueueSize < 1 {
		errs = append(errs, errors.New("DISPATCH_QUEUE_SIZE must be at least 1"))
	}
	if c.GenerateRateLimit < 1 || c.TranslateRateLimit < 1 {
		errs = append(errs, errors.New("rate limits must be at least 1 per second"))
	}

	return errors.Join(errs...)
}
