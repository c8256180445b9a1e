package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	// Tenant tokens
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"fallback-secret-key-for-dev-only"`
	JWTExpirationDur time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`

	// Pipeline endpoints
	PipelineAPIKey string `env:"PIPELINE_API_KEY"`

	// Ingestion
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	ImportBatchSize int    `env:"IMPORT_BATCH_SIZE" envDefault:"500"`
	ImportWorkers   int    `env:"IMPORT_WORKERS" envDefault:"2"`
	ImportQueueSize int    `env:"IMPORT_QUEUE_SIZE" envDefault:"32"`

	// FX reference data
	FXBaseURL      string  `env:"FX_BASE_URL" envDefault:"https://query1.finance.yahoo.com/v8/finance/chart"`
	FXRateLimitRPS float64 `env:"FX_RATE_LIMIT_RPS" envDefault:"2"`
}

var (
	appConfig *Config
	mu        sync.Mutex
)

// Load loads configuration from the environment, reading .env first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ImportBatchSize <= 0 {
		return nil, fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", cfg.ImportBatchSize)
	}
	if cfg.ImportWorkers <= 0 {
		return nil, fmt.Errorf("IMPORT_WORKERS must be positive, got %d", cfg.ImportWorkers)
	}

	mu.Lock()
	appConfig = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}
