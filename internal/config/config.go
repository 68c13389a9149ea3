package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded once at process start via caarlos0/env struct tags,
// grouped by concern the way the teacher groups its own config.
type Config struct {
	// Server
	Port            int           `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL   string        `env:"DATABASE_URL"`
	DBMaxConns    int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns    int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLife time.Duration `env:"DB_MAX_CONN_LIFE" envDefault:"1h"`

	// Object storage
	S3Endpoint  string `env:"S3_ENDPOINT_URL"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"auction-sheets"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	// Observability
	SentryDSN    string `env:"SENTRY_DSN"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	MetricsPath  string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Ingest
	UploadMaxSizeMB int    `env:"UPLOAD_MAX_SIZE_MB" envDefault:"15"`
	PipelineVersion string `env:"PIPELINE_VERSION" envDefault:"v1"`

	// OCR engines
	OCRUseGPU      bool   `env:"OCR_USE_GPU" envDefault:"false"`
	VLEndpoint     string `env:"VL_ENDPOINT" envDefault:"http://localhost:8001/v1/vl"`
	VLMaxNewTokens int    `env:"VL_MAX_NEW_TOKENS" envDefault:"128"`
	VLMaxPixels    int    `env:"VL_MAX_PIXELS" envDefault:"400000"`
	VLMinPixels    int    `env:"VL_MIN_PIXELS" envDefault:"0"`
	LineOCREndpoint string `env:"LINE_OCR_ENDPOINT" envDefault:"http://localhost:8002/v1/ocr"`
	OCRLanguage     string `env:"OCR_LANGUAGE" envDefault:"jpn+eng"`
	OCRTimeout      time.Duration `env:"OCR_TIMEOUT" envDefault:"30s"`

	// Stage worker pools
	WorkersPreprocess int `env:"WORKERS_PREPROCESS" envDefault:"4"`
	WorkersOCR        int `env:"WORKERS_OCR" envDefault:"2"`
	WorkersExtract    int `env:"WORKERS_EXTRACT" envDefault:"4"`
	WorkersValidate   int `env:"WORKERS_VALIDATE" envDefault:"4"`

	StageQueueDepth int `env:"STAGE_QUEUE_DEPTH" envDefault:"1000"`

	RetryMaxPreprocess int `env:"RETRY_MAX_PREPROCESS" envDefault:"3"`
	RetryMaxOCR        int `env:"RETRY_MAX_OCR" envDefault:"2"`
	RetryMaxExtract    int `env:"RETRY_MAX_EXTRACT" envDefault:"2"`
	RetryMaxValidate   int `env:"RETRY_MAX_VALIDATE" envDefault:"2"`

	WatchdogPollInterval time.Duration `env:"WATCHDOG_POLL_INTERVAL" envDefault:"60s"`

	// Feature flags
	DebugEndpointsEnabled bool `env:"DEBUG_ENDPOINTS_ENABLED" envDefault:"true"`
	SyncPipelineMode      bool `env:"SYNC_PIPELINE_MODE" envDefault:"false"` // for testing
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.SentryDSN == "" {
			return fmt.Errorf("SENTRY_DSN is required in production")
		}
	}
	if c.UploadMaxSizeMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE_MB must be positive")
	}
	return nil
}

// WatchdogThresholds mirrors the per-state stuck-document thresholds
// (SPEC_FULL.md §4.8 / §5), kept as a fixed map rather than configuration
// because the source tool treats them as a stable operational contract.
var WatchdogThresholds = map[string]time.Duration{
	"preprocessing": 120 * time.Second,
	"ocr":            480 * time.Second,
	"extracting":     120 * time.Second,
	"validating":     120 * time.Second,
}
