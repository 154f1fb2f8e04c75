package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the live subtitles backend
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8000"`

	// Recognition model configuration
	ModelCacheDir string `envconfig:"MODEL_CACHE_DIR" default:"./models"`
	DefaultModel  string `envconfig:"DEFAULT_MODEL" default:"small"`
	Language      string `envconfig:"LANGUAGE" default:"sv"`    // Transcription language code
	CatalogPath   string `envconfig:"MODEL_CATALOG" default:""` // Optional YAML catalog override

	// Model load/download limits
	ModelLoadTimeout     int `envconfig:"MODEL_LOAD_TIMEOUT" default:"300"`     // Wall-clock ceiling in seconds
	DownloadMaxRetries   int `envconfig:"DOWNLOAD_MAX_RETRIES" default:"3"`     // Retries for transient download errors
	DownloadRetryBackoff int `envconfig:"DOWNLOAD_RETRY_BACKOFF" default:"500"` // Initial backoff in milliseconds

	// Audio chunking configuration
	SampleRate     int     `envconfig:"SAMPLE_RATE" default:"16000"`  // Capture rate in Hz (mono)
	BlockSamples   int     `envconfig:"BLOCK_SAMPLES" default:"1024"` // Samples per capture block
	BaseBlocks     int     `envconfig:"BASE_BLOCKS" default:"30"`     // Chunk size baseline in blocks
	BlocksPerLevel int     `envconfig:"BLOCKS_PER_LEVEL" default:"2"` // Blocks removed per VAD level
	OverlapRatio   float64 `envconfig:"OVERLAP_RATIO" default:"0.25"` // Fraction of a chunk carried over
	InstantBlocks  int     `envconfig:"INSTANT_BLOCKS" default:"8"`   // Chunk size for instant mode, in blocks

	// Subtitle reconciliation configuration
	HistorySize            int     `envconfig:"HISTORY_SIZE" default:"5"`             // Output history capacity
	HistorySizeTranslation int     `envconfig:"HISTORY_SIZE_TRANSLATION" default:"3"` // Capacity when translation is on
	DuplicateWindow        float64 `envconfig:"DUPLICATE_WINDOW" default:"2.0"`       // Final duplicate window in seconds
	ReconcileWindow        float64 `envconfig:"RECONCILE_WINDOW" default:"3.0"`       // Instant supersession window in seconds

	// Ollama translation configuration
	OllamaURL             string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaTimeout         int    `envconfig:"OLLAMA_TIMEOUT" default:"30"` // seconds
	TranslationModel      string `envconfig:"TRANSLATION_MODEL" default:"llama3.2:3b"`
	TranslateMaxFailures  int    `envconfig:"TRANSLATE_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	TranslateResetTimeout int    `envconfig:"TRANSLATE_RESET_TIMEOUT" default:"30"` // Seconds before half-open probe

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.OverlapRatio < 0 || c.OverlapRatio >= 1 {
		return fmt.Errorf("OVERLAP_RATIO must be in [0,1), got %f", c.OverlapRatio)
	}
	// Chunk size must stay positive at the highest sensitivity level
	if c.BaseBlocks-5*c.BlocksPerLevel <= 0 {
		return fmt.Errorf("BASE_BLOCKS %d too small for BLOCKS_PER_LEVEL %d", c.BaseBlocks, c.BlocksPerLevel)
	}
	if c.HistorySize <= 0 || c.HistorySizeTranslation <= 0 {
		return fmt.Errorf("history sizes must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
