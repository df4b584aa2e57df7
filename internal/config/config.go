// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrProjectIDRequired is returned when VERTEX_AI_PROJECT_ID is not set.
	ErrProjectIDRequired = errors.New("config: VERTEX_AI_PROJECT_ID is required")
	// ErrCredentialsRequired is returned when VERTEX_AI_SERVICE_ACCOUNT_JSON is not set.
	ErrCredentialsRequired = errors.New("config: VERTEX_AI_SERVICE_ACCOUNT_JSON is required")
	// ErrCredentialsNotFound is returned when the service account file does not exist.
	ErrCredentialsNotFound = errors.New("config: service account file not found")
	// ErrInvalidEncodeArgs is returned when ENCODE_ARGS cannot be split.
	ErrInvalidEncodeArgs = errors.New("config: invalid ENCODE_ARGS")
	// ErrInvalidValue is returned for out-of-range numeric settings.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Vertex AI settings
	ProjectID          string `env:"VERTEX_AI_PROJECT_ID" json:"project_id,omitempty"`
	ServiceAccountJSON string `env:"VERTEX_AI_SERVICE_ACCOUNT_JSON" json:"-"` // Masked in JSON
	ImageLocation      string `env:"VERTEX_AI_IMAGE_LOCATION, default=global" json:"image_location"`
	VideoLocation      string `env:"VERTEX_AI_VIDEO_LOCATION, default=us-central1" json:"video_location"`
	ImageModel         string `env:"IMAGE_MODEL, default=gemini-3-pro-image-preview" json:"image_model"`
	VideoModel         string `env:"VIDEO_MODEL, default=veo-3.1-generate-001" json:"video_model"`
	VideoResolution    string `env:"VIDEO_RESOLUTION, default=720p" json:"video_resolution"`
	RequestsPerMinute  int    `env:"REQUESTS_PER_MINUTE, default=0" json:"requests_per_minute"`

	// Retry settings
	MaxRetries     int           `env:"MAX_RETRIES, default=8" json:"max_retries"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY, default=5s" json:"retry_base_delay"`
	RetryMaxDelay  time.Duration `env:"RETRY_MAX_DELAY, default=120s" json:"retry_max_delay"`
	RetryMaxJitter time.Duration `env:"RETRY_MAX_JITTER, default=2s" json:"retry_max_jitter"`

	// Polling settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=15s" json:"poll_interval"`
	PollTimeout     time.Duration `env:"POLL_TIMEOUT, default=20m" json:"poll_timeout"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=0" json:"poll_max_attempts"`

	// Output and media settings
	OutputDir          string `env:"OUTPUT_DIR, default=output" json:"output_dir"`
	FFmpegPath         string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath        string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	EncodeArgs         string `env:"ENCODE_ARGS, default=-c:v libx264 -preset fast -crf 23" json:"encode_args"`
	MinFreeDiskMB      uint64 `env:"MIN_FREE_DISK_MB, default=200" json:"min_free_disk_mb"`
	MaxConcurrentClips int    `env:"MAX_CONCURRENT_CLIPS, default=2" json:"max_concurrent_clips"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Vertex credentials are not required here; see ValidateGeneration.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: PORT=%d", ErrInvalidValue, c.Port)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: MAX_RETRIES=%d", ErrInvalidValue, c.MaxRetries)
	}
	if c.MaxConcurrentClips <= 0 {
		return fmt.Errorf("%w: MAX_CONCURRENT_CLIPS=%d", ErrInvalidValue, c.MaxConcurrentClips)
	}
	if c.RequestsPerMinute < 0 || c.PollMaxAttempts < 0 {
		return fmt.Errorf("%w: negative rate or poll cap", ErrInvalidValue)
	}
	if c.PollTimeout <= 0 && c.PollMaxAttempts == 0 {
		return fmt.Errorf("%w: POLL_TIMEOUT or POLL_MAX_ATTEMPTS must bound polling", ErrInvalidValue)
	}
	if _, err := c.EncoderArgs(); err != nil {
		return err
	}
	return nil
}

// ValidateGeneration checks the Vertex AI settings needed to generate clips.
func (c *Config) ValidateGeneration() error {
	if c.ProjectID == "" {
		return ErrProjectIDRequired
	}
	if c.ServiceAccountJSON == "" {
		return ErrCredentialsRequired
	}
	if _, err := os.Stat(c.ServiceAccountJSON); err != nil {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, c.ServiceAccountJSON)
	}
	return nil
}

// EncoderArgs splits ENCODE_ARGS with shell quoting rules.
func (c *Config) EncoderArgs() ([]string, error) {
	args, err := shlex.Split(c.EncodeArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncodeArgs, err)
	}
	return args, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ProjectID: %s, ImageModel: %s, VideoModel: %s, MaxRetries: %d, PollInterval: %s, PollTimeout: %s, OutputDir: %s, MaxConcurrentClips: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ProjectID,
		c.ImageModel,
		c.VideoModel,
		c.MaxRetries,
		c.PollInterval,
		c.PollTimeout,
		c.OutputDir,
		c.MaxConcurrentClips,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
