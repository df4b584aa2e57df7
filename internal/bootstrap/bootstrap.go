// Package bootstrap wires configuration into the clip pipeline, the chain
// builder and the HTTP job service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
	"github.com/maauso/clipforge/internal/config"
	"github.com/maauso/clipforge/internal/job"
	"github.com/maauso/clipforge/internal/media"
	"github.com/maauso/clipforge/internal/poll"
	"github.com/maauso/clipforge/internal/retry"
	"github.com/maauso/clipforge/internal/storage"
	"github.com/maauso/clipforge/internal/vertex"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Jobs *job.Service
}

// RetryPolicy builds the retry policy for generation calls.
func RetryPolicy(cfg *config.Config, logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxJitter:   cfg.RetryMaxJitter,
		Logger:      logger,
	}
}

// Poller builds the poller for video operations.
func Poller(cfg *config.Config, logger *slog.Logger) poll.Poller {
	return poll.Poller{
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		MaxPolls: cfg.PollMaxAttempts,
		Logger:   logger,
	}
}

// NewPipeline creates the clip pipeline backed by Vertex AI.
// It fails when the Vertex AI settings are missing.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*clip.Pipeline, error) {
	if err := cfg.ValidateGeneration(); err != nil {
		return nil, err
	}

	client, err := vertex.NewClient(ctx, cfg.ProjectID, cfg.ServiceAccountJSON,
		vertex.WithImageModel(cfg.ImageModel),
		vertex.WithVideoModel(cfg.VideoModel),
		vertex.WithLocations(cfg.ImageLocation, cfg.VideoLocation),
		vertex.WithResolution(cfg.VideoResolution),
		vertex.WithRequestsPerMinute(cfg.RequestsPerMinute),
	)
	if err != nil {
		return nil, fmt.Errorf("create Vertex AI client: %w", err)
	}

	logger.Info("Vertex AI client configured",
		slog.String("project_id", cfg.ProjectID),
		slog.String("image_model", cfg.ImageModel),
		slog.String("video_model", cfg.VideoModel),
	)

	return clip.NewPipeline(client, logger,
		clip.WithRetryPolicy(RetryPolicy(cfg, logger)),
		clip.WithPoller(Poller(cfg, logger)),
	), nil
}

// NewFFmpeg creates the ffmpeg tool from the media settings.
func NewFFmpeg(cfg *config.Config, logger *slog.Logger) (*media.FFmpeg, error) {
	args, err := cfg.EncoderArgs()
	if err != nil {
		return nil, err
	}
	return media.NewFFmpeg(
		media.WithFFmpegPath(cfg.FFmpegPath),
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithEncodeArgs(args),
		media.WithMinFreeMB(cfg.MinFreeDiskMB),
		media.WithLogger(logger),
	), nil
}

// NewChainBuilder creates the chain builder. A nil publisher disables uploads.
func NewChainBuilder(cfg *config.Config, logger *slog.Logger, pub storage.Publisher) (*chain.Builder, error) {
	tool, err := NewFFmpeg(cfg, logger)
	if err != nil {
		return nil, err
	}
	var opts []chain.BuilderOption
	if pub != nil {
		opts = append(opts, chain.WithPublisher(pub))
	}
	return chain.NewBuilder(tool, logger, opts...), nil
}

// NewPublisher returns the S3 publisher, or nil when S3 is not configured.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if !cfg.S3Enabled() {
		logger.Info("S3 publishing disabled")
		return nil, nil
	}

	s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 publishing configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Store, nil
}

// NewDependencies creates and initializes all dependencies for the HTTP server.
// Chaining is always available; clip generation only when Vertex AI is configured.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	pub, err := NewPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	builder, err := NewChainBuilder(cfg, logger, pub)
	if err != nil {
		return nil, err
	}

	opts := []job.ServiceOption{
		job.WithChainRunner(builder),
		job.WithMaxConcurrent(cfg.MaxConcurrentClips),
	}

	pipeline, err := NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Warn("clip generation disabled", slog.String("reason", err.Error()))
	} else {
		opts = append(opts, job.WithClipRunner(pipeline))
	}

	return &Dependencies{
		Jobs: job.NewService(job.NewMemoryRepository(), logger, opts...),
	}, nil
}
