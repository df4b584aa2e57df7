package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/clipforge/internal/bootstrap"
	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
	"github.com/maauso/clipforge/internal/config"
	"github.com/maauso/clipforge/internal/storage"
)

// loadConfig reads the environment and builds a logger writing to w.
// Commands log to stderr so stdout carries only the JSON result.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLoggerTo(w)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags clip.Request
	fs.StringVar(&flags.ClipID, "clip-id", "", "clip identifier, used as the output folder name")
	fs.StringVar(&flags.StartPrompt, "start", "", "prompt for the starting frame")
	fs.StringVar(&flags.EndPrompt, "end", "", "prompt for the ending frame")
	fs.StringVar(&flags.TransitionPrompt, "transition", "", "prompt for the motion between frames")
	fs.StringVar(&flags.AspectRatio, "aspect", "", "aspect ratio: 9:16, 16:9 or 1:1 (default 9:16)")
	fs.IntVar(&flags.Duration, "duration", 0, "video length in seconds: 4, 6 or 8 (default 4)")
	fs.StringVar(&flags.OutputDir, "output-dir", "", "base output directory (default $OUTPUT_DIR)")
	fs.IntVar(&flags.MaxRetries, "max-retries", 0, "retry attempt cap for this clip (default $MAX_RETRIES)")

	files, err := parseArgs(fs, args)
	if err != nil {
		return usageError(err)
	}
	if len(files) > 1 {
		return fmt.Errorf("%w: create takes at most one request file", errUsage)
	}

	cfg, logger, err := loadConfig(stderr)
	if err != nil {
		return err
	}

	var req clip.Request
	if len(files) == 1 {
		if req, err = clip.DecodeRequest(files[0]); err != nil {
			return err
		}
	}
	req = overlayFlags(fs, req, flags)
	if req.OutputDir == "" {
		req.OutputDir = cfg.OutputDir
	}
	if req, err = req.Validate(); err != nil {
		return err
	}

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	art, runErr := pipeline.Run(ctx, req)
	if art != nil {
		if err := writeJSON(stdout, art); err != nil {
			return err
		}
	}
	return runErr
}

// overlayFlags copies every flag the user set onto req.
func overlayFlags(fs *flag.FlagSet, req, flags clip.Request) clip.Request {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "clip-id":
			req.ClipID = flags.ClipID
		case "start":
			req.StartPrompt = flags.StartPrompt
		case "end":
			req.EndPrompt = flags.EndPrompt
		case "transition":
			req.TransitionPrompt = flags.TransitionPrompt
		case "aspect":
			req.AspectRatio = flags.AspectRatio
		case "duration":
			req.Duration = flags.Duration
		case "output-dir":
			req.OutputDir = flags.OutputDir
		case "max-retries":
			req.MaxRetries = flags.MaxRetries
		}
	})
	return req
}

func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("parallel", 0, "clips generated at once (default $MAX_CONCURRENT_CLIPS)")

	files, err := parseArgs(fs, args)
	if err != nil {
		return usageError(err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: batch needs at least one request file", errUsage)
	}

	cfg, logger, err := loadConfig(stderr)
	if err != nil {
		return err
	}

	reqs := make([]clip.Request, 0, len(files))
	for _, file := range files {
		req, err := clip.LoadRequest(file, cfg.OutputDir)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	parallel := cfg.MaxConcurrentClips
	if *limit > 0 {
		parallel = *limit
	}
	results, runErr := pipeline.RunBatch(ctx, reqs, parallel)
	if results != nil {
		if err := writeJSON(stdout, results); err != nil {
			return err
		}
	}
	return runErr
}

func runChain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chain", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var req chain.Request
	fs.StringVar(&req.OutputPath, "o", "", "output video path")
	fs.StringVar(&req.OutputPath, "output", "", "output video path")
	fs.Float64Var(&req.Crossfade, "crossfade", 0, "crossfade length in seconds (0 disables)")
	fs.BoolVar(&req.ForceReencode, "reencode", false, "re-encode instead of stream copy")
	fs.BoolVar(&req.Publish, "push-to-s3", false, "upload the result to S3")

	dirs, err := parseArgs(fs, args)
	if err != nil {
		return usageError(err)
	}
	req.Dirs = dirs

	cfg, logger, err := loadConfig(stderr)
	if err != nil {
		return err
	}

	var pub storage.Publisher
	if req.Publish {
		if !cfg.S3Enabled() {
			return fmt.Errorf("--push-to-s3: %w", storage.ErrS3NotConfigured)
		}
		if pub, err = bootstrap.NewPublisher(ctx, cfg, logger); err != nil {
			return err
		}
	}

	builder, err := bootstrap.NewChainBuilder(cfg, logger, pub)
	if err != nil {
		return err
	}

	res, err := builder.Build(ctx, req)
	if res != nil {
		if werr := writeJSON(stdout, res); werr != nil {
			return werr
		}
	}
	return err
}

func usageError(err error) error {
	if err == flag.ErrHelp {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
