// Package chain joins 2-3 generated clips into a single video with ffmpeg.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/maauso/clipforge/internal/media"
	"github.com/maauso/clipforge/internal/storage"
)

// Limits on the number of clips in one chain.
const (
	MinClips = 2
	MaxClips = 3
)

// Static errors for chain requests.
var (
	// ErrTooFewClips is returned when fewer than MinClips directories are given.
	ErrTooFewClips = errors.New("chain: need at least 2 clips")
	// ErrInvalidCrossfade is returned for a negative crossfade.
	ErrInvalidCrossfade = errors.New("chain: crossfade must be a finite, non-negative number")
	// ErrOutputRequired is returned when no output path is given.
	ErrOutputRequired = errors.New("chain: output path is required")
)

// Request describes one chain to build.
type Request struct {
	// Dirs are clip directories in playback order.
	Dirs []string
	// OutputPath is the joined video file.
	OutputPath string
	// Crossfade is the fade length in seconds. Zero disables crossfading.
	Crossfade float64
	// ForceReencode re-encodes instead of stream copying.
	ForceReencode bool
	// Publish uploads the output when the builder has a publisher.
	Publish bool
}

// Result describes a built chain.
type Result struct {
	OutputPath         string    `json:"output_path"`
	Strategy           Strategy  `json:"strategy"`
	Inputs             []string  `json:"inputs"`
	InputDurations     []float64 `json:"input_durations,omitempty"`
	TotalInputDuration float64   `json:"total_input_duration,omitempty"`
	Duration           float64   `json:"duration"`
	SizeBytes          int64     `json:"size_bytes"`
	URL                string    `json:"url,omitempty"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// Builder discovers clip videos and runs the selected join strategy.
type Builder struct {
	tool      media.Tool
	publisher storage.Publisher
	logger    *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPublisher enables uploading outputs for requests with Publish set.
func WithPublisher(p storage.Publisher) BuilderOption {
	return func(b *Builder) {
		b.publisher = p
	}
}

// NewBuilder creates a new Builder.
func NewBuilder(tool media.Tool, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{tool: tool, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build joins the clips of req. Directories beyond MaxClips are ignored with
// a warning. Durations are probed for every input; a failed probe is fatal
// only for crossfade, which needs them to place transitions.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if len(req.Dirs) < MinClips {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewClips, len(req.Dirs))
	}
	if req.Crossfade < 0 || math.IsNaN(req.Crossfade) || math.IsInf(req.Crossfade, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCrossfade, req.Crossfade)
	}
	if req.OutputPath == "" {
		return nil, ErrOutputRequired
	}

	res := &Result{
		OutputPath: req.OutputPath,
		Strategy:   SelectStrategy(req.Crossfade, req.ForceReencode),
	}

	dirs := req.Dirs
	if len(dirs) > MaxClips {
		warning := fmt.Sprintf("only the first %d of %d clips will be used", MaxClips, len(dirs))
		b.logger.Warn(warning)
		res.Warnings = append(res.Warnings, warning)
		dirs = dirs[:MaxClips]
	}

	if err := b.tool.CheckAvailable(ctx); err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		video, err := FindClipVideo(dir)
		if err != nil {
			return nil, err
		}
		res.Inputs = append(res.Inputs, video)
	}

	durations, err := b.probeInputs(ctx, res)
	if err != nil && res.Strategy == StrategyCrossfade {
		return nil, err
	}
	if err == nil {
		res.InputDurations = durations
		for _, d := range durations {
			res.TotalInputDuration += d
		}
	}

	outDir := filepath.Dir(req.OutputPath)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := b.tool.CheckFreeSpace(outDir); err != nil {
		return nil, err
	}

	b.logger.Info("chaining clips",
		slog.Int("clips", len(res.Inputs)),
		slog.String("strategy", string(res.Strategy)),
		slog.String("output", req.OutputPath),
	)

	if err := b.join(ctx, res, req.Crossfade); err != nil {
		return nil, err
	}

	if res.Duration, err = b.tool.Duration(ctx, req.OutputPath); err != nil {
		return nil, fmt.Errorf("probe output: %w", err)
	}
	if res.SizeBytes, err = b.tool.Size(req.OutputPath); err != nil {
		return nil, err
	}

	if req.Publish && b.publisher != nil {
		key := "videos/" + filepath.Base(req.OutputPath)
		if res.URL, err = storage.PublishFile(ctx, b.publisher, key, req.OutputPath); err != nil {
			return res, fmt.Errorf("publish: %w", err)
		}
		b.logger.Info("published chain", slog.String("url", res.URL))
	}

	b.logger.Info("chain complete",
		slog.String("output", res.OutputPath),
		slog.Float64("duration", res.Duration),
		slog.Int64("size_bytes", res.SizeBytes),
	)
	return res, nil
}

func (b *Builder) probeInputs(ctx context.Context, res *Result) ([]float64, error) {
	durations := make([]float64, 0, len(res.Inputs))
	for _, in := range res.Inputs {
		d, err := b.tool.Duration(ctx, in)
		if err != nil {
			warning := fmt.Sprintf("could not probe %s: %v", in, err)
			b.logger.Warn("could not probe input", slog.String("path", in), slog.String("error", err.Error()))
			res.Warnings = append(res.Warnings, warning)
			return nil, fmt.Errorf("probe %s: %w", in, err)
		}
		durations = append(durations, d)
	}
	return durations, nil
}

func (b *Builder) join(ctx context.Context, res *Result, fade float64) error {
	switch res.Strategy {
	case StrategyCrossfade:
		offsets, err := CrossfadeOffsets(res.InputDurations, fade)
		if err != nil {
			return err
		}
		return b.tool.Run(ctx, CrossfadeArgs(res.Inputs, offsets, fade, res.OutputPath, b.tool.EncodeArgs()))

	case StrategyReencode:
		return b.tool.Run(ctx, ReencodeArgs(res.Inputs, res.OutputPath, b.tool.EncodeArgs()))

	default:
		listFile, cleanup, err := media.WriteConcatList(res.Inputs)
		if err != nil {
			return fmt.Errorf("create concat list: %w", err)
		}
		defer cleanup()
		return b.tool.Run(ctx, ConcatArgs(listFile, res.OutputPath))
	}
}
