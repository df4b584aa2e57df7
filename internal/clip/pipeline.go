// Package clip generates a single marketing clip: a start frame, an end
// frame derived from it, and a transition video between the two.
package clip

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipforge/internal/generator"
	"github.com/maauso/clipforge/internal/poll"
	"github.com/maauso/clipforge/internal/retry"
	"github.com/maauso/clipforge/internal/storage"
)

// Artifact file names inside a clip directory.
const (
	StartFrameFile = "start.png"
	EndFrameFile   = "end.png"
	VideoFile      = "clip.mp4"
)

// ConsistencyPrompt builds the end frame prompt that keeps the subject of
// the reference image.
func ConsistencyPrompt(endPrompt string) string {
	return fmt.Sprintf("Generate the exact same scene/person from the reference image, but now: %s. Maintain visual consistency.", endPrompt)
}

// Pipeline runs the clip stages sequentially against a generator.
type Pipeline struct {
	gen    generator.Generator
	logger *slog.Logger
	policy retry.Policy
	poller poll.Poller
	store  func(root string) (storage.ClipStore, error)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRetryPolicy sets the policy applied to every generation call.
func WithRetryPolicy(p retry.Policy) PipelineOption {
	return func(pl *Pipeline) {
		pl.policy = p
	}
}

// WithPoller sets the poller used while waiting for the video.
func WithPoller(p poll.Poller) PipelineOption {
	return func(pl *Pipeline) {
		pl.poller = p
	}
}

// WithStore replaces how the clip store is opened for an output directory.
func WithStore(open func(root string) (storage.ClipStore, error)) PipelineOption {
	return func(pl *Pipeline) {
		if open != nil {
			pl.store = open
		}
	}
}

// NewPipeline creates a new Pipeline.
func NewPipeline(gen generator.Generator, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		gen:    gen,
		logger: logger,
		policy: retry.DefaultPolicy(),
		poller: poll.DefaultPoller(),
		store: func(root string) (storage.ClipStore, error) {
			return storage.NewLocalStorage(root)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.policy.Logger == nil {
		p.policy.Logger = logger
	}
	if p.poller.Logger == nil {
		p.poller.Logger = logger
	}
	return p
}

// Run generates the clip described by req. Files are written to
// {OutputDir}/{ClipID} and overwritten on rerun. The returned artifact
// reflects the reached state even when err is non-nil; files produced by
// earlier stages are left in place. An invalid request returns a nil artifact.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Artifact, error) {
	req, err := req.Validate()
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(slog.String("clip_id", req.ClipID))
	policy := p.policy.WithMaxAttempts(req.MaxRetries)
	policy.Logger = logger
	poller := p.poller
	poller.Logger = logger

	art := newArtifact(req.ClipID)

	store, err := p.store(req.OutputDir)
	if err != nil {
		return p.fail(logger, art, fmt.Errorf("open output dir: %w", err))
	}
	dir, err := store.ClipDir(req.ClipID)
	if err != nil {
		return p.fail(logger, art, err)
	}
	art.Dir = dir

	logger.Info("creating clip",
		slog.String("aspect_ratio", req.AspectRatio),
		slog.Int("duration", req.Duration),
		slog.String("dir", dir),
	)

	// Start frame.
	if err := p.enter(logger, art, StateStartFrame); err != nil {
		return p.fail(logger, art, err)
	}
	start, err := retry.Execute(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return p.gen.GenerateImage(ctx, generator.ImageRequest{
			Prompt:      req.StartPrompt,
			AspectRatio: req.AspectRatio,
		})
	}, generator.IsTransient)
	if err != nil {
		return p.fail(logger, art, fmt.Errorf("start frame: %w", err))
	}
	if art.StartFramePath, err = store.WriteArtifact(ctx, req.ClipID, StartFrameFile, bytes.NewReader(start)); err != nil {
		return p.fail(logger, art, err)
	}
	logger.Info("saved start frame", slog.String("path", art.StartFramePath))

	// End frame, guided by the start frame.
	if err := p.enter(logger, art, StateEndFrame); err != nil {
		return p.fail(logger, art, err)
	}
	end, err := retry.Execute(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return p.gen.GenerateImageVariation(ctx, generator.VariationRequest{
			Reference:         start,
			ReferenceMIMEType: "image/png",
			Prompt:            ConsistencyPrompt(req.EndPrompt),
			AspectRatio:       req.AspectRatio,
		})
	}, generator.IsTransient)
	if err != nil {
		return p.fail(logger, art, fmt.Errorf("end frame: %w", err))
	}
	if art.EndFramePath, err = store.WriteArtifact(ctx, req.ClipID, EndFrameFile, bytes.NewReader(end)); err != nil {
		return p.fail(logger, art, err)
	}
	logger.Info("saved end frame", slog.String("path", art.EndFramePath))

	// Transition video.
	if err := p.enter(logger, art, StateVideo); err != nil {
		return p.fail(logger, art, err)
	}
	video, err := p.generateVideo(ctx, policy, poller, generator.VideoRequest{
		FirstFrame:      start,
		LastFrame:       end,
		Prompt:          req.TransitionPrompt,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.Duration,
	})
	if err != nil {
		return p.fail(logger, art, fmt.Errorf("video: %w", err))
	}

	if video.IsReference() {
		art.VideoURI = video.URI
		logger.Warn("video returned as storage reference, not downloaded", slog.String("uri", video.URI))
	} else {
		if art.VideoPath, err = store.WriteArtifact(ctx, req.ClipID, VideoFile, bytes.NewReader(video.Bytes)); err != nil {
			return p.fail(logger, art, err)
		}
		logger.Info("saved video", slog.String("path", art.VideoPath))
	}

	if err := p.enter(logger, art, StateDone); err != nil {
		return p.fail(logger, art, err)
	}
	logger.Info("clip complete")
	return art, nil
}

// generateVideo submits the video request and polls it to completion.
// Each status refetch is retried on transient errors with the same policy.
func (p *Pipeline) generateVideo(ctx context.Context, policy retry.Policy, poller poll.Poller, req generator.VideoRequest) (generator.VideoResult, error) {
	op, err := retry.Execute(ctx, policy, func(ctx context.Context) (*generator.Operation, error) {
		return p.gen.GenerateVideo(ctx, req)
	}, generator.IsTransient)
	if err != nil {
		return generator.VideoResult{}, err
	}
	if op == nil {
		return generator.VideoResult{}, fmt.Errorf("%w: no operation returned", generator.ErrNoArtifact)
	}

	op, err = poll.Until(ctx, poller, op,
		func(op *generator.Operation) bool { return op.Done },
		func(ctx context.Context, op *generator.Operation) (*generator.Operation, error) {
			next, err := retry.Execute(ctx, policy, func(ctx context.Context) (*generator.Operation, error) {
				return p.gen.PollOperation(ctx, op)
			}, generator.IsTransient)
			if err == nil && next == nil {
				return op, fmt.Errorf("%w: empty status for operation %s", generator.ErrNoArtifact, op.Name)
			}
			return next, err
		},
	)
	if err != nil {
		return generator.VideoResult{}, err
	}

	return generator.ExtractVideo(op)
}

func (p *Pipeline) enter(logger *slog.Logger, art *Artifact, state State) error {
	if err := art.transitionTo(state); err != nil {
		return err
	}
	logger.Info("stage", slog.String("state", string(state)))
	return nil
}

func (p *Pipeline) fail(logger *slog.Logger, art *Artifact, err error) (*Artifact, error) {
	art.fail(err)
	logger.Error("clip failed", slog.String("error", err.Error()))
	return art, err
}
