package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
)

var (
	// ErrRunnerUnavailable is returned when a job kind is submitted to a
	// service that was built without a runner for it.
	ErrRunnerUnavailable = errors.New("job: runner not configured")
	// ErrClipInProgress is returned when a clip job is submitted for a clip
	// directory another unfinished job is writing to.
	ErrClipInProgress = errors.New("job: clip already in progress")
	// ErrShuttingDown is returned for submissions after Shutdown, and is the
	// failure recorded on runs cancelled by it.
	ErrShuttingDown = errors.New("job: service shutting down")
)

// ClipRunner generates one clip.
type ClipRunner interface {
	Run(ctx context.Context, req clip.Request) (*clip.Artifact, error)
}

// ChainRunner joins existing clips.
type ChainRunner interface {
	Build(ctx context.Context, req chain.Request) (*chain.Result, error)
}

// Compile-time checks that the concrete runners satisfy the ports.
var (
	_ ClipRunner  = (*clip.Pipeline)(nil)
	_ ChainRunner = (*chain.Builder)(nil)
)

// Service accepts clip and chain jobs and runs them in the background.
// Runs are detached from the submitting request, limited to a fixed number
// in flight, and cancelled by Shutdown.
type Service struct {
	repo   Repository
	clips  ClipRunner
	chains ChainRunner
	sem    *semaphore.Weighted
	logger *slog.Logger
	wg     sync.WaitGroup

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	// clipDirs maps the directory of each unfinished clip job to its job ID.
	clipDirs map[string]string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClipRunner enables clip jobs.
func WithClipRunner(r ClipRunner) ServiceOption {
	return func(s *Service) {
		s.clips = r
	}
}

// WithChainRunner enables chain jobs.
func WithChainRunner(r ChainRunner) ServiceOption {
	return func(s *Service) {
		s.chains = r
	}
}

// WithMaxConcurrent limits how many jobs run at once. Values below 1 are ignored.
func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		repo:     repo,
		sem:      semaphore.NewWeighted(2),
		logger:   logger,
		base:     base,
		cancel:   cancel,
		clipDirs: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitClip validates req, stores a new clip job and starts it.
// Invalid requests are rejected before a job is created, and so is a clip
// whose directory is still being written by an unfinished job.
func (s *Service) SubmitClip(ctx context.Context, req clip.Request) (*Job, error) {
	if s.clips == nil {
		return nil, fmt.Errorf("%w: clip", ErrRunnerUnavailable)
	}
	req, err := req.Validate()
	if err != nil {
		return nil, err
	}
	dir := filepath.Clean(filepath.Join(req.OutputDir, req.ClipID))
	return s.submit(ctx, KindClip, dir, func(ctx context.Context, j *Job) error {
		art, err := s.clips.Run(ctx, req)
		if err != nil {
			j.SetClip(art)
			return err
		}
		return j.CompleteClip(art)
	})
}

// SubmitChain stores a new chain job and starts it.
func (s *Service) SubmitChain(ctx context.Context, req chain.Request) (*Job, error) {
	if s.chains == nil {
		return nil, fmt.Errorf("%w: chain", ErrRunnerUnavailable)
	}
	return s.submit(ctx, KindChain, "", func(ctx context.Context, j *Job) error {
		res, err := s.chains.Build(ctx, req)
		if err != nil {
			return err
		}
		return j.CompleteChain(res)
	})
}

// Get returns a snapshot of the job with the given ID.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// List returns snapshots of the jobs matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	return s.repo.List(ctx, filter)
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting jobs and waits for started ones to finish. When
// ctx ends first, the remaining runs are cancelled and recorded as FAILED
// before Shutdown returns ctx's error.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
	}

	s.logger.Warn("cancelling unfinished jobs", slog.String("reason", ctx.Err().Error()))
	s.cancel()
	<-done
	return ctx.Err()
}

func (s *Service) submit(ctx context.Context, kind Kind, clipDir string, work func(context.Context, *Job) error) (*Job, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if clipDir != "" {
		if other, busy := s.clipDirs[clipDir]; busy {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is used by %s", ErrClipInProgress, clipDir, other)
		}
	}

	j := New(kind)
	if err := s.repo.Save(ctx, j); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("save job: %w", err)
	}
	if clipDir != "" {
		s.clipDirs[clipDir] = j.ID
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("job created",
		slog.String("job_id", j.ID),
		slog.String("kind", string(kind)),
	)

	snapshot := j.Clone()

	// The run keeps the request's values but not its cancellation; only
	// Shutdown cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.base, cancel)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()
		if clipDir != "" {
			defer s.releaseClipDir(clipDir)
		}
		s.run(runCtx, j, work)
	}()

	return snapshot, nil
}

func (s *Service) releaseClipDir(dir string) {
	s.mu.Lock()
	delete(s.clipDirs, dir)
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context, j *Job, work func(context.Context, *Job) error) {
	logger := s.logger.With(slog.String("job_id", j.ID), slog.String("kind", string(j.Kind)))

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(ctx, logger, j, err)
		return
	}
	defer s.sem.Release(1)

	if err := j.Start(); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		return
	}
	s.save(ctx, logger, j)
	logger.Info("job started")

	s.finish(ctx, logger, j, work(ctx, j))
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, j *Job, err error) {
	if err != nil && s.base.Err() != nil && errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: %w", ErrShuttingDown, err)
	}
	if err != nil {
		if failErr := j.Fail(err.Error()); failErr != nil {
			logger.Error("failed to mark job failed", slog.String("error", failErr.Error()))
		}
		logger.Error("job failed", slog.String("error", err.Error()))
	} else {
		logger.Info("job completed", slog.String("output", j.Clone().OutputPath))
	}
	s.save(ctx, logger, j)
}

func (s *Service) save(ctx context.Context, logger *slog.Logger, j *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}
