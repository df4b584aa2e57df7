package clip

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ErrDuplicateClip is returned when a batch names the same clip directory twice.
var ErrDuplicateClip = errors.New("clip: duplicate clip in batch")

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	ClipID   string    `json:"clip_id"`
	Artifact *Artifact `json:"artifact,omitempty"`
	Err      error     `json:"-"`
}

// RunBatch runs independent pipelines concurrently, at most limit at a time
// (limit <= 0 means unbounded). A failing clip does not stop the others.
// Results are in request order; the error joins every per-clip failure.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []Request, limit int) ([]BatchResult, error) {
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		r = r.WithDefaults()
		key := filepath.Join(filepath.Clean(r.OutputDir), r.ClipID)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClip, key)
		}
		seen[key] = struct{}{}
	}

	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, req := range reqs {
		g.Go(func() error {
			art, err := p.Run(ctx, req)
			results[i] = BatchResult{ClipID: req.ClipID, Artifact: art, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("clip %s: %w", r.ClipID, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
