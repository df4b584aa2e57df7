package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores job snapshots while their runs progress.
type Repository interface {
	// Save stores a snapshot of job, replacing any earlier one with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID returns the latest snapshot of a job.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns the jobs matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Job, error)
}

// ListFilter narrows List. Zero fields match every job.
type ListFilter struct {
	Kind   Kind
	Status Status
	// Active keeps only jobs that have not reached a terminal status.
	Active bool
}

// Matches reports whether j passes the filter.
func (f ListFilter) Matches(j *Job) bool {
	if f.Kind != "" && j.Kind != f.Kind {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return !f.Active || !j.IsTerminal()
}
