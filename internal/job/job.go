// Package job tracks clip and chain runs submitted over HTTP.
// It includes the Job entity with its state machine and the repository
// used to look jobs up while they run in the background.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
	"github.com/maauso/clipforge/internal/job/id"
)

// Kind is the type of work a job runs.
type Kind string

const (
	// KindClip generates one clip.
	KindClip Kind = "clip"
	// KindChain joins existing clips.
	KindChain Kind = "chain"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted but has not started.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job stopped with an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Job is one submitted clip or chain run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is what the job runs.
	Kind Kind
	// Status is the current job state.
	Status Status
	// Error contains the error message if the job failed.
	Error string
	// Clip is the clip artifact for clip jobs, including failed ones.
	Clip *clip.Artifact
	// Chain is the chain result for completed chain jobs.
	Chain *chain.Result
	// OutputPath is the main output file of the job.
	OutputPath string
	// VideoURL is the published URL of the output, if any.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID.
func New(kind Kind) *Job {
	return NewWithID(id.Generate(), kind)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// CompleteClip records a generated clip and marks the job COMPLETED.
func (j *Job) CompleteClip(art *clip.Artifact) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Clip = art
	if art != nil {
		j.OutputPath = art.VideoPath
		j.VideoURL = art.VideoURI
	}
	return j.transitionLocked(StatusCompleted)
}

// CompleteChain records a built chain and marks the job COMPLETED.
func (j *Job) CompleteChain(res *chain.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Chain = res
	if res != nil {
		j.OutputPath = res.OutputPath
		j.VideoURL = res.URL
	}
	return j.transitionLocked(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = errMsg
	return j.transitionLocked(StatusFailed)
}

// SetClip records a partial clip artifact, typically before Fail.
func (j *Job) SetClip(art *clip.Artifact) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Clip = art
	j.UpdatedAt = time.Now()
}

// IsTerminal reports whether the job has completed or failed.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	c := &Job{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Error:       j.Error,
		OutputPath:  j.OutputPath,
		VideoURL:    j.VideoURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Clip != nil {
		art := *j.Clip
		c.Clip = &art
	}
	if j.Chain != nil {
		res := *j.Chain
		res.Inputs = slices.Clone(j.Chain.Inputs)
		res.InputDurations = slices.Clone(j.Chain.InputDurations)
		res.Warnings = slices.Clone(j.Chain.Warnings)
		c.Chain = &res
	}
	return c
}
