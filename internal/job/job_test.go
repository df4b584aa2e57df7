package job

import (
	"sync"
	"testing"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
)

func TestNew(t *testing.T) {
	job := New(KindClip)

	if job.ID == "" {
		t.Error("expected job to have an ID")
	}
	if job.Kind != KindClip {
		t.Errorf("expected kind %s, got %s", KindClip, job.Kind)
	}
	if job.Status != StatusInQueue {
		t.Errorf("expected status %s, got %s", StatusInQueue, job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if job.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestNewWithID(t *testing.T) {
	id := "test-job-123"
	job := NewWithID(id, KindChain)

	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if job.Kind != KindChain {
		t.Errorf("expected kind %s, got %s", KindChain, job.Kind)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"IN_QUEUE to RUNNING", StatusInQueue, StatusRunning, false},
		{"IN_QUEUE to FAILED", StatusInQueue, StatusFailed, false},
		{"RUNNING to COMPLETED", StatusRunning, StatusCompleted, false},
		{"RUNNING to FAILED", StatusRunning, StatusFailed, false},
		{"IN_QUEUE to COMPLETED", StatusInQueue, StatusCompleted, true},
		{"RUNNING to IN_QUEUE", StatusRunning, StatusInQueue, true},
		{"COMPLETED to RUNNING", StatusCompleted, StatusRunning, true},
		{"FAILED to RUNNING", StatusFailed, StatusRunning, true},
		{"COMPLETED to FAILED", StatusCompleted, StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := New(KindClip)
			job.Status = tt.from

			err := job.TransitionTo(tt.to)
			if tt.wantErr && err != ErrInvalidTransition {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestJob_Start(t *testing.T) {
	job := New(KindClip)

	if err := job.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, job.Status)
	}
	if job.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
	if err := job.Start(); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition on second start, got %v", err)
	}
}

func TestJob_CompleteClip(t *testing.T) {
	job := New(KindClip)
	_ = job.Start()

	art := &clip.Artifact{ClipID: "launch", VideoPath: "/out/launch/clip.mp4", State: clip.StateDone}
	if err := job.CompleteClip(art); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	if job.OutputPath != art.VideoPath {
		t.Errorf("expected output %s, got %s", art.VideoPath, job.OutputPath)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestJob_CompleteClip_StorageReference(t *testing.T) {
	job := New(KindClip)
	_ = job.Start()

	_ = job.CompleteClip(&clip.Artifact{ClipID: "launch", VideoURI: "gs://bucket/clip.mp4", State: clip.StateDone})

	if job.OutputPath != "" {
		t.Errorf("expected no local output, got %s", job.OutputPath)
	}
	if job.VideoURL != "gs://bucket/clip.mp4" {
		t.Errorf("expected storage reference as URL, got %s", job.VideoURL)
	}
}

func TestJob_CompleteChain(t *testing.T) {
	job := New(KindChain)
	_ = job.Start()

	res := &chain.Result{OutputPath: "/out/chain.mp4", URL: "https://bucket/videos/chain.mp4"}
	if err := job.CompleteChain(res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.OutputPath != res.OutputPath || job.VideoURL != res.URL {
		t.Errorf("expected output fields from result, got %q %q", job.OutputPath, job.VideoURL)
	}
}

func TestJob_CompleteRequiresRunning(t *testing.T) {
	job := New(KindChain)

	if err := job.CompleteChain(&chain.Result{}); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestJob_Fail(t *testing.T) {
	job := New(KindClip)
	_ = job.Start()

	errMsg := "retry exhausted"
	if err := job.Fail(errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}
	if job.Error != errMsg {
		t.Errorf("expected error %s, got %s", errMsg, job.Error)
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusInQueue, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			job := New(KindClip)
			job.Status = tt.status
			if job.IsTerminal() != tt.expected {
				t.Errorf("expected IsTerminal() = %v for status %s", tt.expected, tt.status)
			}
		})
	}
}

func TestJob_Clone(t *testing.T) {
	job := New(KindChain)
	_ = job.Start()
	_ = job.CompleteChain(&chain.Result{
		OutputPath: "/out/chain.mp4",
		Inputs:     []string{"a/clip.mp4", "b/clip.mp4"},
		Warnings:   []string{"could not probe a/clip.mp4"},
	})

	clone := job.Clone()

	if clone.ID != job.ID || clone.Status != job.Status || clone.OutputPath != job.OutputPath {
		t.Errorf("clone differs from original: %+v", clone)
	}

	clone.Chain.Inputs[0] = "changed"
	clone.Chain.Warnings[0] = "changed"
	if job.Chain.Inputs[0] == "changed" || job.Chain.Warnings[0] == "changed" {
		t.Error("modifying clone should not affect original")
	}
}

func TestJob_Clone_Clip(t *testing.T) {
	job := New(KindClip)
	job.SetClip(&clip.Artifact{ClipID: "launch", State: clip.StateFailed})

	clone := job.Clone()
	clone.Clip.Error = "changed"

	if job.Clip.Error == "changed" {
		t.Error("modifying cloned artifact should not affect original")
	}
}

func TestJob_IsTerminal_ThreadSafe(t *testing.T) {
	job := New(KindClip)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = job.IsTerminal()
		}()
		go func() {
			defer wg.Done()
			_ = job.Clone()
		}()
	}
	_ = job.Start()
	wg.Wait()
}
