// Package server exposes clip generation and chaining over HTTP.
// Requests are accepted as background jobs and polled by ID.
package server

import (
	"time"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
)

// CreateClipRequest is the HTTP request body for generating one clip.
// Clips are written under the server's output directory.
type CreateClipRequest struct {
	ClipID           string `json:"clip_id" validate:"required,excludesall=/\\,ne=.,ne=.."`
	StartPrompt      string `json:"start_prompt" validate:"required"`
	EndPrompt        string `json:"end_prompt" validate:"required"`
	TransitionPrompt string `json:"transition_prompt" validate:"required"`
	AspectRatio      string `json:"aspect_ratio" validate:"omitempty,oneof=9:16 16:9 1:1"`
	Duration         int    `json:"duration" validate:"omitempty,oneof=4 6 8"`
	MaxRetries       int    `json:"max_retries" validate:"gte=0,lte=20"`
}

// CreateChainRequest is the HTTP request body for joining existing clips.
// Clips are referenced by ID inside the server's output directory.
type CreateChainRequest struct {
	// ClipIDs are the clips to join in playback order.
	ClipIDs []string `json:"clip_ids" validate:"required,min=2,dive,required,excludesall=/\\,ne=.,ne=.."`
	// OutputName is the file name of the joined video.
	OutputName string `json:"output_name" validate:"required,endswith=.mp4,excludesall=/\\"`
	// Crossfade is the fade length in seconds; zero disables it.
	Crossfade float64 `json:"crossfade" validate:"gte=0"`
	// Reencode forces a re-encode instead of a stream copy.
	Reencode bool `json:"reencode"`
	// PushToS3 uploads the joined video when S3 is configured.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after accepting a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Kind is clip or chain.
	Kind string `json:"kind"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	OutputPath  string         `json:"output_path,omitempty"`
	VideoURL    string         `json:"video_url,omitempty"`
	Clip        *clip.Artifact `json:"clip,omitempty"`
	Chain       *chain.Result  `json:"chain,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	// VideoBase64 is the output video, included on request for completed jobs.
	VideoBase64 string `json:"video_base64,omitempty"`
}

// ListJobsQuery holds the query parameters of GET /jobs.
type ListJobsQuery struct {
	Kind   string `validate:"omitempty,oneof=clip chain"`
	Status string `validate:"omitempty,oneof=IN_QUEUE RUNNING COMPLETED FAILED"`
	Active string `validate:"omitempty,boolean"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
