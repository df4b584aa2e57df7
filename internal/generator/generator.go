// Package generator provides the provider-neutral interfaces for the
// generative capabilities the clip pipeline consumes: image generation,
// reference-guided image variation, and long-running video generation.
package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// Static errors shared by all providers.
var (
	// ErrRateLimited marks a transient rate-limit or quota signal. Callers retry it.
	ErrRateLimited = errors.New("generator: rate limited")
	// ErrNoArtifact is returned when a call succeeds but carries no image or video.
	ErrNoArtifact = errors.New("generator: response contained no artifact")
	// ErrGenerationFailed is returned when the provider reports a failed operation.
	ErrGenerationFailed = errors.New("generator: generation failed")
	// ErrOperationNotDone is returned when extracting a result from a running operation.
	ErrOperationNotDone = errors.New("generator: operation not done")
)

// ImageRequest asks for a single image from a text prompt.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
}

// VariationRequest asks for an image derived from a reference image.
type VariationRequest struct {
	Reference         []byte
	ReferenceMIMEType string // defaults to image/png
	Prompt            string
	AspectRatio       string
}

// VideoRequest asks for a video interpolating between two frames.
type VideoRequest struct {
	FirstFrame      []byte
	LastFrame       []byte
	Prompt          string
	AspectRatio     string
	DurationSeconds int
}

// VideoPayload is the artifact attached to a finished video operation.
// Providers fill in whichever representation they returned.
type VideoPayload struct {
	Bytes    []byte // Raw video bytes
	Base64   string // Base64-encoded video bytes
	URI      string // Storage reference held by the provider (e.g. gs://...)
	MIMEType string
}

// Operation is the handle of a long-running video generation.
// It is only mutated by refetching it through VideoGenerator.PollOperation.
type Operation struct {
	Name  string
	Done  bool
	Video *VideoPayload // Set when Done and the provider returned an artifact
	Error string        // Provider error message when the operation failed
}

// ImageGenerator generates images from text.
type ImageGenerator interface {
	// GenerateImage returns the encoded bytes of one generated image.
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// ImageVariator generates images guided by a reference image.
type ImageVariator interface {
	// GenerateImageVariation returns the encoded bytes of one generated image.
	GenerateImageVariation(ctx context.Context, req VariationRequest) ([]byte, error)
}

// VideoGenerator starts and polls long-running video generations.
type VideoGenerator interface {
	// GenerateVideo submits the request and returns the operation handle.
	GenerateVideo(ctx context.Context, req VideoRequest) (*Operation, error)

	// PollOperation refetches the operation status.
	PollOperation(ctx context.Context, op *Operation) (*Operation, error)
}

// Generator bundles every capability the clip pipeline needs.
type Generator interface {
	ImageGenerator
	ImageVariator
	VideoGenerator
}

// IsTransient reports whether err is worth retrying after a backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// VideoResult is the extracted outcome of a finished video operation.
// Exactly one of Bytes or URI is set.
type VideoResult struct {
	Bytes []byte
	URI   string
}

// IsReference reports whether the video is only available remotely.
func (r VideoResult) IsReference() bool {
	return len(r.Bytes) == 0 && r.URI != ""
}

// ExtractVideo returns the artifact of a finished operation. Inline bytes
// win over a storage reference; base64 payloads are decoded. An operation
// that finished without any artifact yields ErrNoArtifact.
func ExtractVideo(op *Operation) (VideoResult, error) {
	if op == nil || !op.Done {
		return VideoResult{}, ErrOperationNotDone
	}
	if op.Error != "" {
		return VideoResult{}, fmt.Errorf("%w: %s", ErrGenerationFailed, op.Error)
	}
	if op.Video == nil {
		return VideoResult{}, fmt.Errorf("%w: operation %s returned no video", ErrNoArtifact, op.Name)
	}

	switch {
	case len(op.Video.Bytes) > 0:
		return VideoResult{Bytes: op.Video.Bytes}, nil
	case op.Video.Base64 != "":
		data, err := base64.StdEncoding.DecodeString(op.Video.Base64)
		if err != nil {
			return VideoResult{}, fmt.Errorf("%w: decode video: %v", ErrNoArtifact, err)
		}
		return VideoResult{Bytes: data}, nil
	case op.Video.URI != "":
		return VideoResult{URI: op.Video.URI}, nil
	default:
		return VideoResult{}, fmt.Errorf("%w: operation %s returned an empty video", ErrNoArtifact, op.Name)
	}
}
