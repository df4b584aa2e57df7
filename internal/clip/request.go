package clip

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Request defaults.
const (
	DefaultAspectRatio = "9:16"
	DefaultDuration    = 4
	DefaultOutputDir   = "output"
)

// ErrInvalidRequest is returned when a request document fails validation.
var ErrInvalidRequest = errors.New("clip: invalid request")

// Request describes one clip to generate.
type Request struct {
	// ClipID names the output folder; it must be a single path segment.
	ClipID string `json:"clip_id" yaml:"clip_id" validate:"required,clipid"`
	// StartPrompt describes the starting frame.
	StartPrompt string `json:"start_prompt" yaml:"start_prompt" validate:"required"`
	// EndPrompt describes the ending frame.
	EndPrompt string `json:"end_prompt" yaml:"end_prompt" validate:"required"`
	// TransitionPrompt describes the motion between the frames.
	TransitionPrompt string `json:"transition_prompt" yaml:"transition_prompt" validate:"required"`
	// AspectRatio is one of 9:16, 16:9 or 1:1.
	AspectRatio string `json:"aspect_ratio,omitempty" yaml:"aspect_ratio,omitempty" validate:"oneof=9:16 16:9 1:1"`
	// Duration is the video length in seconds: 4, 6 or 8.
	Duration int `json:"duration,omitempty" yaml:"duration,omitempty" validate:"oneof=4 6 8"`
	// OutputDir is the base directory holding one folder per clip.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	// MaxRetries overrides the retry attempt cap for this clip when positive.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clipid", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
	})
	return v
}

// WithDefaults returns a copy of r with unset optional fields filled in.
func (r Request) WithDefaults() Request {
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if r.Duration == 0 {
		r.Duration = DefaultDuration
	}
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}
	return r
}

// Validate applies defaults and checks r. Violations wrap ErrInvalidRequest.
func (r Request) Validate() (Request, error) {
	r = r.WithDefaults()
	if err := validate.Struct(r); err != nil {
		return r, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return r, nil
}

// LoadRequest reads a request document and validates it. A document without
// output_dir is placed under outputDir; an empty outputDir falls back to
// DefaultOutputDir.
func LoadRequest(path, outputDir string) (Request, error) {
	req, err := DecodeRequest(path)
	if err != nil {
		return Request{}, err
	}
	if req.OutputDir == "" {
		req.OutputDir = outputDir
	}
	if req, err = req.Validate(); err != nil {
		return Request{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// DecodeRequest reads a request document without applying defaults or
// validating it. Files ending in .yaml or .yml are parsed as YAML,
// everything else as JSON.
func DecodeRequest(path string) (Request, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return Request{}, fmt.Errorf("read request %s: %w", path, err)
	}

	var req Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &req)
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return Request{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidRequest, path, err)
	}
	return req, nil
}
