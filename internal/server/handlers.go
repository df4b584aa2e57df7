package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
	"github.com/maauso/clipforge/internal/job"
)

// JobService accepts jobs and reports their state.
type JobService interface {
	SubmitClip(ctx context.Context, req clip.Request) (*job.Job, error)
	SubmitChain(ctx context.Context, req chain.Request) (*job.Job, error)
	Get(ctx context.Context, jobID string) (*job.Job, error)
	List(ctx context.Context, filter job.ListFilter) ([]*job.Job, error)
}

var _ JobService = (*job.Service)(nil)

// ChainsDir is the folder under the output directory holding joined videos.
const ChainsDir = "chains"

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   JobService
	validator *validator.Validate
	logger    *slog.Logger
	outputDir string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithOutputDir sets the directory clips are written to and chained from.
func WithOutputDir(dir string) HandlerOption {
	return func(h *Handlers) {
		if dir != "" {
			h.outputDir = dir
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		outputDir: clip.DefaultOutputDir,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateClip handles POST /clips requests.
func (h *Handlers) CreateClip(w http.ResponseWriter, r *http.Request) {
	var req CreateClipRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.service.SubmitClip(r.Context(), clip.Request{
		ClipID:           req.ClipID,
		StartPrompt:      req.StartPrompt,
		EndPrompt:        req.EndPrompt,
		TransitionPrompt: req.TransitionPrompt,
		AspectRatio:      req.AspectRatio,
		Duration:         req.Duration,
		OutputDir:        h.outputDir,
		MaxRetries:       req.MaxRetries,
	})
	if err != nil {
		h.submitFailed(w, err)
		return
	}

	h.logger.Info("clip job accepted",
		slog.String("job_id", created.ID),
		slog.String("clip_id", req.ClipID),
	)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Kind:   string(created.Kind),
		Status: string(created.Status),
	})
}

// CreateChain handles POST /chains requests.
func (h *Handlers) CreateChain(w http.ResponseWriter, r *http.Request) {
	var req CreateChainRequest
	if !h.decode(w, r, &req) {
		return
	}

	dirs := make([]string, len(req.ClipIDs))
	for i, id := range req.ClipIDs {
		dirs[i] = filepath.Join(h.outputDir, id)
	}

	created, err := h.service.SubmitChain(r.Context(), chain.Request{
		Dirs:          dirs,
		OutputPath:    filepath.Join(h.outputDir, ChainsDir, req.OutputName),
		Crossfade:     req.Crossfade,
		ForceReencode: req.Reencode,
		Publish:       req.PushToS3,
	})
	if err != nil {
		h.submitFailed(w, err)
		return
	}

	h.logger.Info("chain job accepted",
		slog.String("job_id", created.ID),
		slog.Int("clips", len(dirs)),
	)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Kind:   string(created.Kind),
		Status: string(created.Status),
	})
}

// GetJob handles GET /jobs/{id} requests. With include_video=true the local
// output of a completed job is returned base64 encoded.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := toJobResponse(foundJob)

	includeVideo, _ := strconv.ParseBool(r.URL.Query().Get("include_video"))
	if includeVideo && foundJob.Status == job.StatusCompleted && foundJob.OutputPath != "" {
		videoData, err := os.ReadFile(foundJob.OutputPath)
		if err != nil {
			// Don't fail the request, just log and omit video
			h.logger.Error("failed to read output video",
				slog.String("job_id", jobID),
				slog.String("path", foundJob.OutputPath),
				slog.String("error", err.Error()),
			)
		} else {
			resp.VideoBase64 = base64.StdEncoding.EncodeToString(videoData)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListJobs handles GET /jobs requests. The optional kind, status and
// active query parameters narrow the result, which is ordered newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListJobsQuery{
		Kind:   q.Get("kind"),
		Status: q.Get("status"),
		Active: q.Get("active"),
	}
	if err := h.validator.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	active, _ := strconv.ParseBool(params.Active)

	jobs, err := h.service.List(r.Context(), job.ListFilter{
		Kind:   job.Kind(params.Kind),
		Status: job.Status(params.Status),
		Active: active,
	})
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Error:       j.Error,
		OutputPath:  j.OutputPath,
		VideoURL:    j.VideoURL,
		Clip:        j.Clip,
		Chain:       j.Chain,
		CreatedAt:   j.CreatedAt,
		StartedAt:   optionalTime(j.StartedAt),
		CompletedAt: optionalTime(j.CompletedAt),
	}
}

// decode reads and validates a JSON body, writing the error response itself.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) submitFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clip.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, job.ErrClipInProgress):
		writeError(w, http.StatusConflict, err.Error(), "CLIP_IN_PROGRESS")
	case errors.Is(err, job.ErrRunnerUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "RUNNER_UNAVAILABLE")
	case errors.Is(err, job.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "SHUTTING_DOWN")
	default:
		h.logger.Error("failed to create job", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
