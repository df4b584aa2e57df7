package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// Static errors for media operations.
var (
	// ErrToolFailed is matched by every *ToolError.
	ErrToolFailed = errors.New("media: external tool failed")
	// ErrToolUnavailable is returned when the encoder binary cannot be executed.
	ErrToolUnavailable = errors.New("media: ffmpeg not available")
	// ErrNoPaths is returned when a concat list is requested for no inputs.
	ErrNoPaths = errors.New("media: no paths provided")
	// ErrInvalidDuration is returned when ffprobe reports an unusable duration.
	ErrInvalidDuration = errors.New("media: invalid duration")
	// ErrInsufficientDisk is returned when free space is below the minimum.
	ErrInsufficientDisk = errors.New("media: not enough free disk space")
)

// DefaultEncodeArgs are used for re-encoded output when none are configured.
var DefaultEncodeArgs = []string{"-c:v", "libx264", "-preset", "fast", "-crf", "23"}

// ToolError represents a non-zero exit of ffmpeg or ffprobe, including the
// stderr output.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d\nargs: %v\nstderr: %s", e.Tool, e.ExitCode, e.Args, e.Stderr)
	if e.Err != nil {
		msg = fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Tool, e.Err, e.Args, e.Stderr)
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrToolFailed, e.Err}
	}
	return []error{ErrToolFailed}
}

// FFmpeg implements Tool using the ffmpeg and ffprobe CLIs.
type FFmpeg struct {
	runner      Runner
	ffmpegPath  string
	ffprobePath string
	encodeArgs  []string
	minFreeMB   uint64
	logger      *slog.Logger
}

// Option is a function that configures an FFmpeg.
type Option func(*FFmpeg)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(f *FFmpeg) {
		if r != nil {
			f.runner = r
		}
	}
}

// WithFFmpegPath sets the ffmpeg binary. Empty keeps "ffmpeg" from PATH.
func WithFFmpegPath(path string) Option {
	return func(f *FFmpeg) {
		if path != "" {
			f.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets the ffprobe binary. Empty keeps "ffprobe" from PATH.
func WithFFprobePath(path string) Option {
	return func(f *FFmpeg) {
		if path != "" {
			f.ffprobePath = path
		}
	}
}

// WithEncodeArgs sets the arguments used for re-encoded output.
func WithEncodeArgs(args []string) Option {
	return func(f *FFmpeg) {
		if len(args) > 0 {
			f.encodeArgs = append([]string(nil), args...)
		}
	}
}

// WithMinFreeMB sets the free space required by CheckFreeSpace. Zero disables the check.
func WithMinFreeMB(mb uint64) Option {
	return func(f *FFmpeg) {
		f.minFreeMB = mb
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFFmpeg creates a new FFmpeg.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		runner:      ExecRunner{},
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		encodeArgs:  DefaultEncodeArgs,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EncodeArgs returns a copy of the configured encoder arguments.
func (f *FFmpeg) EncodeArgs() []string {
	return append([]string(nil), f.encodeArgs...)
}

// CheckAvailable runs "ffmpeg -version".
func (f *FFmpeg) CheckAvailable(ctx context.Context) error {
	out, err := f.runner.Run(ctx, f.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolUnavailable, err)
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("%w: %s -version exited with code %d", ErrToolUnavailable, f.ffmpegPath, out.ExitCode)
	}
	return nil
}

// Run executes ffmpeg with the given arguments and returns a *ToolError
// containing stderr output if the command fails.
func (f *FFmpeg) Run(ctx context.Context, args []string) error {
	f.logger.Info("running ffmpeg", slog.String("args", strings.Join(args, " ")))

	out, err := f.runner.Run(ctx, f.ffmpegPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &ToolError{Tool: "ffmpeg", Args: args, ExitCode: -1, Stderr: out.Stderr, Err: err}
	}
	if out.ExitCode != 0 {
		return &ToolError{Tool: "ffmpeg", Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr}
	}
	return nil
}

// Duration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, err := f.runner.Run(ctx, f.ffprobePath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, &ToolError{Tool: "ffprobe", Args: args, ExitCode: -1, Stderr: out.Stderr, Err: err}
	}
	if out.ExitCode != 0 {
		return 0, &ToolError{Tool: "ffprobe", Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr}
	}

	raw := strings.TrimSpace(out.Stdout)
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q for %s: %v", ErrInvalidDuration, raw, path, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: %s reports %.3fs", ErrInvalidDuration, path, duration)
	}
	return duration, nil
}

// Size returns the size of a file in bytes.
func (f *FFmpeg) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// CheckFreeSpace verifies the filesystem holding dir has at least the
// configured free space. Usage lookup failures are logged and ignored.
func (f *FFmpeg) CheckFreeSpace(dir string) error {
	if f.minFreeMB == 0 {
		return nil
	}

	usage, err := disk.Usage(dir)
	if err != nil {
		f.logger.Warn("could not get disk usage", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}

	required := f.minFreeMB * 1024 * 1024
	if usage.Free < required {
		return fmt.Errorf("%w: %s has %d MB free, need %d MB", ErrInsufficientDisk, dir, usage.Free/(1024*1024), f.minFreeMB)
	}
	return nil
}

// WriteConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer. The returned cleanup
// removes the file and is safe to call more than once.
func WriteConcatList(paths []string) (string, func(), error) {
	if len(paths) == 0 {
		return "", func() {}, ErrNoPaths
	}

	file, err := os.CreateTemp("", "clipforge-concat-*.txt")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	name := file.Name()
	cleanup := func() { _ = os.Remove(name) }

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			_ = file.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(file, "file '%s'\n", escapedPath); err != nil {
			_ = file.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("write to concat list: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close concat list: %w", err)
	}
	return name, cleanup, nil
}

// Compile-time check that FFmpeg implements Tool.
var _ Tool = (*FFmpeg)(nil)
