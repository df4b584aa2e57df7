// Package media runs ffmpeg and ffprobe for the chain builder.
package media

import "context"

// Tool defines the media operations consumed by the chain builder.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Tool interface {
	// CheckAvailable verifies the encoder binary can be executed.
	CheckAvailable(ctx context.Context) error

	// Run executes the encoder with args. A non-zero exit is a *ToolError.
	Run(ctx context.Context, args []string) error

	// Duration returns the container duration of a media file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Size returns the size of a file in bytes.
	Size(path string) (int64, error)

	// CheckFreeSpace fails when the filesystem holding dir has less free
	// space than the configured minimum.
	CheckFreeSpace(dir string) error

	// EncodeArgs returns the encoder arguments used when re-encoding.
	EncodeArgs() []string
}

// Runner executes external commands. It is the only place the media package
// touches the operating system's process API.
type Runner interface {
	// Run executes name with args. A command that started and exited non-zero
	// is reported through Output.ExitCode with a nil error; err is reserved
	// for failures to start or for cancellation.
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// Output captures the result of one command execution.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
