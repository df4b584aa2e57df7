package main

import (
	"errors"

	"github.com/maauso/clipforge/internal/chain"
	"github.com/maauso/clipforge/internal/clip"
	"github.com/maauso/clipforge/internal/config"
	"github.com/maauso/clipforge/internal/generator"
	"github.com/maauso/clipforge/internal/media"
	"github.com/maauso/clipforge/internal/poll"
	"github.com/maauso/clipforge/internal/retry"
	"github.com/maauso/clipforge/internal/storage"
	"github.com/maauso/clipforge/internal/vertex"
)

// Process exit codes, one per error class.
const (
	exitOK        = 0
	exitFailure   = 1
	exitConfig    = 2
	exitDiscovery = 3
	exitExhausted = 4
	exitDataShape = 5
	exitTool      = 6
	exitTimeout   = 7
)

var configErrors = []error{
	errUsage,
	config.ErrProjectIDRequired,
	config.ErrCredentialsRequired,
	config.ErrCredentialsNotFound,
	config.ErrInvalidEncodeArgs,
	config.ErrInvalidValue,
	vertex.ErrProjectIDRequired,
	vertex.ErrCredentialsFileRequired,
	storage.ErrS3NotConfigured,
	clip.ErrInvalidRequest,
	clip.ErrDuplicateClip,
	chain.ErrTooFewClips,
	chain.ErrInvalidCrossfade,
	chain.ErrOutputRequired,
	chain.ErrFadeTooLong,
}

var toolErrors = []error{
	media.ErrToolFailed,
	media.ErrToolUnavailable,
	media.ErrInvalidDuration,
	media.ErrInsufficientDisk,
}

// exitCode maps err to a process exit code. Retry exhaustion is checked
// first since it also wraps the last transient error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, retry.ErrExhausted):
		return exitExhausted
	case errors.Is(err, poll.ErrTimeout):
		return exitTimeout
	case errors.Is(err, generator.ErrNoArtifact):
		return exitDataShape
	case errors.Is(err, chain.ErrNoVideo):
		return exitDiscovery
	case isAny(err, toolErrors):
		return exitTool
	case isAny(err, configErrors):
		return exitConfig
	default:
		return exitFailure
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
