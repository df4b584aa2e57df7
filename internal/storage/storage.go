// Package storage provides clip artifact storage on local disk and
// publishing of final videos to S3.
package storage

import (
	"context"
	"io"
)

// ClipStore defines where clip artifacts live. Each clip owns one directory
// under the store root, and rerunning a clip overwrites its files in place.
type ClipStore interface {
	// ClipDir creates (if needed) and returns the directory of clipID.
	ClipDir(clipID string) (string, error)

	// WriteArtifact atomically writes name inside the directory of clipID and
	// returns the written path. An existing file is replaced.
	WriteArtifact(ctx context.Context, clipID, name string, data io.Reader) (path string, err error)
}

// Publisher uploads a finished artifact to persistent storage.
type Publisher interface {
	// Upload stores data under key and returns its public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
