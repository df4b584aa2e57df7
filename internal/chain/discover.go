package chain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoVideo is matched by every *DiscoveryError.
var ErrNoVideo = errors.New("chain: no video found")

// DiscoveryError reports a clip directory without a usable video.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no video file found in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("no video file found in %s", e.Dir)
}

func (e *DiscoveryError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNoVideo, e.Err}
	}
	return []error{ErrNoVideo}
}

// preferredNames are checked in order before falling back to any .mp4.
var preferredNames = []string{"clip.mp4", "video.mp4"}

// FindClipVideo returns the video of a clip directory: clip.mp4, then
// video.mp4, then the first *.mp4 in lexical order.
func FindClipVideo(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", &DiscoveryError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &DiscoveryError{Dir: dir, Err: errors.New("not a directory")}
	}

	for _, name := range preferredNames {
		path := filepath.Join(dir, name)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
	if err != nil {
		return "", &DiscoveryError{Dir: dir, Err: err}
	}
	sort.Strings(matches)
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			return m, nil
		}
	}

	return "", &DiscoveryError{Dir: dir}
}
