package clip

import (
	"errors"
	"fmt"
)

// State is the stage a clip pipeline has reached.
type State string

const (
	// StateInit is the state before any generation call.
	StateInit State = "INIT"
	// StateStartFrame indicates the start frame is being generated.
	StateStartFrame State = "START_FRAME"
	// StateEndFrame indicates the end frame is being generated.
	StateEndFrame State = "END_FRAME"
	// StateVideo indicates the transition video is being generated.
	StateVideo State = "VIDEO"
	// StateDone indicates the clip finished.
	StateDone State = "DONE"
	// StateFailed indicates a stage failed.
	StateFailed State = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("clip: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateInit:       {StateStartFrame, StateFailed},
	StateStartFrame: {StateEndFrame, StateFailed},
	StateEndFrame:   {StateVideo, StateFailed},
	StateVideo:      {StateDone, StateFailed},
	StateDone:       {},
	StateFailed:     {},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is DONE or FAILED.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Artifact records the files produced for one clip. VideoPath is empty when
// the provider returned only a storage reference, held in VideoURI.
type Artifact struct {
	ClipID         string `json:"clip_id"`
	Dir            string `json:"dir"`
	StartFramePath string `json:"start"`
	EndFramePath   string `json:"end"`
	VideoPath      string `json:"video,omitempty"`
	VideoURI       string `json:"video_uri,omitempty"`
	State          State  `json:"state"`
	Error          string `json:"error,omitempty"`
}

func newArtifact(clipID string) *Artifact {
	return &Artifact{ClipID: clipID, State: StateInit}
}

// transitionTo moves the artifact to state or returns ErrInvalidTransition.
func (a *Artifact) transitionTo(state State) error {
	if !canTransition(a.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, state)
	}
	a.State = state
	return nil
}

// fail records err and moves to FAILED. Terminal artifacts are left as is.
func (a *Artifact) fail(err error) {
	if a.State.IsTerminal() {
		return
	}
	a.Error = err.Error()
	a.State = StateFailed
}
