package clip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_Transitions(t *testing.T) {
	t.Run("forward path", func(t *testing.T) {
		a := newArtifact("c")
		for _, s := range []State{StateStartFrame, StateEndFrame, StateVideo, StateDone} {
			require.NoError(t, a.transitionTo(s))
		}
		assert.Equal(t, StateDone, a.State)
		assert.True(t, a.State.IsTerminal())
	})

	t.Run("stages cannot be skipped", func(t *testing.T) {
		a := newArtifact("c")
		err := a.transitionTo(StateVideo)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StateInit, a.State)
	})

	t.Run("failed from any non-terminal state", func(t *testing.T) {
		for _, from := range []State{StateInit, StateStartFrame, StateEndFrame, StateVideo} {
			assert.True(t, canTransition(from, StateFailed), "from %s", from)
		}
		assert.False(t, canTransition(StateDone, StateFailed))
		assert.False(t, canTransition(StateFailed, StateStartFrame))
	})

	t.Run("fail keeps terminal states", func(t *testing.T) {
		a := newArtifact("c")
		a.fail(errors.New("boom"))
		assert.Equal(t, StateFailed, a.State)
		assert.Equal(t, "boom", a.Error)

		a.fail(errors.New("second"))
		assert.Equal(t, "boom", a.Error)
	})
}
