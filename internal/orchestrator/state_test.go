package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunState_TransitionNoOpOnceTerminal(t *testing.T) {
	rs := newRunState("run-1", "https://example.com/repo.git")
	rs.transition(StatusComplete, "done")

	rs.transition(StatusSelectingFiles, "should not apply")

	assert.Equal(t, StatusComplete, rs.View().Status)
}

func TestRunState_FailNoOpOnceTerminal(t *testing.T) {
	rs := newRunState("run-1", "https://example.com/repo.git")
	rs.transition(StatusComplete, "done")

	rs.fail(errors.New("late failure"))

	view := rs.View()
	assert.Equal(t, StatusComplete, view.Status)
	assert.Nil(t, view.Error)
}

func TestRunState_FailIsTerminalAndSticky(t *testing.T) {
	rs := newRunState("run-1", "https://example.com/repo.git")
	rs.fail(errors.New("boom"))

	rs.transition(StatusFinalReview, "should not apply")

	view := rs.View()
	assert.Equal(t, StatusError, view.Status)
	assert.NotNil(t, view.Error)
	assert.Equal(t, "boom", *view.Error)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(StatusComplete))
	assert.True(t, isTerminal(StatusError))
	assert.False(t, isTerminal(StatusPreparing))
	assert.False(t, isTerminal(StatusSelectingFiles))
	assert.False(t, isTerminal(StatusChunkingAndScoring))
	assert.False(t, isTerminal(StatusFinalReview))
}
