package orchestrator

import (
	"sync"
	"time"

	"github.com/reposcorer/reposcorer/internal/scoring"
)

// RunStatus is a run's position in the state machine, per spec.md §4.7:
// preparing → selecting_files → chunking_and_scoring → final_review →
// complete, with any state able to transition to error.
type RunStatus string

const (
	StatusPreparing          RunStatus = "preparing"
	StatusSelectingFiles     RunStatus = "selecting_files"
	StatusChunkingAndScoring RunStatus = "chunking_and_scoring"
	StatusFinalReview        RunStatus = "final_review"
	StatusComplete           RunStatus = "complete"
	StatusError              RunStatus = "error"
)

// LogEntry is one append-only log record. ID is a strictly increasing
// counter per run (invariant 12).
type LogEntry struct {
	ID        int       `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunState is a single run's mutable lifecycle state. Every mutation holds
// mu. Status changes and progress notes go through transition/fail/log,
// each of which appends one log entry, so log IDs stay strictly increasing
// regardless of how many goroutines touch a run. The scorecard, its path
// and the project context are set under mu without a log entry.
type RunState struct {
	mu sync.Mutex

	RunID         string
	RepoURL       string
	RepoName      string
	LocalPath     string
	AllFiles      []string
	Status        RunStatus
	LogHistory    []LogEntry
	ProjectContext *scoring.ProjectContext
	Scorecard     *scoring.ProjectScorecard
	ScorecardPath string
	Err           string

	nextLogID int
}

func newRunState(runID, repoURL string) *RunState {
	rs := &RunState{RunID: runID, RepoURL: repoURL, Status: StatusPreparing, nextLogID: 1}
	rs.appendLogLocked("run created")
	return rs
}

func (r *RunState) appendLogLocked(message string) {
	r.LogHistory = append(r.LogHistory, LogEntry{ID: r.nextLogID, Message: message, Timestamp: time.Now()})
	r.nextLogID++
}

// transition moves the run to a new status and appends one log entry. A
// no-op once the run has already reached a terminal status: a stray
// pipeline-stage call racing the terminal write must not resurrect a
// completed or errored run.
func (r *RunState) transition(status RunStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isTerminal(r.Status) {
		return
	}
	r.Status = status
	r.appendLogLocked(message)
}

// fail moves the run to the terminal error state. A no-op if the run is
// already terminal, so a late failure can't overwrite a prior complete
// (or a prior error) with a different error message.
func (r *RunState) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isTerminal(r.Status) {
		return
	}
	r.Status = StatusError
	r.Err = err.Error()
	r.appendLogLocked("error: " + err.Error())
}

// log appends a progress note without changing status.
func (r *RunState) log(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLogLocked(message)
}

func (r *RunState) setScorecard(sc *scoring.ProjectScorecard, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scorecard = sc
	r.ScorecardPath = path
}

// View is a read-only snapshot safe to hand to the façade, matching the
// GET /analysis/{runId}/status response shape in spec.md §6.
type View struct {
	RunID      string                    `json:"runId"`
	Status     RunStatus                 `json:"status"`
	LogHistory []LogEntry                `json:"logHistory"`
	Report     *scoring.ProjectScorecard `json:"report"`
	Error      *string                   `json:"error"`
}

func (r *RunState) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]LogEntry, len(r.LogHistory))
	copy(history, r.LogHistory)

	v := View{RunID: r.RunID, Status: r.Status, LogHistory: history}
	if r.Status == StatusComplete {
		v.Report = r.Scorecard
	}
	if r.Status == StatusError {
		errCopy := r.Err
		v.Error = &errCopy
	}
	return v
}

// isTerminal reports whether status is complete or error; once a run is in
// either, transition and fail are no-ops.
func isTerminal(s RunStatus) bool {
	return s == StatusComplete || s == StatusError
}
