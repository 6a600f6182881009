package scoring

import "errors"

// ErrEmptyDossier is returned when final-review dossier construction
// admits zero files under the dossier budget — terminal for the run.
var ErrEmptyDossier = errors.New("scoring: no files fit within the dossier budget")

// ScoringFailure wraps a file that exhausted retry and was materialized
// as an empty scored file.
type ScoringFailure struct {
	FilePath string
	Reason   string
}

func (e *ScoringFailure) Error() string {
	return "scoring: " + e.FilePath + ": " + e.Reason
}
