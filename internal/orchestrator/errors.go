package orchestrator

import "errors"

// Sentinel errors mapped to HTTP status codes by the façade, per
// spec.md §7's NotFound/Forbidden error kinds.
var (
	ErrRunNotFound    = errors.New("orchestrator: run not found")
	ErrFileNotFound   = errors.New("orchestrator: file not found")
	ErrPathEscape     = errors.New("orchestrator: path escapes repository root")
	ErrNoFilesSelected = errors.New("no files were selected")
)
