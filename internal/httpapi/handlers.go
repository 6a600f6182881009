package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reposcorer/reposcorer/internal/orchestrator"
)

// handleStartAnalysis implements POST /analysis.
func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req startAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RepoURL == "" {
		http.Error(w, "repoUrl is required", http.StatusBadRequest)
		return
	}

	rs, err := s.orchestrator.Start(r.Context(), req.RunID, req.RepoURL, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(startAnalysisResponse{RunID: rs.RunID, AllFiles: rs.AllFiles})
}

// handleStatus implements GET /analysis/{runId}/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	view, err := s.orchestrator.Status(runID)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	writeJSON(w, view)
}

// handleScoreFile implements POST /analysis/{runId}/score-file.
func (s *Server) handleScoreFile(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	var req scoreFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FilePath == "" {
		http.Error(w, "filePath is required", http.StatusBadRequest)
		return
	}

	scored, err := s.orchestrator.ScoreFile(r.Context(), runID, req.FilePath)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	writeJSON(w, scored)
}

// handleFileContent implements GET /analysis/{runId}/file-content?filePath=….
func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	filePath := r.URL.Query().Get("filePath")
	if filePath == "" {
		http.Error(w, "filePath query parameter is required", http.StatusBadRequest)
		return
	}

	data, err := s.orchestrator.FileContent(runID, filePath)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

// writeOrchestratorError maps orchestrator sentinel errors to the HTTP
// status codes spec.md §6 and §7 name: 404 for not-found, 403 for a path
// escaping the repository root, 500 otherwise.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrRunNotFound), errors.Is(err, orchestrator.ErrFileNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, orchestrator.ErrPathEscape):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
