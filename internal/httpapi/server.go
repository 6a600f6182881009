// Package httpapi is the thin HTTP façade over internal/orchestrator,
// exposing the run-oriented polling protocol spec.md §6 names.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/reposcorer/reposcorer/internal/orchestrator"
	"github.com/reposcorer/reposcorer/internal/scoring"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the façade needs,
// narrowed to an interface so handlers are testable against a fake.
type Orchestrator interface {
	Start(ctx context.Context, runID, repoURL, readmeOverride string) (*orchestrator.RunState, error)
	Status(runID string) (orchestrator.View, error)
	ScoreFile(ctx context.Context, runID, path string) (*scoring.ScoredFile, error)
	FileContent(runID, path string) ([]byte, error)
}

// Server owns the mux and the allowed-origin CORS allowlist.
type Server struct {
	orchestrator Orchestrator
	origins      map[string]struct{}
	server       *http.Server
}

// New builds a Server listening on port, accepting requests from allowedOrigins.
// An empty allowedOrigins allows every origin (local/dev convenience).
func New(port int, o Orchestrator, allowedOrigins []string) *Server {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = struct{}{}
	}

	s := &Server{orchestrator: o, origins: origins}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analysis", s.handleStartAnalysis)
	mux.HandleFunc("GET /analysis/{runId}/status", s.handleStatus)
	mux.HandleFunc("POST /analysis/{runId}/score-file", s.handleScoreFile)
	mux.HandleFunc("GET /analysis/{runId}/file-content", s.handleFileContent)
	mux.HandleFunc("OPTIONS /analysis/", s.handleCORS)
	mux.HandleFunc("OPTIONS /analysis", s.handleCORS)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.corsMiddleware(mux),
	}

	return s
}

// Start runs the HTTP server in the background, reporting fatal errors on errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("httpapi server error: %w", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
