package httpapi

// startAnalysisRequest is the payload for POST /analysis.
type startAnalysisRequest struct {
	RepoURL string `json:"repoUrl"`
	RunID   string `json:"runId,omitempty"`
}

// startAnalysisResponse is the 202 response for POST /analysis.
type startAnalysisResponse struct {
	RunID    string   `json:"runId"`
	AllFiles []string `json:"allFiles"`
}

// scoreFileRequest is the payload for POST /analysis/{runId}/score-file.
type scoreFileRequest struct {
	FilePath string `json:"filePath"`
}
