package models

import "time"

// These structs define the JSON payloads for HTTP requests and responses
// between the Cloud Workflow and the analysis Cloud Functions.

// RegenerateAnalysisRequest is the input for the analysis-regenerator function.
type RegenerateAnalysisRequest struct {
	ReportID    string `json:"reportId"`
	ExecutionID string `json:"executionId"`
}

// RegenerateAnalysisResponse is the output of the analysis-regenerator function.
type RegenerateAnalysisResponse struct {
	Status                 string    `json:"status"`
	ReportID               string    `json:"reportId"`
	Version                int       `json:"version"`
	RegeneratedFromVersion int       `json:"regeneratedFromVersion"`
	GeneratedAt            time.Time `json:"generatedAt"`
	Partial                bool      `json:"partial"`
	ExportURI              string    `json:"exportUri,omitempty"`
}

// SectorAnalysisRequest is the input for the sector-analysis function.
type SectorAnalysisRequest struct {
	ReportID    string `json:"reportId"`
	Sector      string `json:"sector"`
	ExecutionID string `json:"executionId"`
}

// SectorAnalysisResponse is the output of the sector-analysis function.
type SectorAnalysisResponse struct {
	Status   string          `json:"status"`
	ReportID string          `json:"reportId"`
	Analysis *SectorAnalysis `json:"analysis"`
}

// WorkflowHandoff is the argument passed to the downstream workflow once a report is stored.
type WorkflowHandoff struct {
	ReportID        string `json:"reportId"`
	JobID           string `json:"jobId"`
	PageCount       int    `json:"pageCount"`
	AnalysisVersion int    `json:"analysisVersion"`
}
