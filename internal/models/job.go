package models

import "time"

// Extraction job statuses.
const (
	StatusExtracting = "EXTRACTING"
	StatusAnalyzing  = "ANALYZING"
	StatusComplete   = "COMPLETE"
	StatusFailed     = "FAILED"
)

// ExtractionJob tracks the processing of one uploaded PDF in Firestore.
type ExtractionJob struct {
	FileHash            string    `firestore:"file_hash,omitempty"`
	OriginalFilename    string    `firestore:"original_filename,omitempty"`
	ReportID            string    `firestore:"report_id,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"error_details,omitempty"`
	PageCount           int       `firestore:"page_count,omitempty"`
	WorkflowExecutionID string    `firestore:"workflow_execution_id,omitempty"` // For traceability
	CreatedAt           time.Time `firestore:"created_at,omitempty"`
	UpdatedAt           time.Time `firestore:"updated_at,omitempty"`
}
