package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/firestore"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/reportflow/internal/flow"
	"github.com/Lllllllleong/reportflow/internal/gcp"
	"github.com/Lllllllleong/reportflow/internal/models"
)

type FlowExtractorConfig struct {
	ProjectID        string
	JobsCollection   string
	WorkflowID       string
	WorkflowLocation string
}

// jobTracker records the progress of one uploaded PDF.
type jobTracker interface {
	FindByHash(ctx context.Context, fileHash string) (string, bool, error)
	Create(ctx context.Context, fileHash, filename, reportID string) (string, error)
	UpdateStatus(ctx context.Context, jobID, status, errDetails string, extra ...firestore.Update) error
}

// FlowExtractorFunction turns every uploaded report PDF into a stored, analysed flow document.
type FlowExtractorFunction struct {
	engine  *Engine
	jobs    jobTracker
	fetch   func(ctx context.Context, bucket, object, destPath string) error
	handoff func(ctx context.Context, payload models.WorkflowHandoff) (string, error)
	config  FlowExtractorConfig
	closer  func()
}

// GCSEvent is the payload of a Cloud Storage object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewFlowExtractor(ctx context.Context) (*FlowExtractorFunction, error) {
	rc := LoadRuntimeConfig()
	if rc.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	rc.UseStorage = true

	config := FlowExtractorConfig{
		ProjectID:        rc.ProjectID,
		JobsCollection:   gcp.GetEnv("JOBS_COLLECTION", "extraction_jobs"),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
	}

	rt, err := NewRuntime(ctx, rc)
	if err != nil {
		return nil, err
	}
	firestoreClient := rt.Firestore
	if firestoreClient == nil {
		firestoreClient, err = gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		rt.OnClose(firestoreClient.Close)
	}

	f := &FlowExtractorFunction{
		engine: rt.Engine,
		jobs:   gcp.NewJobTracker(firestoreClient, config.JobsCollection),
		fetch: func(ctx context.Context, bucket, object, destPath string) error {
			return gcp.DownloadObject(ctx, rt.Storage, bucket, object, destPath)
		},
		config: config,
		closer: rt.Close,
	}

	if config.WorkflowID != "" {
		executionsClient, err := executions.NewClient(ctx)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		rt.OnClose(executionsClient.Close)
		target := gcp.WorkflowTarget{
			ProjectID:  config.ProjectID,
			Location:   config.WorkflowLocation,
			WorkflowID: config.WorkflowID,
		}
		f.handoff = func(ctx context.Context, payload models.WorkflowHandoff) (string, error) {
			return gcp.TriggerWorkflow(ctx, executionsClient, target, payload)
		}
	}
	slog.Info("Flow extractor logic initialized.", "workflowId", config.WorkflowID)
	return f, nil
}

// Process handles one finalize event. Duplicates of an already seen file are skipped.
func (f *FlowExtractorFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(filepath.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new report PDF.")

	tempDir, err := os.MkdirTemp("", "flow-extractor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// The local name carries the report id, so keep the object's base name.
	localPath := filepath.Join(tempDir, filepath.Base(e.Name))
	if err := f.fetch(ctx, e.Bucket, e.Name, localPath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash, err := flow.FileHash(localPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, duplicate, err := f.jobs.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if duplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingJobId", existingID)
		return nil
	}

	reportID := flow.ReportID(e.Name)
	jobID, err := f.jobs.Create(ctx, fileHash, e.Name, reportID)
	if err != nil {
		logCtx.Error("Failed to create extraction job", "error", err)
		return err
	}
	logCtx = logCtx.With("jobId", jobID, "reportId", reportID)
	logCtx.Info("Created extraction job.")

	doc, err := f.engine.ExtractFlow(ctx, localPath)
	if err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to extract document flow", err)
	}
	if err := f.engine.SaveFlow(ctx, doc); err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to save document flow", err)
	}
	pageCount := len(doc.DocumentFlow)
	if err := f.jobs.UpdateStatus(ctx, jobID, models.StatusAnalyzing, "",
		firestore.Update{Path: "page_count", Value: pageCount},
	); err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to update status to ANALYZING", err)
	}
	logCtx.Info("Document flow stored.", "pageCount", pageCount)

	meta, err := f.engine.RegenerateAnalysis(ctx, reportID)
	if err != nil {
		return f.handleError(ctx, logCtx, jobID, "failed to generate analysis", err)
	}

	var executionName string
	if f.handoff != nil {
		executionName, err = f.handoff(ctx, models.WorkflowHandoff{
			ReportID:        reportID,
			JobID:           jobID,
			PageCount:       pageCount,
			AnalysisVersion: meta.Version,
		})
		if err != nil {
			return f.handleError(ctx, logCtx, jobID, "failed to trigger workflow execution", err)
		}
		logCtx.Info("Hand-off to workflow complete.", "execution", executionName)
	}

	if err := f.jobs.UpdateStatus(ctx, jobID, models.StatusComplete, "",
		firestore.Update{Path: "workflow_execution_id", Value: executionName},
	); err != nil {
		logCtx.Error("Failed to mark job complete", "error", err)
		return err
	}
	logCtx.Info("Report processed.", "analysisVersion", meta.Version, "partial", meta.Partial)
	return nil
}

func (f *FlowExtractorFunction) handleError(ctx context.Context, logCtx *slog.Logger, jobID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if err := f.jobs.UpdateStatus(ctx, jobID, models.StatusFailed, fmt.Sprintf("%s: %v", message, originalErr)); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// Close releases the function's clients.
func (f *FlowExtractorFunction) Close() {
	if f.closer != nil {
		f.closer()
	}
}
