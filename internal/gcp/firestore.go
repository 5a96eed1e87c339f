package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// NewFirestoreClient creates a Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// JobTracker records extraction jobs, one document per uploaded file.
type JobTracker struct {
	client     *firestore.Client
	collection string
}

func NewJobTracker(client *firestore.Client, collection string) *JobTracker {
	return &JobTracker{client: client, collection: collection}
}

// FindByHash returns the id of a job already created for the same file content.
func (t *JobTracker) FindByHash(ctx context.Context, fileHash string) (string, bool, error) {
	docs, err := t.client.Collection(t.collection).Where("file_hash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// Create adds a job in the EXTRACTING state and returns its id.
func (t *JobTracker) Create(ctx context.Context, fileHash, filename, reportID string) (string, error) {
	now := time.Now().UTC()
	job := models.ExtractionJob{
		FileHash:         fileHash,
		OriginalFilename: filename,
		ReportID:         reportID,
		Status:           models.StatusExtracting,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	docRef, _, err := t.client.Collection(t.collection).Add(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create job document: %w", err)
	}
	return docRef.ID, nil
}

// UpdateStatus sets the job status, with error details and any extra fields.
func (t *JobTracker) UpdateStatus(ctx context.Context, jobID, status, errDetails string, extra ...firestore.Update) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updated_at", Value: time.Now().UTC()},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "error_details", Value: errDetails})
	}
	updates = append(updates, extra...)
	_, err := t.client.Collection(t.collection).Doc(jobID).Update(ctx, updates)
	return err
}
