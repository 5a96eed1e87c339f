package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, object, nil
}

// SaveToGCSAtomically writes content to an object only if it does not already
// exist. An existing object counts as success so that retries stay idempotent.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// DownloadObject streams an object to a local file.
func DownloadObject(ctx context.Context, client *storage.Client, bucket, object, destPath string) error {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, reader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return localFile.Close()
}

// ListObjects returns the names under prefix that end with suffix.
func ListObjects(ctx context.Context, client *storage.Client, bucket, prefix, suffix string) ([]string, error) {
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(strings.ToLower(attrs.Name), suffix) {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

// ChartArchive stores chart images under <reportId>/page-<n>/<seq>.<ext>.
type ChartArchive struct {
	client     *storage.Client
	bucket     string
	maxRetries int
}

func NewChartArchive(client *storage.Client, bucket string) *ChartArchive {
	return &ChartArchive{client: client, bucket: bucket, maxRetries: 4}
}

// SaveChart uploads the chart image and returns its gs:// URI. Object names are
// deterministic, so re-extraction of the same report reuses existing objects.
func (a *ChartArchive) SaveChart(ctx context.Context, reportID string, pageNumber, sequence int, chart *models.ChartContent) (string, error) {
	if len(chart.Image) == 0 {
		return "", errors.New("chart has no image data")
	}
	objectName := fmt.Sprintf("%s/page-%04d/%03d%s", reportID, pageNumber, sequence, extension(chart.MIMEType, chart.ImageName))
	bucket := a.client.Bucket(a.bucket)

	backoff := time.Second
	var lastErr error
	for i := 0; i < a.maxRetries; i++ {
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		err := SaveToGCSAtomically(writeCtx, bucket, objectName, chart.MIMEType, chart.Image)
		cancel()
		if err == nil {
			return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
		}
		lastErr = err
		slog.Warn("Chart upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", a.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

func extension(mimeType, name string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	}
	if ext := path.Ext(name); ext != "" {
		return ext
	}
	return ".bin"
}
