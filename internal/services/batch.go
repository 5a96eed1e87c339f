package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/reportflow/internal/flow"
	"github.com/Lllllllleong/reportflow/internal/gcp"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one document of a batch.
type BatchResult struct {
	Path     string `json:"path"`
	ReportID string `json:"report_id,omitempty"`
	Pages    int    `json:"pages"`
	Version  int    `json:"analysis_version"`
	Partial  bool   `json:"partial"`
	Error    string `json:"error,omitempty"`
}

// BatchProcessor processes independent reports in parallel. Each report is
// processed sequentially on its own goroutine.
type BatchProcessor struct {
	Engine      *Engine
	Concurrency int
	// Storage resolves gs:// paths. Nil restricts the batch to local files.
	Storage *storage.Client
}

// Expand resolves gs://bucket/prefix entries into one URI per PDF object.
// Local paths and gs:// URIs naming a PDF are kept as given.
func (b *BatchProcessor) Expand(ctx context.Context, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if !strings.HasPrefix(p, "gs://") || strings.EqualFold(filepath.Ext(p), ".pdf") {
			out = append(out, p)
			continue
		}
		if b.Storage == nil {
			return nil, fmt.Errorf("cannot list %s without a storage client", p)
		}
		bucket, prefix, err := gcp.ParseGCSURI(p)
		if err != nil {
			return nil, err
		}
		names, err := gcp.ListObjects(ctx, b.Storage, bucket, prefix, ".pdf")
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			out = append(out, fmt.Sprintf("gs://%s/%s", bucket, n))
		}
	}
	return out, nil
}

// Run processes every path and returns one result per path, in input order.
// A failed document does not stop the others.
func (b *BatchProcessor) Run(ctx context.Context, paths []string) ([]BatchResult, error) {
	paths, err := b.Expand(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to expand batch paths: %w", err)
	}
	limit := b.Concurrency
	if limit <= 0 {
		limit = 1
	}
	slog.Info("Starting batch.", "documents", len(paths), "concurrency", limit)

	results := make([]BatchResult, len(paths))
	var mu sync.Mutex
	failed := 0

	// Paths sharing a report id write the same stored document, so each group
	// runs sequentially on one goroutine.
	var eg errgroup.Group
	eg.SetLimit(limit)
	for _, group := range groupByReport(paths) {
		eg.Go(func() error {
			for _, i := range group {
				res := b.processOne(ctx, paths[i])
				results[i] = res
				if res.Error != "" {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	slog.Info("Batch complete.", "documents", len(paths), "failed", failed)
	if failed > 0 {
		return results, fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return results, nil
}

// groupByReport returns path indices grouped by report id, in first-seen order.
func groupByReport(paths []string) [][]int {
	var groups [][]int
	index := map[string]int{}
	for i, p := range paths {
		id := flow.ReportID(p)
		g, ok := index[id]
		if !ok {
			g = len(groups)
			index[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (b *BatchProcessor) processOne(ctx context.Context, path string) BatchResult {
	res := BatchResult{Path: path}
	logCtx := slog.With("path", path)

	local := path
	if strings.HasPrefix(path, "gs://") {
		tempDir, err := os.MkdirTemp("", "report-batch-*")
		if err != nil {
			res.Error = fmt.Sprintf("failed to create temp dir: %v", err)
			return res
		}
		defer os.RemoveAll(tempDir)
		bucket, object, err := gcp.ParseGCSURI(path)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if b.Storage == nil {
			res.Error = "no storage client for gs:// path"
			return res
		}
		local = filepath.Join(tempDir, filepath.Base(object))
		if err := gcp.DownloadObject(ctx, b.Storage, bucket, object, local); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	doc, err := b.Engine.ProcessReport(ctx, local)
	if err != nil {
		logCtx.Error("Document failed", "error", err)
		res.Error = err.Error()
		return res
	}
	res.ReportID = doc.ReportID
	res.Pages = len(doc.DocumentFlow)
	if doc.AnalysisMetadata != nil {
		res.Version = doc.AnalysisMetadata.Version
		res.Partial = doc.AnalysisMetadata.Partial
	}
	logCtx.Info("Document processed.", "reportId", res.ReportID, "pages", res.Pages, "version", res.Version)
	return res
}
