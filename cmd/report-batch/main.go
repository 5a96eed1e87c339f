package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Lllllllleong/reportflow/internal/analysis"
	"github.com/Lllllllleong/reportflow/internal/gcp"
	"github.com/Lllllllleong/reportflow/internal/services"
)

func main() {
	concurrency := flag.Int("concurrency", 0, "documents processed in parallel (default from tuning file)")
	exportDir := flag.String("export-dir", "", "write one analysis JSON per report into this directory")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <report.pdf | gs://bucket/prefix/>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Args(), *concurrency, *exportDir); err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(1)
	}
}

func run(paths []string, concurrency int, exportDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := services.LoadRuntimeConfig()
	rc.StoreBackend = gcp.GetEnv("STORE_BACKEND", services.BackendMemory)
	for _, p := range paths {
		if strings.HasPrefix(p, "gs://") {
			rc.UseStorage = true
		}
	}
	rt, err := services.NewRuntime(ctx, rc)
	if err != nil {
		return err
	}
	defer rt.Close()

	if concurrency <= 0 {
		concurrency = rt.Tuning.Batch.Concurrency
	}
	batch := &services.BatchProcessor{Engine: rt.Engine, Concurrency: concurrency, Storage: rt.Storage}
	results, runErr := batch.Run(ctx, paths)

	if exportDir != "" {
		if err := writeExports(ctx, rt.Engine, exportDir, results); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return runErr
}

func writeExports(ctx context.Context, engine *services.Engine, dir string, results []services.BatchResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	for _, res := range results {
		if res.Error != "" {
			continue
		}
		doc, err := engine.Store.Get(ctx, res.ReportID)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", res.ReportID, err)
		}
		data, err := json.MarshalIndent(analysis.ExportAnalysis(doc), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal export for %s: %w", res.ReportID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, res.ReportID+".json"), data, 0o644); err != nil {
			return fmt.Errorf("failed to write export for %s: %w", res.ReportID, err)
		}
	}
	return nil
}
