package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/reportflow/internal/analysis"
	"github.com/Lllllllleong/reportflow/internal/config"
	"github.com/Lllllllleong/reportflow/internal/flow"
	"github.com/Lllllllleong/reportflow/internal/gcp"
	"github.com/Lllllllleong/reportflow/internal/interpret"
	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/pdfsource"
	"github.com/Lllllllleong/reportflow/internal/store"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

const dbPingTimeout = 5 * time.Second

type RuntimeConfig struct {
	ProjectID          string
	VertexRegion       string
	VertexModel        string
	StoreBackend       string
	FlowCollection     string
	DatabaseURL        string
	ChartArchiveBucket string
	TuningFile         string
	// UseStorage creates a Cloud Storage client even without a chart archive bucket.
	UseStorage bool
}

// LoadRuntimeConfig reads the shared settings of every entry point from the environment.
func LoadRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		ProjectID:          gcp.GetEnv("PROJECT_ID", ""),
		VertexRegion:       gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:        gcp.GetEnv("VERTEX_MODEL", "gemini-2.5-flash"),
		StoreBackend:       gcp.GetEnv("STORE_BACKEND", BackendFirestore),
		FlowCollection:     gcp.GetEnv("FLOW_COLLECTION", "report_flows"),
		DatabaseURL:        gcp.GetEnv("DATABASE_URL", ""),
		ChartArchiveBucket: gcp.GetEnv("CHART_ARCHIVE_BUCKET", ""),
		TuningFile:         gcp.GetEnv("TUNING_FILE", ""),
	}
}

// Runtime owns the clients behind an Engine.
type Runtime struct {
	Engine    *Engine
	Tuning    *config.Tuning
	Storage   *storage.Client
	Firestore *firestore.Client
	Vertex    *gcp.VertexClient
	DB        *sql.DB

	closers []func() error
}

// OnClose registers a client opened outside the runtime. Close releases such
// clients in reverse order before its own.
func (rt *Runtime) OnClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// NewRuntime creates the clients named by cfg and wires them into an Engine.
// Without a project ID no model is configured and every narrative falls back to structural text.
func NewRuntime(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	tuning, err := config.Load(cfg.TuningFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tuning: %w", err)
	}
	rt := &Runtime{Tuning: tuning}

	if cfg.ProjectID != "" {
		rt.Vertex, err = gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
	} else {
		slog.Warn("PROJECT_ID not set, running without a language model.")
	}

	if cfg.UseStorage || cfg.ChartArchiveBucket != "" {
		rt.Storage, err = storage.NewClient(ctx)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
	}

	st, err := rt.openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	extractor, aggregator, err := rt.components(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Engine = &Engine{
		Extractor:  extractor,
		Aggregator: aggregator,
		Store:      st,
		Logger:     slog.Default(),
	}
	slog.Info("Report engine initialized.",
		"storeBackend", cfg.StoreBackend,
		"model", cfg.VertexModel,
		"llmEnabled", rt.Vertex != nil,
		"chartArchive", cfg.ChartArchiveBucket,
	)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg RuntimeConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		return store.NewMemoryStore(), nil
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable must be set for the postgres backend")
		}
		db, err := store.Connect(ctx, cfg.DatabaseURL, dbPingTimeout)
		if err != nil {
			return nil, err
		}
		rt.DB = db
		if err := store.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		return &store.PGStore{DB: db}, nil
	case BackendFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the firestore backend")
		}
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		rt.Firestore = client
		return store.NewFirestoreStore(client, cfg.FlowCollection), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func (rt *Runtime) components(cfg RuntimeConfig) (*flow.Extractor, *analysis.Aggregator, error) {
	table, err := rt.Tuning.SeriesTable()
	if err != nil {
		return nil, nil, err
	}
	policy := rt.Tuning.Policy()
	policy.Logger = slog.Default()

	extractor := &flow.Extractor{
		Parser:     pdfsource.NewReader(),
		Classifier: flow.NewClassifier(rt.Tuning.ClassifierConfig()),
		Segmenter:  flow.NewSegmenter(table),
		Logger:     slog.Default(),
	}
	var gen llm.Generator
	if rt.Vertex != nil {
		gen = llm.WithRetry(rt.Vertex, policy)
		extractor.Interpreter = interpret.NewAdapter(llm.VisionWithRetry(rt.Vertex, policy), slog.Default())
		extractor.Summarizer = &flow.LLMSummarizer{Gen: gen}
	}
	if rt.Storage != nil && cfg.ChartArchiveBucket != "" {
		extractor.Archive = gcp.NewChartArchive(rt.Storage, cfg.ChartArchiveBucket)
	}
	aggregator := analysis.NewAggregator(gen, rt.Tuning.AnalysisConfig(cfg.VertexModel), slog.Default())
	return extractor, aggregator, nil
}

// Close releases every client the runtime opened.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Warn("Failed to close client", "error", err)
		}
	}
	rt.closers = nil
	if rt.Vertex != nil {
		if err := rt.Vertex.Close(); err != nil {
			slog.Warn("Failed to close vertex client", "error", err)
		}
	}
	if rt.Storage != nil {
		_ = rt.Storage.Close()
	}
	if rt.Firestore != nil {
		_ = rt.Firestore.Close()
	}
	if rt.DB != nil {
		_ = rt.DB.Close()
	}
}
