package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/Lllllllleong/reportflow/internal/models"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var openDB = sql.Open

// Connect opens a pgx-backed *sql.DB and verifies connectivity.
func Connect(ctx context.Context, databaseURL string, pingTimeout time.Duration) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded goose migrations. A nil database is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return nil
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// PGStore keeps flows in Postgres. The flow part of a document lives in one
// JSONB column; analyses have their own columns so they can be rewritten alone.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Get(ctx context.Context, reportID string) (*models.FlowDocument, error) {
	const query = `
SELECT flow, overall_analysis, analysis_metadata
FROM report_flows
WHERE report_id = $1`
	doc, err := scanFlow(s.DB.QueryRowContext(ctx, query, reportID))
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", reportID, err)
	}

	const sectorsQuery = `
SELECT sector, analysis
FROM sector_analyses
WHERE report_id = $1
ORDER BY sector`
	rows, err := s.DB.QueryContext(ctx, sectorsQuery, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector analyses of %s: %w", reportID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sector string
		var raw []byte
		if err := rows.Scan(&sector, &raw); err != nil {
			return nil, err
		}
		var sa models.SectorAnalysis
		if err := json.Unmarshal(raw, &sa); err != nil {
			return nil, fmt.Errorf("failed to decode sector analysis %s/%s: %w", reportID, sector, err)
		}
		if doc.SectorAnalyses == nil {
			doc.SectorAnalyses = map[models.Sector]models.SectorAnalysis{}
		}
		doc.SectorAnalyses[models.Sector(sector)] = sa
	}
	return doc, rows.Err()
}

func (s *PGStore) SaveFlow(ctx context.Context, doc *models.FlowDocument, opts SaveOptions) error {
	if doc == nil || doc.ReportID == "" {
		return errors.New("report id is required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const lockQuery = `
SELECT flow, overall_analysis, analysis_metadata
FROM report_flows
WHERE report_id = $1
FOR UPDATE`
	existing, err := scanFlow(tx.QueryRowContext(ctx, lockQuery, doc.ReportID))
	if errors.Is(err, ErrNotFound) {
		existing = nil
	} else if err != nil {
		return fmt.Errorf("failed to lock flow %s: %w", doc.ReportID, err)
	}

	merged := MergeFlow(existing, doc, opts)
	flow, overall, meta, err := encodeFlow(merged)
	if err != nil {
		return err
	}
	const upsert = `
INSERT INTO report_flows (report_id, pdf_filename, report_period, flow, overall_analysis, analysis_metadata, analysis_version, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (report_id) DO UPDATE SET
	pdf_filename = EXCLUDED.pdf_filename,
	report_period = EXCLUDED.report_period,
	flow = EXCLUDED.flow,
	overall_analysis = EXCLUDED.overall_analysis,
	analysis_metadata = EXCLUDED.analysis_metadata,
	analysis_version = EXCLUDED.analysis_version,
	updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, upsert,
		merged.ReportID,
		merged.PDFFilename,
		merged.ReportPeriod,
		flow,
		overall,
		meta,
		merged.AnalysisVersion(),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to upsert flow %s: %w", doc.ReportID, err)
	}
	if doc.AnalysisMetadata != nil {
		if err := replaceSectors(ctx, tx, doc.ReportID, doc.SectorAnalyses); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) SaveAnalysis(ctx context.Context, reportID string, upd AnalysisUpdate) error {
	if err := validateUpdate(reportID, upd); err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `SELECT analysis_version FROM report_flows WHERE report_id = $1 FOR UPDATE`, reportID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock flow %s: %w", reportID, err)
	}
	if version != upd.ExpectedVersion {
		return fmt.Errorf("%w: report %s is at version %d, expected %d", ErrConflict, reportID, version, upd.ExpectedVersion)
	}

	overall, err := marshalJSONB(upd.Overall)
	if err != nil {
		return err
	}
	meta, err := marshalJSONB(upd.Metadata)
	if err != nil {
		return err
	}
	const update = `
UPDATE report_flows
SET overall_analysis = $2, analysis_metadata = $3, analysis_version = $4, updated_at = $5
WHERE report_id = $1`
	if _, err := tx.ExecContext(ctx, update, reportID, overall, meta, upd.Metadata.Version, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update analysis of %s: %w", reportID, err)
	}
	if err := replaceSectors(ctx, tx, reportID, upd.Sectors); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("Stored analysis.", "reportId", reportID, "version", upd.Metadata.Version)
	return nil
}

func replaceSectors(ctx context.Context, tx *sql.Tx, reportID string, sectors map[models.Sector]models.SectorAnalysis) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sector_analyses WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("failed to clear sector analyses of %s: %w", reportID, err)
	}
	const insert = `
INSERT INTO sector_analyses (report_id, sector, analysis, updated_at)
VALUES ($1, $2, $3, $4)`
	for _, sector := range models.Sectors {
		sa, ok := sectors[sector]
		if !ok {
			continue
		}
		raw, err := marshalJSONB(sa)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, reportID, string(sector), raw, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to write sector analysis %s/%s: %w", reportID, sector, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.FlowDocument, error) {
	var flow []byte
	var overall, meta sql.NullString
	if err := row.Scan(&flow, &overall, &meta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc, err := decode(flow)
	if err != nil {
		return nil, err
	}
	if overall.Valid {
		doc.OverallAnalysis = &models.OverallAnalysis{}
		if err := json.Unmarshal([]byte(overall.String), doc.OverallAnalysis); err != nil {
			return nil, fmt.Errorf("failed to decode overall analysis: %w", err)
		}
	}
	if meta.Valid {
		doc.AnalysisMetadata = &models.AnalysisMetadata{}
		if err := json.Unmarshal([]byte(meta.String), doc.AnalysisMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode analysis metadata: %w", err)
		}
	}
	return doc, nil
}

// encodeFlow splits a document into its flow column and analysis columns.
func encodeFlow(doc *models.FlowDocument) (flow []byte, overall, meta any, err error) {
	flowOnly := *doc
	flowOnly.OverallAnalysis = nil
	flowOnly.SectorAnalyses = nil
	flowOnly.AnalysisMetadata = nil
	if flow, err = json.Marshal(&flowOnly); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode flow %s: %w", doc.ReportID, err)
	}
	if overall, err = marshalJSONB(doc.OverallAnalysis); err != nil {
		return nil, nil, nil, err
	}
	if meta, err = marshalJSONB(doc.AnalysisMetadata); err != nil {
		return nil, nil, nil, err
	}
	return flow, overall, meta, nil
}

// marshalJSONB encodes v for a JSONB column; nil pointers become SQL NULL.
func marshalJSONB(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSONB value: %w", err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return string(raw), nil
}
