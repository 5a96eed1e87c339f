package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/reportflow/internal/models"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	tuning, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tuning.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg := tuning.AnalysisConfig("gemini-test")
	if cfg.SectorWeights[models.SectorCore] != 0.4 || cfg.LLMModel != "gemini-test" {
		t.Fatalf("unexpected analysis config %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeTuning(t, `
analysis:
  sector_weights:
    core: 2
    financial: 1
llm:
  call_timeout: 15s
  requests_per_minute: 0
batch:
  concurrency: 8
series:
  - name: US Light Vehicle Production
    sector: manufacturing
    pattern: 'US Light Vehicle Production'
`)
	tuning, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tuning.LLM.CallTimeout != 15*time.Second || tuning.LLM.MaxAttempts != 3 {
		t.Fatalf("unexpected llm tuning %+v", tuning.LLM)
	}
	if tuning.Batch.Concurrency != 8 {
		t.Fatalf("concurrency %d", tuning.Batch.Concurrency)
	}
	if p := tuning.Policy(); p.Limiter != nil {
		t.Fatalf("expected no limiter for a zero rate")
	}
	table, err := tuning.SeriesTable()
	if err != nil {
		t.Fatalf("SeriesTable: %v", err)
	}
	m, ok := table.Match("Chart: US Light Vehicle Production index")
	if !ok || m.Sector != models.SectorManufacturing {
		t.Fatalf("configured series not matched: %+v", m)
	}
}

func TestLoadRejectsInvalidTuning(t *testing.T) {
	path := writeTuning(t, `
analysis:
  sector_weights:
    retail: 1
batch:
  concurrency: 0
series:
  - name: Broken
    sector: core
    pattern: '('
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"retail", "concurrency", "invalid pattern"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
