package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/reportflow/internal/llm"
	"github.com/Lllllllleong/reportflow/internal/llm/llmtest"
	"github.com/Lllllllleong/reportflow/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func chartBlock() *models.ContentBlock {
	return &models.ContentBlock{
		BlockType:      models.BlockChart,
		SequenceNumber: 3,
		Chart:          &models.ChartContent{ChartType: "rate_of_change", Image: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"},
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name       string
		raw        RawInterpretation
		trend      models.TrendDirection
		phase      models.Phase
		confidence models.Confidence
	}{
		{"upward", RawInterpretation{TrendDirection: "Upward", CurrentPhase: "Phase B", Confidence: "High"}, models.TrendRising, models.PhaseB, models.ConfidenceHigh},
		{"declining", RawInterpretation{TrendDirection: "declining", CurrentPhase: "d", Confidence: "moderate"}, models.TrendFalling, models.PhaseD, models.ConfidenceMedium},
		{"unknown trend", RawInterpretation{TrendDirection: "zig-zag", CurrentPhase: "C", Confidence: "high"}, models.TrendStable, models.PhaseC, models.ConfidenceLow},
		{"invalid phase", RawInterpretation{TrendDirection: "flat", CurrentPhase: "E", Confidence: "medium"}, models.TrendStable, "", models.ConfidenceMedium},
		{"phase words only", RawInterpretation{TrendDirection: "rising", CurrentPhase: "Recovery", Confidence: "??"}, models.TrendRising, "", models.ConfidenceLow},
		{"phase with label", RawInterpretation{TrendDirection: "rising", CurrentPhase: "A (Recovery)", Confidence: "high"}, models.TrendRising, models.PhaseA, models.ConfidenceHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw)
			if got.TrendDirection != tc.trend || got.CurrentPhase != tc.phase || got.Confidence != tc.confidence {
				t.Fatalf("got trend=%s phase=%q confidence=%s", got.TrendDirection, got.CurrentPhase, got.Confidence)
			}
		})
	}
}

func TestNormalizePhaseRejectsUnclearPhase(t *testing.T) {
	cases := map[string]models.Phase{
		"A/B":              "",
		"Phase B or C":     "",
		"c-d":              "",
		"B to C":           "",
		"A - Accelerating": models.PhaseA,
		"phase d":          models.PhaseD,
		"B (Recovery)":     models.PhaseB,
	}
	for in, want := range cases {
		if got := NormalizePhase(in); got != want {
			t.Errorf("NormalizePhase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKeyPatterns(t *testing.T) {
	got := Normalize(RawInterpretation{KeyPatterns: json.RawMessage(`"single pattern"`)})
	if len(got.KeyPatterns) != 1 || got.KeyPatterns[0] != "single pattern" {
		t.Fatalf("unexpected patterns %v", got.KeyPatterns)
	}
	got = Normalize(RawInterpretation{KeyPatterns: json.RawMessage(`["a", " ", "b"]`)})
	if len(got.KeyPatterns) != 2 {
		t.Fatalf("expected blank pattern dropped, got %v", got.KeyPatterns)
	}
}

func TestAttachAfterTransientFailures(t *testing.T) {
	vision := &llmtest.Vision{
		Response: `{"description":"Rate of change rising","trend_direction":"rising","current_phase":"A","confidence":"high"}`,
		Errs:     []error{status.Error(codes.Unavailable, "busy")},
	}
	policy := llm.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond, CallTimeout: time.Second}
	a := NewAdapter(llm.VisionWithRetry(vision, policy), nil)

	block := chartBlock()
	if !a.Attach(context.Background(), block, PageContext{PageNumber: 3, SeriesName: "US Industrial Production"}) {
		t.Fatal("expected interpretation to be attached")
	}
	if block.Interpretation.CurrentPhase != models.PhaseA || vision.Calls() != 2 {
		t.Fatalf("unexpected result %+v after %d calls", block.Interpretation, vision.Calls())
	}
	if err := block.AttachInterpretation(models.Interpretation{}); !errors.Is(err, models.ErrInterpretationAttached) {
		t.Fatalf("expected second attach to be rejected, got %v", err)
	}
}

func TestAttachSoftFailure(t *testing.T) {
	down := status.Error(codes.Unavailable, "down")
	vision := &llmtest.Vision{Errs: []error{down, down, down}}
	policy := llm.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond, CallTimeout: time.Second}
	a := NewAdapter(llm.VisionWithRetry(vision, policy), nil)

	block := chartBlock()
	if a.Attach(context.Background(), block, PageContext{PageNumber: 5}) {
		t.Fatal("expected soft failure")
	}
	if block.Interpretation != nil {
		t.Fatalf("expected nil interpretation, got %+v", block.Interpretation)
	}
	if vision.Calls() != 3 {
		t.Fatalf("expected bounded retries, got %d calls", vision.Calls())
	}
}

func TestInterpretRejectsMalformedJSON(t *testing.T) {
	a := NewAdapter(&llmtest.Vision{Response: "not json at all"}, nil)
	_, err := a.Interpret(context.Background(), chartBlock(), PageContext{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
