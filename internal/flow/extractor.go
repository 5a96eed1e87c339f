package flow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Lllllllleong/reportflow/internal/interpret"
	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/Lllllllleong/reportflow/internal/pdfsource"
)

// ErrStructuralExtraction is returned when a PDF cannot be opened or has no pages.
var ErrStructuralExtraction = errors.New("structural extraction failed")

// nearbyTextLimit bounds the page text sent along with a chart.
const nearbyTextLimit = 1500

// ChartInterpreter attaches an interpretation to a chart block at most once.
type ChartInterpreter interface {
	Attach(ctx context.Context, block *models.ContentBlock, pc interpret.PageContext) bool
}

// ImageArchive stores chart images and returns their URI.
type ImageArchive interface {
	SaveChart(ctx context.Context, reportID string, pageNumber, sequence int, chart *models.ChartContent) (string, error)
}

// Extractor turns a PDF into a FlowDocument. Pages are processed one at a time,
// in page order.
type Extractor struct {
	Parser      pdfsource.Parser
	Classifier  *Classifier
	Segmenter   *Segmenter
	Interpreter ChartInterpreter
	Summarizer  PageSummarizer
	Archive     ImageArchive
	Logger      *slog.Logger
	Now         func() time.Time
}

// ExtractFlow parses, classifies, segments and interprets every page, then assembles the document.
func (e *Extractor) ExtractFlow(ctx context.Context, pdfPath string) (*models.FlowDocument, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := e.Now
	if now == nil {
		now = time.Now
	}
	classifier := e.Classifier
	if classifier == nil {
		classifier = NewClassifier(DefaultClassifierConfig())
	}
	segmenter := e.Segmenter
	if segmenter == nil {
		segmenter = NewSegmenter(DefaultSeriesTable)
	}

	reportID := ReportID(pdfPath)
	logCtx := logger.With("reportId", reportID, "pdfPath", pdfPath)
	logCtx.Info("Starting flow extraction.")

	parsed, err := e.Parser.Parse(ctx, pdfPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logCtx.Error("Failed to parse PDF", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStructuralExtraction, err)
	}
	if parsed == nil || len(parsed.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrStructuralExtraction, pdfPath)
	}
	hash, err := FileHash(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructuralExtraction, err)
	}

	pages := make([]models.PageFlow, 0, len(parsed.Pages))
	for _, src := range parsed.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blocks, notes := classifier.Classify(src)
		page := segmenter.Segment(src.Number, blocks)
		page.QualityNotes = append(page.QualityNotes, src.Notes...)
		page.QualityNotes = append(page.QualityNotes, notes...)

		e.interpretCharts(ctx, logCtx, reportID, &page)
		e.summarize(ctx, logCtx, &page)
		pages = append(pages, page)
	}

	doc, err := Assemble(pages, SourceMeta{PDFFilename: pdfPath, SourceHash: hash, ExtractedAt: now().UTC()})
	if err != nil {
		logCtx.Error("Failed to assemble document", "error", err)
		return nil, err
	}
	logCtx.Info("Flow extraction complete.",
		"pageCount", doc.Metadata.TotalPages,
		"seriesPages", doc.Metadata.SeriesPagesCount,
		"charts", doc.Metadata.TotalCharts,
		"interpretedCharts", doc.Metadata.InterpretedCharts,
	)
	return doc, nil
}

func (e *Extractor) interpretCharts(ctx context.Context, logCtx *slog.Logger, reportID string, page *models.PageFlow) {
	pc := interpret.PageContext{
		PageNumber: page.PageNumber,
		SeriesName: page.SeriesName,
		Sector:     page.Sector,
		NearbyText: truncate(page.Text(), nearbyTextLimit),
	}
	for _, chart := range page.Charts() {
		if e.Archive != nil {
			uri, err := e.Archive.SaveChart(ctx, reportID, page.PageNumber, chart.SequenceNumber, chart.Chart)
			if err != nil {
				logCtx.Warn("Failed to archive chart image", "page", page.PageNumber, "sequence", chart.SequenceNumber, "error", err)
			} else {
				chart.Chart.ImageURI = uri
			}
		}
		if e.Interpreter == nil || !e.Interpreter.Attach(ctx, chart, pc) {
			page.QualityNotes = append(page.QualityNotes, fmt.Sprintf("chart %d has no interpretation", chart.SequenceNumber))
		}
		chart.Chart.Image = nil
	}
}

func (e *Extractor) summarize(ctx context.Context, logCtx *slog.Logger, page *models.PageFlow) {
	if e.Summarizer != nil {
		summary, err := e.Summarizer.SummarizePage(ctx, page)
		if err == nil {
			page.PageSummary = summary
			return
		}
		logCtx.Warn("Page summary unavailable, using structural summary.", "page", page.PageNumber, "error", err)
		page.QualityNotes = append(page.QualityNotes, "page summary generated without language model")
	}
	page.PageSummary = FallbackPageSummary(page)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = runeBoundary(s, n)
	}
	return s[:cut]
}

// runeBoundary returns the largest index <= n that starts a rune.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// FileHash returns the hex SHA-256 of a file.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
