package pdfsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoPages is returned for a PDF that parses but has no pages.
var ErrNoPages = errors.New("pdf has no pages")

// defaultPageHeight is US Letter, used when pdfcpu cannot report page geometry.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// Reader is the production Parser.
type Reader struct {
	Logger *slog.Logger
}

// NewReader returns a Reader logging to the default logger.
func NewReader() *Reader {
	return &Reader{Logger: slog.Default()}
}

// Parse validates the PDF with pdfcpu, then reads text runs and images page by page.
// A PDF that cannot be opened or validated, or that has no pages, is an error.
// Text or image failures on a single page only degrade that page.
func (r *Reader) Parse(ctx context.Context, path string) (*Document, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logCtx := logger.With("pdfPath", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to validate pdf: %w", err)
	}
	if pctx.PageCount == 0 {
		return nil, ErrNoPages
	}

	dims, err := pctx.PageDims()
	if err != nil {
		logCtx.Warn("Could not read page dimensions, assuming letter size.", "error", err)
		dims = nil
	}

	textReader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		logCtx.Warn("Text layer unreadable, continuing with images only.", "error", err)
		textReader = nil
	}

	doc := &Document{Pages: make([]Page, 0, pctx.PageCount)}
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := Page{Number: pageNr, Width: defaultPageWidth, Height: defaultPageHeight}
		if pageNr <= len(dims) && dims[pageNr-1].Height > 0 {
			page.Width = dims[pageNr-1].Width
			page.Height = dims[pageNr-1].Height
		}

		if textReader != nil && pageNr <= textReader.NumPage() {
			glyphs, ok := pageGlyphs(textReader.Page(pageNr))
			if !ok {
				page.Notes = append(page.Notes, "text layer could not be read")
			}
			page.Units = append(page.Units, GroupGlyphs(glyphs, page.Height)...)
		} else {
			page.Notes = append(page.Notes, "text layer unavailable")
		}

		images, err := pageImages(pctx, pageNr, page.Height)
		if err != nil {
			logCtx.Warn("Image extraction failed for page.", "page", pageNr, "error", err)
			page.Notes = append(page.Notes, "images could not be extracted")
		}
		page.Units = append(page.Units, images...)
		doc.Pages = append(doc.Pages, page)
	}
	logCtx.Info("PDF parsed.", "pageCount", len(doc.Pages))
	return doc, nil
}
