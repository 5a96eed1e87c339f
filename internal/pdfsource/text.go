package pdfsource

import (
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Glyph is a positioned piece of text as reported by the content stream, in
// PDF user space (origin bottom-left, Y at the baseline).
type Glyph struct {
	Font string
	Size float64
	X, Y float64
	W    float64
	S    string
}

type run struct {
	font      string
	size      float64
	x0, x1    float64
	baseline  float64
	text      strings.Builder
	lastRight float64
}

// pageGlyphs reads the glyphs of a page. ledongthuc/pdf panics on some malformed
// content streams; that page then yields no text.
func pageGlyphs(p pdf.Page) (glyphs []Glyph, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			glyphs, ok = nil, false
		}
	}()
	if p.V.IsNull() {
		return nil, false
	}
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{Font: t.Font, Size: t.FontSize, X: t.X, Y: t.Y, W: t.W, S: t.S})
	}
	return glyphs, true
}

// GroupGlyphs joins glyphs into text units. Glyphs on the same baseline with the same
// font form a run; a horizontal gap wider than two em starts a new run so that
// neighbouring columns stay apart. Runs that continue a paragraph (same font size,
// aligned left edge, one line below) are merged into a single unit.
func GroupGlyphs(glyphs []Glyph, pageHeight float64) []Unit {
	runs := splitRuns(glyphs)
	return mergeRuns(runs, pageHeight)
}

func splitRuns(glyphs []Glyph) []*run {
	var runs []*run
	var cur *run
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		size := g.Size
		if size <= 0 {
			size = 10
		}
		if cur != nil && cur.font == g.Font && math.Abs(cur.size-size) < 0.5 && math.Abs(cur.baseline-g.Y) < size*0.5 {
			gap := g.X - cur.lastRight
			if gap >= 0 && gap < size*2 || gap < 0 && gap > -size {
				if gap > size*0.2 && !strings.HasSuffix(cur.text.String(), " ") && g.S != " " {
					cur.text.WriteByte(' ')
				}
				cur.text.WriteString(g.S)
				cur.lastRight = math.Max(cur.lastRight, g.X+g.W)
				cur.x1 = math.Max(cur.x1, g.X+g.W)
				continue
			}
		}
		cur = &run{font: g.Font, size: size, x0: g.X, x1: g.X + g.W, baseline: g.Y, lastRight: g.X + g.W}
		cur.text.WriteString(g.S)
		runs = append(runs, cur)
	}
	return runs
}

type block struct {
	font   string
	size   float64
	bold   bool
	x0, x1 float64
	top    float64 // PDF space, highest edge
	bottom float64 // PDF space, last baseline
	lines  []string
}

func mergeRuns(runs []*run, pageHeight float64) []Unit {
	var blocks []*block
	for _, r := range runs {
		text := strings.TrimSpace(r.text.String())
		if text == "" {
			continue
		}
		bold := isBoldFont(r.font)
		if b := findContinuation(blocks, r, bold); b != nil {
			b.lines = append(b.lines, text)
			b.bottom = r.baseline
			b.x0 = math.Min(b.x0, r.x0)
			b.x1 = math.Max(b.x1, r.x1)
			continue
		}
		blocks = append(blocks, &block{
			font: r.font, size: r.size, bold: bold,
			x0: r.x0, x1: r.x1, top: r.baseline + r.size, bottom: r.baseline,
			lines: []string{text},
		})
	}

	units := make([]Unit, 0, len(blocks))
	for _, b := range blocks {
		box := &Box{X0: b.x0, X1: b.x1, Y0: pageHeight - b.top, Y1: pageHeight - b.bottom + b.size*0.25}
		if !box.Valid() {
			box = nil
		}
		units = append(units, Unit{
			Kind:     UnitText,
			Text:     strings.Join(b.lines, "\n"),
			Font:     b.font,
			FontSize: b.size,
			Bold:     b.bold,
			Box:      box,
		})
	}
	return units
}

func findContinuation(blocks []*block, r *run, bold bool) *block {
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b.bold != bold || math.Abs(b.size-r.size) >= 0.5 {
			continue
		}
		lineGap := b.bottom - r.baseline
		if lineGap <= 0 || lineGap > r.size*1.8 {
			continue
		}
		if math.Abs(b.x0-r.x0) <= r.size*1.5 {
			return b
		}
	}
	return nil
}

func isBoldFont(font string) bool {
	f := strings.ToLower(font)
	for _, marker := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(f, marker) {
			return true
		}
	}
	return false
}
