// Package pdfsource turns a PDF file into positioned text and image units per page.
// Text runs come from ledongthuc/pdf; validation, page geometry and images come from pdfcpu.
package pdfsource

import (
	"context"
	"math"
)

// UnitKind distinguishes text runs from images.
type UnitKind int

const (
	UnitText UnitKind = iota
	UnitImage
)

// Box is a bounding box in top-down page coordinates (origin at the top-left corner).
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Valid reports whether the box is finite, non-negative and not inverted.
func (b *Box) Valid() bool {
	if b == nil {
		return false
	}
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return b.X1 >= b.X0 && b.Y1 >= b.Y0
}

// Width of the box.
func (b *Box) Width() float64 { return b.X1 - b.X0 }

// Height of the box.
func (b *Box) Height() float64 { return b.Y1 - b.Y0 }

// Image is an image XObject placed on a page.
type Image struct {
	Name     string
	Width    int
	Height   int
	MIMEType string
	Data     []byte
}

// Unit is a raw content unit. Box is nil when the unit could not be placed.
type Unit struct {
	Kind     UnitKind
	Text     string
	Font     string
	FontSize float64
	Bold     bool
	Box      *Box
	Image    *Image
}

// Page is one parsed page, numbered from 1.
type Page struct {
	Number int
	Width  float64
	Height float64
	Units  []Unit
	// Notes records degraded extraction on this page.
	Notes []string
}

// Document is the parsed form of a PDF.
type Document struct {
	Pages []Page
}

// Parser reads a PDF from disk.
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
}
