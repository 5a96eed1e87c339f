package pdfsource

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n in PDF's row-vector convention.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// unitSquare maps the image space unit square through m and returns its bounds in PDF space.
func (m matrix) unitSquare() Box {
	xs := []float64{m[4], m[0] + m[4], m[2] + m[4], m[0] + m[2] + m[4]}
	ys := []float64{m[5], m[1] + m[5], m[3] + m[5], m[1] + m[3] + m[5]}
	b := Box{X0: xs[0], X1: xs[0], Y0: ys[0], Y1: ys[0]}
	for i := 1; i < 4; i++ {
		b.X0, b.X1 = math.Min(b.X0, xs[i]), math.Max(b.X1, xs[i])
		b.Y0, b.Y1 = math.Min(b.Y0, ys[i]), math.Max(b.Y1, ys[i])
	}
	return b
}

// ImagePlacements scans a page content stream for XObject invocations and returns
// the first placement of each resource name, in PDF space. Only the q/Q/cm/Do
// operators are interpreted.
func ImagePlacements(content []byte) map[string]Box {
	placements := make(map[string]Box)
	ctm := identity
	var stack []matrix
	var operands []string

	for _, tok := range tokenize(content) {
		switch tok {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if len(operands) >= 6 {
				var m matrix
				valid := true
				for i, s := range operands[len(operands)-6:] {
					f, err := strconv.ParseFloat(s, 64)
					if err != nil {
						valid = false
						break
					}
					m[i] = f
				}
				if valid {
					ctm = m.mul(ctm)
				}
			}
		case "Do":
			if n := len(operands); n > 0 && len(operands[n-1]) > 1 && operands[n-1][0] == '/' {
				name := operands[n-1][1:]
				if _, seen := placements[name]; !seen {
					placements[name] = ctm.unitSquare()
				}
			}
		default:
			if isOperand(tok) {
				operands = append(operands, tok)
				continue
			}
		}
		operands = operands[:0]
	}
	return placements
}

func isOperand(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return c == '/' || c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

// tokenize splits a content stream on whitespace and delimiters, dropping string
// literals, hex strings, arrays and comments.
func tokenize(data []byte) []string {
	var toks []string
	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0:
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			depth := 0
			for i < len(data) {
				switch data[i] {
				case '\\':
					i++
				case '(':
					depth++
				case ')':
					depth--
				}
				i++
				if depth == 0 {
					break
				}
			}
			toks = append(toks, "()")
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			for i < len(data) && data[i] != '>' {
				i++
			}
			i++
			toks = append(toks, "<>")
		case c == '[' || c == ']' || c == '{' || c == '}':
			toks = append(toks, string(c))
			i++
		case c == '<' || c == '>':
			toks = append(toks, string(c))
			i++
		default:
			start := i
			i++
			for i < len(data) && !isDelimiter(data[i]) {
				i++
			}
			toks = append(toks, string(data[start:i]))
		}
	}
	return toks
}

func isDelimiter(c byte) bool {
	return bytes.IndexByte([]byte(" \n\r\t\f\x00()<>[]{}/%"), c) >= 0
}

func mimeType(fileType string) string {
	switch fileType {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// pageImages extracts the images of one page and positions them using the page's
// content stream. Images without a placement are returned unpositioned.
func pageImages(ctx *model.Context, pageNr int, pageHeight float64) ([]Unit, error) {
	images, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images of page %d: %w", pageNr, err)
	}
	if len(images) == 0 {
		return nil, nil
	}

	placements := map[string]Box{}
	if r, err := pdfcpu.ExtractPageContent(ctx, pageNr); err == nil && r != nil {
		if data, err := io.ReadAll(r); err == nil {
			placements = ImagePlacements(data)
		}
	}

	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	units := make([]Unit, 0, len(images))
	for _, objNr := range objNrs {
		img := images[objNr]
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s on page %d: %w", img.Name, pageNr, err)
		}
		u := Unit{
			Kind: UnitImage,
			Image: &Image{
				Name:     img.Name,
				Width:    img.Width,
				Height:   img.Height,
				MIMEType: mimeType(img.FileType),
				Data:     data,
			},
		}
		if p, ok := placements[img.Name]; ok {
			box := &Box{X0: p.X0, X1: p.X1, Y0: pageHeight - p.Y1, Y1: pageHeight - p.Y0}
			if box.Valid() {
				u.Box = box
			}
		}
		units = append(units, u)
	}
	return units, nil
}
