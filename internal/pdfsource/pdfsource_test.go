package pdfsource

import (
	"math"
	"testing"
)

func glyphs(font string, size, x, y float64, s string) []Glyph {
	var out []Glyph
	for _, r := range s {
		out = append(out, Glyph{Font: font, Size: size, X: x, Y: y, W: size * 0.5, S: string(r)})
		x += size * 0.5
	}
	return out
}

func TestGroupGlyphsSplitsColumnsAndMergesLines(t *testing.T) {
	var in []Glyph
	in = append(in, glyphs("Helvetica-Bold", 14, 50, 700, "OVERVIEW")...)
	in = append(in, glyphs("Helvetica", 10, 50, 680, "Left line one")...)
	in = append(in, glyphs("Helvetica", 10, 320, 680, "Right column")...)
	in = append(in, glyphs("Helvetica", 10, 50, 668, "Left line two")...)

	units := GroupGlyphs(in, 792)
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d: %+v", len(units), units)
	}
	if units[0].Text != "OVERVIEW" || !units[0].Bold {
		t.Fatalf("expected bold heading first, got %+v", units[0])
	}
	if units[1].Text != "Left line one\nLeft line two" {
		t.Fatalf("expected merged left paragraph, got %q", units[1].Text)
	}
	if units[2].Text != "Right column" {
		t.Fatalf("expected right column run, got %q", units[2].Text)
	}
	if units[2].Box == nil || units[2].Box.X0 != 320 {
		t.Fatalf("expected right column box at x=320, got %+v", units[2].Box)
	}
	if units[0].Box.Y0 >= units[1].Box.Y0 {
		t.Fatalf("expected heading above paragraph in top-down coordinates")
	}
}

func TestImagePlacements(t *testing.T) {
	stream := []byte(`q 1 0 0 1 0 0 cm BT /F1 12 Tf (Hello) Tj ET Q
q 200 0 0 100 50 400 cm /Im0 Do Q
q 2 0 0 2 10 10 cm q 50 0 0 25 0 0 cm /Im1 Do Q Q`)
	p := ImagePlacements(stream)
	im0, ok := p["Im0"]
	if !ok {
		t.Fatalf("Im0 not placed: %+v", p)
	}
	if im0.X0 != 50 || im0.Y0 != 400 || im0.X1 != 250 || im0.Y1 != 500 {
		t.Fatalf("unexpected Im0 box %+v", im0)
	}
	im1 := p["Im1"]
	if im1.X0 != 10 || im1.X1 != 110 || im1.Y1 != 60 {
		t.Fatalf("unexpected Im1 box %+v", im1)
	}
}

func TestBoxValid(t *testing.T) {
	cases := []struct {
		name string
		box  *Box
		want bool
	}{
		{"nil", nil, false},
		{"ok", &Box{0, 0, 10, 10}, true},
		{"inverted", &Box{10, 0, 5, 10}, false},
		{"negative", &Box{-1, 0, 5, 10}, false},
		{"nan", &Box{math.NaN(), 0, 5, 10}, false},
	}
	for _, tc := range cases {
		if got := tc.box.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
