// Package textlayer reads the text already present in a PDF and offers it as
// overlay candidates, the native counterpart of ocr for born-digital pages.
package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/ocr"
)

// ascent is the share of the font size that sits above the baseline.
const ascent = 0.8

// Extract returns one candidate per run of text on each page, in page space.
// Pages whose content cannot be decoded are skipped.
func Extract(ctx context.Context, data []byte) ([]ocr.Candidate, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open text layer: %w", err)
	}
	var out []ocr.Candidate
	for i := 1; i <= r.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		glyphs, ok := content(p)
		if !ok {
			continue
		}
		out = append(out, Runs(i, pageHeight(p), glyphs)...)
	}
	return out, nil
}

// Glyph is a positioned piece of text in native PDF space (bottom-left origin,
// Y on the baseline).
type Glyph struct {
	X, Y, W  float64
	FontSize float64
	S        string
}

func content(p lpdf.Page) (glyphs []Glyph, ok bool) {
	defer func() {
		if recover() != nil {
			glyphs, ok = nil, false
		}
	}()
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return glyphs, true
}

func pageHeight(p lpdf.Page) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() == lpdf.Array && box.Len() == 4 {
		return box.Index(3).Float64() - box.Index(1).Float64()
	}
	return 792
}

// Runs merges glyphs sharing a baseline into words separated by visible
// gaps and converts them to top-left page space.
func Runs(page int, height float64, glyphs []Glyph) []ocr.Candidate {
	sorted := append([]Glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > 1 {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var out []ocr.Candidate
	var b strings.Builder
	var cur Glyph
	var right float64
	flush := func() {
		text := strings.TrimSpace(b.String())
		b.Reset()
		if text == "" {
			return
		}
		top := height - (cur.Y + cur.FontSize*ascent)
		out = append(out, ocr.Candidate{
			Page:       page,
			Text:       text,
			Bounds:     geo.Rect{X: cur.X, Y: top, Width: right - cur.X, Height: cur.FontSize},
			Confidence: 1,
			Size:       cur.FontSize,
		})
	}
	for i, g := range sorted {
		gap := g.FontSize * 0.3
		if i > 0 && (math.Abs(g.Y-cur.Y) > 1 || g.X-right > gap) {
			flush()
		}
		if b.Len() == 0 {
			cur = g
		}
		if strings.TrimSpace(g.S) == "" && b.Len() == 0 {
			right = g.X + g.W
			continue
		}
		b.WriteString(g.S)
		right = g.X + g.W
	}
	flush()
	return out
}
