package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/wudi/pdfoverlay/geo"
)

// Candidate is recognized text positioned in page space, ready to become a
// text box.
type Candidate struct {
	Page       int      `json:"page"`
	Text       string   `json:"text"`
	Bounds     geo.Rect `json:"bounds"`
	Confidence float64  `json:"confidence"`
	// Size is the font size the text appeared in, when known.
	Size float64 `json:"size,omitempty"`
}

// InputFromImage encodes a page raster as a PNG input. The id is derived from
// the page number so results can be matched back.
func InputFromImage(page int, img image.Image, opts ...InputOption) (Input, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("encode page %d raster: %w", page, err)
	}
	in := Input{
		ID:     fmt.Sprintf("page-%d", page),
		Image:  buf.Bytes(),
		Format: ImageFormatPNG,
		Page:   page,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// Recognize runs engine over inputs, batching when the engine supports it.
func Recognize(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RecognizePage recognizes one page raster and returns its lines as
// candidates whose confidence is at least minConfidence.
func RecognizePage(ctx context.Context, engine Engine, in Input, minConfidence float64) ([]Candidate, error) {
	results, err := Recognize(ctx, engine, []Input{in})
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, res := range results {
		out = append(out, Candidates(res, in, minConfidence)...)
	}
	return out, nil
}

// Candidates maps the lines of res from image pixels to page points. Lines
// are offset by the input region, since engines report boxes relative to the
// cropped image.
func Candidates(res Result, in Input, minConfidence float64) []Candidate {
	scale := in.Scale()
	var dx, dy float64
	if in.Region != nil {
		dx, dy = in.Region.X, in.Region.Y
	}
	var out []Candidate
	for _, block := range res.Blocks {
		for _, line := range block.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" || line.Bounds.IsEmpty() || line.Confidence < minConfidence {
				continue
			}
			out = append(out, Candidate{
				Page: in.Page,
				Text: text,
				Bounds: geo.Rect{
					X:      (line.Bounds.X + dx) * scale,
					Y:      (line.Bounds.Y + dy) * scale,
					Width:  line.Bounds.Width * scale,
					Height: line.Bounds.Height * scale,
				},
				Confidence: line.Confidence,
			})
		}
	}
	return out
}
