package contentstream

import (
	"math"

	"github.com/wudi/pdfoverlay/coords"
)

// Rect is an axis-aligned box in user space (bottom-left origin).
type Rect struct {
	LLX, LLY, URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// OpBBox is the area painted by the operation at OpIndex.
type OpBBox struct {
	OpIndex int
	Rect    Rect
}

// WidthFunc measures text in text-space units for the font resource name and
// size in effect.
type WidthFunc func(font string, text []byte, size float64) float64

// Tracer replays operations and reports where they paint.
type Tracer struct {
	Width WidthFunc
}

func NewTracer() *Tracer { return &Tracer{} }

type graphicsState struct {
	ctm   coords.Matrix
	stack []coords.Matrix
}

type textState struct {
	font      string
	size      float64
	matrix    coords.Matrix
	lineStart coords.Matrix
	leading   float64
}

// Trace returns the boxes of text-showing operators, rectangles, painted
// paths and XObject invocations.
func (t *Tracer) Trace(ops []Operation) ([]OpBBox, error) {
	bboxes := make([]OpBBox, 0, len(ops))
	gs := &graphicsState{ctm: coords.Identity()}
	ts := &textState{matrix: coords.Identity(), lineStart: coords.Identity()}
	var path []coords.Point

	for i, op := range ops {
		var pts []coords.Point

		switch op.Operator {
		case "q":
			gs.stack = append(gs.stack, gs.ctm)
		case "Q":
			if n := len(gs.stack); n > 0 {
				gs.ctm = gs.stack[n-1]
				gs.stack = gs.stack[:n-1]
			}
		case "cm":
			if len(op.Operands) == 6 {
				gs.ctm = operationMatrix(op).Multiply(gs.ctm)
			}

		case "BT":
			ts.matrix = coords.Identity()
			ts.lineStart = coords.Identity()
		case "Tf":
			ts.font, ts.size = op.Name(0), op.Number(1)
		case "TL":
			ts.leading = op.Number(0)
		case "Tm":
			if len(op.Operands) == 6 {
				ts.lineStart = operationMatrix(op)
				ts.matrix = ts.lineStart
			}
		case "Td":
			ts.lineStart = coords.Translate(op.Number(0), op.Number(1)).Multiply(ts.lineStart)
			ts.matrix = ts.lineStart
		case "T*":
			ts.lineStart = coords.Translate(0, -ts.leading).Multiply(ts.lineStart)
			ts.matrix = ts.lineStart
		case "Tj":
			pts = t.show(op.Text(0), 0, ts, gs)
		case "TJ":
			pts = t.showArray(op, ts, gs)
		case "'", "\"":
			ts.lineStart = coords.Translate(0, -ts.leading).Multiply(ts.lineStart)
			ts.matrix = ts.lineStart
			if n := len(op.Operands); n > 0 {
				pts = t.show(op.Text(n-1), 0, ts, gs)
			}

		case "m", "l":
			path = append(path, gs.ctm.Transform(coords.Point{X: op.Number(0), Y: op.Number(1)}))
		case "c":
			for k := 0; k+1 < 6; k += 2 {
				path = append(path, gs.ctm.Transform(coords.Point{X: op.Number(k), Y: op.Number(k + 1)}))
			}
		case "re":
			x, y, w, h := op.Number(0), op.Number(1), op.Number(2), op.Number(3)
			for _, p := range []coords.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x, Y: y + h}, {X: x + w, Y: y + h}} {
				path = append(path, gs.ctm.Transform(p))
			}
		case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*":
			pts, path = path, nil
		case "n":
			path = nil

		case "Do":
			for _, p := range []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
				pts = append(pts, gs.ctm.Transform(p))
			}
		}

		if len(pts) > 0 {
			bboxes = append(bboxes, OpBBox{OpIndex: i, Rect: pointsToRect(pts...)})
		}
	}

	return bboxes, nil
}

// ShowsText reports whether operator paints text.
func ShowsText(operator string) bool {
	switch operator {
	case "Tj", "TJ", "'", "\"":
		return true
	}
	return false
}

func (t *Tracer) width(text []byte, ts *textState) float64 {
	if t.Width != nil {
		return t.Width(ts.font, text, ts.size)
	}
	return float64(len(text)) * 0.5 * ts.size
}

// show boxes text plus adjust at the current text position and advances it.
func (t *Tracer) show(text []byte, adjust float64, ts *textState, gs *graphicsState) []coords.Point {
	width := t.width(text, ts) + adjust
	m := ts.matrix.Multiply(gs.ctm)
	ts.matrix = coords.Translate(width, 0).Multiply(ts.matrix)
	return []coords.Point{
		m.Transform(coords.Point{X: 0, Y: 0}),
		m.Transform(coords.Point{X: width, Y: 0}),
		m.Transform(coords.Point{X: 0, Y: ts.size}),
		m.Transform(coords.Point{X: width, Y: ts.size}),
	}
}

// showArray handles TJ: strings interleaved with kerning in thousandths of
// an em.
func (t *Tracer) showArray(op Operation, ts *textState, gs *graphicsState) []coords.Point {
	if len(op.Operands) != 1 {
		return nil
	}
	arr, ok := op.Operands[0].(ArrayOperand)
	if !ok {
		return nil
	}
	var text []byte
	var adjust float64
	for _, v := range arr.Values {
		switch e := v.(type) {
		case StringOperand:
			text = append(text, e.Value...)
		case NumberOperand:
			adjust -= e.Value / 1000 * ts.size
		}
	}
	return t.show(text, adjust, ts, gs)
}

func operationMatrix(op Operation) coords.Matrix {
	return coords.Matrix{op.Number(0), op.Number(1), op.Number(2), op.Number(3), op.Number(4), op.Number(5)}
}

func pointsToRect(points ...coords.Point) Rect {
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{LLX: minX, LLY: minY, URX: maxX, URY: maxY}
}
