package builder

import (
	"math"
	"strings"

	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
)

// Resources hands out the resource names a page's content refers to. The
// document-model collaborator owns the actual dictionaries.
type Resources interface {
	Font(baseFont string) (string, error)
	Image(data []byte) (string, error)
	Opacity(alpha float64) (string, error)
}

// Color is an RGB color with components in 0..1.
type Color struct {
	R, G, B float64
}

// TextOptions configures text drawing.
type TextOptions struct {
	Font      string
	Bold      bool
	Italic    bool
	FontSize  float64
	Color     Color
	Underline bool
	// Align positions each line inside Width. Width 0 aligns on x.
	Align    string
	Width    float64
	Rotation float64
	Opacity  float64
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	LineCap     int
	LineJoin    int
	DashPattern []float64
	DashPhase   float64
	Fill        bool
	Stroke      bool
	Opacity     float64
}

// RectOptions configures rectangle and ellipse drawing (defaults to stroke if
// neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	LineCap     int
	DashPattern []float64
	DashPhase   float64
	Opacity     float64
}

func (o LineOptions) path() PathOptions {
	return PathOptions{
		StrokeColor: o.StrokeColor,
		LineWidth:   o.LineWidth,
		LineCap:     o.LineCap,
		DashPattern: o.DashPattern,
		DashPhase:   o.DashPhase,
		Stroke:      true,
		Opacity:     o.Opacity,
	}
}

// PageBuilder accumulates content-stream operations for one page, in native
// PDF user space (bottom-left origin). A draw call that fails appends nothing.
type PageBuilder struct {
	res Resources
	ops []contentstream.Operation
}

func NewPageBuilder(res Resources) *PageBuilder {
	return &PageBuilder{res: res}
}

// Operations returns the operations drawn so far.
func (p *PageBuilder) Operations() []contentstream.Operation {
	return append([]contentstream.Operation(nil), p.ops...)
}

func (p *PageBuilder) Empty() bool { return len(p.ops) == 0 }

// Bytes serializes the accumulated operations.
func (p *PageBuilder) Bytes() []byte { return contentstream.Serialize(p.ops) }

// DrawText sets text starting with the first baseline at (x, y). Lines split
// on '\n' step down by the font's line height. Rotation turns the block
// counterclockwise about (x, y).
func (p *PageBuilder) DrawText(text string, x, y float64, opts TextOptions) error {
	baseFont, err := FontName(opts.Font, opts.Bold, opts.Italic)
	if err != nil {
		return err
	}
	fontRes, err := p.res.Font(baseFont)
	if err != nil {
		return err
	}
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}
	m := Metrics{Font: baseFont, Size: size}

	ops := []contentstream.Operation{contentstream.Op("q")}
	if gs, err := p.opacity(opts.Opacity); err != nil {
		return err
	} else if gs != "" {
		ops = append(ops, contentstream.Op("gs", gs))
	}
	ctm := coords.RotateDegrees(opts.Rotation).Multiply(coords.Translate(x, y))
	ops = append(ops, contentstream.Op("cm", ctm[0], ctm[1], ctm[2], ctm[3], ctm[4], ctm[5]))
	ops = append(ops, colorOp(opts.Color, false))

	type placed struct {
		text   []byte
		dx, dy float64
		width  float64
	}
	var lines []placed
	for i, line := range strings.Split(text, "\n") {
		enc := EncodeWinAnsi(strings.TrimRight(line, "\r"))
		w := m.Width(enc)
		dx := 0.0
		switch opts.Align {
		case "center":
			dx = (opts.Width - w) / 2
		case "right":
			dx = opts.Width - w
		}
		if opts.Width <= 0 {
			dx = 0
		}
		lines = append(lines, placed{text: enc, dx: dx, dy: -float64(i) * m.LineHeight(), width: w})
	}

	ops = append(ops, contentstream.Op("BT"), contentstream.Op("Tf", fontRes, size))
	for _, l := range lines {
		if len(l.text) == 0 {
			continue
		}
		ops = append(ops,
			contentstream.Op("Tm", 1, 0, 0, 1, l.dx, l.dy),
			contentstream.Op("Tj", l.text),
		)
	}
	ops = append(ops, contentstream.Op("ET"))

	if opts.Underline {
		thickness := math.Max(size/15, 0.5)
		ops = append(ops, colorOp(opts.Color, true), contentstream.Op("w", thickness))
		for _, l := range lines {
			if l.width == 0 {
				continue
			}
			uy := l.dy - size*0.12
			ops = append(ops,
				contentstream.Op("m", l.dx, uy),
				contentstream.Op("l", l.dx+l.width, uy),
				contentstream.Op("S"),
			)
		}
	}
	ops = append(ops, contentstream.Op("Q"))
	p.ops = append(p.ops, ops...)
	return nil
}

// DrawRectangle paints the rectangle with lower-left corner (x, y).
func (p *PageBuilder) DrawRectangle(x, y, width, height float64, opts RectOptions) error {
	return p.drawPath(opts, func(ops []contentstream.Operation) []contentstream.Operation {
		return append(ops, contentstream.Op("re", x, y, width, height))
	})
}

// kappa places Bezier control points for a quarter ellipse.
const kappa = 0.5522847498

// DrawEllipse paints the ellipse inscribed in the given rectangle.
func (p *PageBuilder) DrawEllipse(x, y, width, height float64, opts RectOptions) error {
	rx, ry := math.Abs(width)/2, math.Abs(height)/2
	cx, cy := x+width/2, y+height/2
	ox, oy := rx*kappa, ry*kappa
	return p.drawPath(opts, func(ops []contentstream.Operation) []contentstream.Operation {
		return append(ops,
			contentstream.Op("m", cx+rx, cy),
			contentstream.Op("c", cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry),
			contentstream.Op("c", cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy),
			contentstream.Op("c", cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry),
			contentstream.Op("c", cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy),
			contentstream.Op("h"),
		)
	})
}

func (p *PageBuilder) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) error {
	return p.drawPath(opts.path(), func(ops []contentstream.Operation) []contentstream.Operation {
		return append(ops, contentstream.Op("m", x1, y1), contentstream.Op("l", x2, y2))
	})
}

// DrawPolyline strokes an open path through points. Fewer than two points
// draw nothing.
func (p *PageBuilder) DrawPolyline(points []geo.Point, opts PathOptions) error {
	if len(points) < 2 {
		return nil
	}
	opts.Fill = false
	opts.Stroke = true
	return p.drawPath(opts, func(ops []contentstream.Operation) []contentstream.Operation {
		ops = append(ops, contentstream.Op("m", points[0].X, points[0].Y))
		for _, pt := range points[1:] {
			ops = append(ops, contentstream.Op("l", pt.X, pt.Y))
		}
		return ops
	})
}

// DrawImage paints encoded image data scaled into the rectangle with
// lower-left corner (x, y).
func (p *PageBuilder) DrawImage(data []byte, x, y, width, height float64, opacity float64) error {
	name, err := p.res.Image(data)
	if err != nil {
		return err
	}
	ops := []contentstream.Operation{contentstream.Op("q")}
	gs, err := p.opacity(opacity)
	if err != nil {
		return err
	}
	if gs != "" {
		ops = append(ops, contentstream.Op("gs", gs))
	}
	ops = append(ops,
		contentstream.Op("cm", width, 0, 0, height, x, y),
		contentstream.Op("Do", name),
		contentstream.Op("Q"),
	)
	p.ops = append(p.ops, ops...)
	return nil
}

func (p *PageBuilder) drawPath(opts PathOptions, path func([]contentstream.Operation) []contentstream.Operation) error {
	if !opts.Stroke && !opts.Fill {
		opts.Stroke = true
	}
	ops := []contentstream.Operation{contentstream.Op("q")}
	gs, err := p.opacity(opts.Opacity)
	if err != nil {
		return err
	}
	if gs != "" {
		ops = append(ops, contentstream.Op("gs", gs))
	}
	ops = appendPathState(ops, opts)
	ops = path(ops)
	ops = append(ops, contentstream.Op(paintOperator(opts.Fill, opts.Stroke)), contentstream.Op("Q"))
	p.ops = append(p.ops, ops...)
	return nil
}

func (p *PageBuilder) opacity(alpha float64) (string, error) {
	if alpha <= 0 || alpha >= 1 {
		return "", nil
	}
	return p.res.Opacity(alpha)
}

func appendPathState(ops []contentstream.Operation, opts PathOptions) []contentstream.Operation {
	if opts.Fill {
		ops = append(ops, colorOp(opts.FillColor, false))
	}
	if opts.Stroke {
		ops = append(ops, colorOp(opts.StrokeColor, true))
		if opts.LineWidth > 0 {
			ops = append(ops, contentstream.Op("w", opts.LineWidth))
		}
		if opts.LineCap != 0 {
			ops = append(ops, contentstream.Op("J", opts.LineCap))
		}
		if opts.LineJoin != 0 {
			ops = append(ops, contentstream.Op("j", opts.LineJoin))
		}
		if len(opts.DashPattern) > 0 {
			ops = append(ops, contentstream.Op("d", opts.DashPattern, opts.DashPhase))
		}
	}
	return ops
}

func colorOp(c Color, stroking bool) contentstream.Operation {
	op := "rg"
	if stroking {
		op = "RG"
	}
	return contentstream.Op(op, c.R, c.G, c.B)
}

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	default:
		return "S"
	}
}
