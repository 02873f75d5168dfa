package export

import (
	"fmt"
	"math"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/pdfdoc"
)

// ascent is the share of the font size above the baseline, matching the
// preview painter.
const ascent = 0.8

// target is one page of the output and its visible box in native space.
type target struct {
	n   int
	box pdfdoc.Box
}

// point maps a page-space point to native space.
func (t target) point(p geo.Point) geo.Point {
	return geo.Point{X: t.box.LLX + p.X, Y: t.box.URY - p.Y}
}

// native maps a page-space rectangle to a native box. nativeY is the page
// height minus y minus height, offset by the box origin.
func (t target) native(r geo.Rect) pdfdoc.Box {
	n := r.Normalize()
	llx := t.box.LLX + n.X
	lly := t.box.URY - n.Y - n.Height
	return pdfdoc.Box{LLX: llx, LLY: lly, URX: llx + n.Width, URY: lly + n.Height}
}

func (t target) points(pts []geo.Point) []geo.Point {
	out := make([]geo.Point, len(pts))
	for i, p := range pts {
		out[i] = t.point(p)
	}
	return out
}

func color(c layer.RGB) builder.Color {
	r, g, b := c.Floats()
	return builder.Color{R: r, G: g, B: b}
}

func stroke(c layer.RGB, width float64) builder.PathOptions {
	return builder.PathOptions{
		StrokeColor: color(c),
		LineWidth:   width,
		LineCap:     1,
		LineJoin:    1,
		Stroke:      true,
	}
}

// text draws s with its box's top-left corner at page point at, turned
// counterclockwise by rotation degrees about that corner.
func (mg *merge) text(t target, s string, at geo.Point, rotation float64, opts builder.TextOptions) error {
	corner := t.point(at)
	rad := rotation * math.Pi / 180
	a := opts.FontSize * ascent
	return mg.doc.DrawText(t.n, s, corner.X+a*math.Sin(rad), corner.Y-a*math.Cos(rad), opts)
}

func (mg *merge) draw(t target, it layer.Item) error {
	doc := mg.doc
	box := t.native(it.Rect())
	w, h := box.Width(), box.Height()

	switch body := it.Body.(type) {
	case layer.TextBody:
		return mg.text(t, body.Value, geo.Point{X: it.X, Y: it.Y}, body.Rotation, builder.TextOptions{
			Font:      body.Font,
			Bold:      body.Bold,
			Italic:    body.Italic,
			FontSize:  body.Size,
			Color:     color(body.Color),
			Underline: body.Underline,
			Align:     string(body.Align),
			Width:     it.Width,
			Rotation:  body.Rotation,
		})

	case layer.RedactionBody:
		return doc.DrawRectangle(t.n, box.LLX, box.LLY, w, h, builder.RectOptions{FillColor: color(body.Color), Fill: true})

	case layer.ShapeBody:
		switch body.Shape {
		case layer.ShapeHighlight:
			return doc.DrawRectangle(t.n, box.LLX, box.LLY, w, h, builder.RectOptions{
				FillColor: color(body.Color),
				Fill:      true,
				Opacity:   mg.m.cfg.HighlightOpacity,
			})
		case layer.ShapeRectangle:
			return doc.DrawRectangle(t.n, box.LLX, box.LLY, w, h, stroke(body.Color, body.StrokeWidth))
		case layer.ShapeCircle:
			return doc.DrawEllipse(t.n, box.LLX, box.LLY, w, h, stroke(body.Color, body.StrokeWidth))
		case layer.ShapeLine:
			a := t.point(geo.Point{X: it.X, Y: it.Y})
			b := t.point(geo.Point{X: it.X + it.Width, Y: it.Y + it.Height})
			return doc.DrawLine(t.n, a.X, a.Y, b.X, b.Y, builder.LineOptions{
				StrokeColor: color(body.Color),
				LineWidth:   body.StrokeWidth,
				LineCap:     1,
			})
		case layer.ShapeCheckmark, layer.ShapeXMark:
			for _, s := range layer.Strokes(body.Shape, it.Rect()) {
				if err := doc.DrawPolyline(t.n, t.points(s), stroke(body.Color, body.StrokeWidth)); err != nil {
					return err
				}
			}
			return nil
		case layer.ShapeFreeform, layer.ShapeSignature:
			if len(body.Points) > 1 {
				return doc.DrawPolyline(t.n, t.points(body.Points), stroke(body.Color, body.StrokeWidth))
			}
			if body.Text == "" {
				return fmt.Errorf("%w: %s without points or text", layer.ErrInvalidItem, body.Shape)
			}
			size := math.Max(it.Height*0.7, 4)
			top := geo.Point{X: it.X, Y: it.Y + (it.Height-size)/2}
			return mg.text(t, body.Text, top, 0, builder.TextOptions{
				Font:     "Times",
				Italic:   true,
				FontSize: size,
				Color:    color(body.Color),
			})
		case layer.ShapeImage:
			return doc.DrawImage(t.n, body.Image, box.LLX, box.LLY, w, h, 1)
		}
		return fmt.Errorf("%w: shape %q", layer.ErrInvalidItem, body.Shape)
	}
	return fmt.Errorf("%w: kind %q", layer.ErrInvalidItem, it.Kind())
}
