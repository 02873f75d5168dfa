package render

import (
	"image"
	"math"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
)

// OverlayOptions carries the transient parts of the editor the overlay
// shows besides the committed state.
type OverlayOptions struct {
	Selected string
	// Preview items are gestures in progress, drawn dashed.
	Preview []layer.Item
}

// PaintOverlay draws the items and field values of page over base. It is a
// pure function of its inputs; base is not modified. A nil base paints on a
// transparent canvas sized for view.
func (c *Canvas) PaintOverlay(base image.Image, state layer.State, page int, view coords.ViewState, opts OverlayOptions) *image.RGBA {
	var img *image.RGBA
	if base != nil {
		img = image.NewRGBA(image.Rect(0, 0, base.Bounds().Dx(), base.Bounds().Dy()))
		xdraw.Draw(img, img.Bounds(), base, base.Bounds().Min, xdraw.Src)
	} else {
		dev := coords.DeviceSize(view)
		img = image.NewRGBA(image.Rect(0, 0, int(math.Ceil(dev.Width)), int(math.Ceil(dev.Height))))
	}
	dc := gg.NewContextForRGBA(img)
	p := painter{c: c, dc: dc, img: img, view: view}

	for _, f := range state.Fields.ByPage(page) {
		p.field(f)
	}
	for _, it := range state.Items.ByPage(page) {
		p.item(it, false)
	}
	for _, it := range opts.Preview {
		if it.Page == page {
			p.item(it, true)
		}
	}
	if opts.Selected != "" {
		if it, ok := state.Items.Get(opts.Selected); ok && it.Page == page {
			p.selection(it.Rect())
		} else if f, ok := state.Fields.Get(opts.Selected); ok && f.Page == page {
			p.selection(f.Rect.Rect())
		}
	}
	return img
}

type painter struct {
	c    *Canvas
	dc   *gg.Context
	img  *image.RGBA
	view coords.ViewState
}

// dev converts a page length to device pixels.
func (p painter) dev(pageLen float64) float64 { return coords.DeviceLength(pageLen, p.view) }

func (p painter) pt(x, y float64) (float64, float64) {
	d := coords.ToDeviceSpace(coords.Point{X: x, Y: y}, p.view)
	return d.X, d.Y
}

// device returns the normalized device rectangle covering r.
func (p painter) device(r geo.Rect) geo.Rect {
	n := r.Normalize()
	x1, y1 := p.pt(n.X, n.Y)
	x2, y2 := p.pt(n.X+n.Width, n.Y+n.Height)
	return geo.FromCorners(geo.Point{X: x1, Y: y1}, geo.Point{X: x2, Y: y2})
}

func (p painter) rect(r geo.Rect) {
	d := p.device(r)
	p.dc.DrawRectangle(d.X, d.Y, d.Width, d.Height)
}

func (p painter) ellipse(r geo.Rect) {
	d := p.device(r)
	c := d.Center()
	p.dc.DrawEllipse(c.X, c.Y, d.Width/2, d.Height/2)
}

func (p painter) polyline(pts []geo.Point) {
	for i, pt := range pts {
		x, y := p.pt(pt.X, pt.Y)
		if i == 0 {
			p.dc.MoveTo(x, y)
			continue
		}
		p.dc.LineTo(x, y)
	}
}

type textStyle struct {
	family                  string
	bold, italic, underline bool
	size                    float64
	align                   layer.Align
	width                   float64
}

// text sets s with its box's top-left corner at page point (x, y), turned
// counterclockwise by rotation degrees. The current color is used.
func (p painter) text(s string, x, y, rotation float64, st textStyle) {
	if st.size <= 0 {
		return
	}
	face, err := p.c.face(st.family, st.bold, st.italic, p.dev(st.size))
	if err != nil {
		return
	}
	ox, oy := p.pt(x, y)
	p.dc.Push()
	defer p.dc.Pop()
	p.dc.RotateAbout(gg.Radians(float64(p.view.Rotation.Normalize())-rotation), ox, oy)
	p.dc.SetFontFace(face)
	lh := p.dev(st.size * builder.LineSpacing)
	ascent := p.dev(st.size * 0.8)
	for i, line := range strings.Split(s, "\n") {
		w, _ := p.dc.MeasureString(line)
		dx := 0.0
		switch st.align {
		case layer.AlignCenter:
			dx = (p.dev(st.width) - w) / 2
		case layer.AlignRight:
			dx = p.dev(st.width) - w
		}
		bx, by := ox+dx, oy+ascent+float64(i)*lh
		p.dc.DrawString(line, bx, by)
		if st.underline && w > 0 {
			uy := by + p.dev(st.size*0.12)
			p.dc.SetLineWidth(math.Max(p.dev(st.size/15), 1))
			p.dc.DrawLine(bx, uy, bx+w, uy)
			p.dc.Stroke()
		}
	}
}

func (p painter) item(it layer.Item, dashed bool) {
	dc := p.dc
	if dashed {
		dc.SetDash(6, 4)
		defer dc.SetDash()
	}
	switch body := it.Body.(type) {
	case layer.TextBody:
		dc.SetRGB(body.Color.Floats())
		p.text(body.Value, it.X, it.Y, body.Rotation, textStyle{
			family: body.Font, bold: body.Bold, italic: body.Italic, underline: body.Underline,
			size: body.Size, align: body.Align, width: it.Width,
		})
	case layer.RedactionBody:
		dc.SetRGB(body.Color.Floats())
		p.rect(it.Rect())
		dc.Fill()
	case layer.ShapeBody:
		r, g, b := body.Color.Floats()
		dc.SetRGB(r, g, b)
		dc.SetLineWidth(math.Max(p.dev(body.StrokeWidth), 1))
		dc.SetLineCap(gg.LineCapRound)
		dc.SetLineJoin(gg.LineJoinRound)
		switch body.Shape {
		case layer.ShapeHighlight:
			dc.SetRGBA(r, g, b, p.c.HighlightOpacity)
			p.rect(it.Rect())
			dc.Fill()
		case layer.ShapeRectangle:
			p.rect(it.Rect())
			dc.Stroke()
		case layer.ShapeCircle:
			p.ellipse(it.Rect())
			dc.Stroke()
		case layer.ShapeLine:
			x1, y1 := p.pt(it.X, it.Y)
			x2, y2 := p.pt(it.X+it.Width, it.Y+it.Height)
			dc.DrawLine(x1, y1, x2, y2)
			dc.Stroke()
		case layer.ShapeCheckmark, layer.ShapeXMark:
			for _, stroke := range layer.Strokes(body.Shape, it.Rect()) {
				p.polyline(stroke)
				dc.Stroke()
			}
		case layer.ShapeFreeform, layer.ShapeSignature:
			if len(body.Points) > 1 {
				p.polyline(body.Points)
				dc.Stroke()
			} else if body.Text != "" {
				size := math.Max(it.Height*0.7, 4)
				p.text(body.Text, it.X, it.Y+(it.Height-size)/2, 0, textStyle{family: "Times", italic: true, size: size})
			}
		case layer.ShapeImage:
			if !p.image(body.Image, it.Rect()) {
				p.rect(it.Rect())
				dc.Stroke()
				p.polyline(layer.Strokes(layer.ShapeXMark, it.Rect())[0])
				dc.Stroke()
			}
		}
	}
}

// image draws encoded image data scaled into r. It reports false when the
// data cannot be decoded.
func (p painter) image(data []byte, r geo.Rect) bool {
	src, err := builder.DecodeImage(data)
	if err != nil {
		return false
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return false
	}
	n := r.Normalize()
	m := coords.Translate(-float64(b.Min.X), -float64(b.Min.Y)).
		Multiply(coords.Scale(n.Width/float64(b.Dx()), n.Height/float64(b.Dy()))).
		Multiply(coords.Translate(n.X, n.Y)).
		Multiply(coords.PageToDevice(p.view))
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.ApproxBiLinear.Transform(p.img, aff, src, b, xdraw.Over, nil)
	return true
}

func (p painter) field(f layer.FormField) {
	r := f.Rect.Rect()
	p.dc.SetRGB(0, 0, 0)
	switch f.Type {
	case layer.FieldCheckbox:
		if f.Selected() {
			p.dc.SetLineWidth(math.Max(p.dev(1.5), 1))
			p.polyline(layer.Strokes(layer.ShapeCheckmark, r)[0])
			p.dc.Stroke()
		}
	case layer.FieldRadio:
		if f.Selected() {
			inner := geo.FromCenter(r.Center(), r.Width/2, r.Height/2)
			p.ellipse(inner)
			p.dc.Fill()
		}
	default:
		if f.Value == "" {
			return
		}
		size := math.Min(12, math.Max(r.Height*0.7, 4))
		p.text(f.Value, r.X+2, r.Y+(r.Height-size)/2, 0, textStyle{size: size})
	}
}

func (p painter) selection(r geo.Rect) {
	dc := p.dc
	dc.SetRGB(0.15, 0.39, 0.92)
	dc.SetLineWidth(1)
	dc.SetDash(4, 3)
	p.rect(r)
	dc.Stroke()
	dc.SetDash()
	hs := p.c.HandleSize
	for _, c := range r.Normalize().Corners() {
		x, y := p.pt(c.X, c.Y)
		dc.DrawRectangle(x-hs/2, y-hs/2, hs, hs)
		dc.Fill()
	}
}
