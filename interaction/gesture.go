package interaction

import (
	"fmt"
	"math"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
)

// previewID marks transient gesture items. They never enter the collections.
const previewID = "preview"

// dragThreshold is the smallest drag-to-size extent kept, in device pixels.
const dragThreshold = 3

type gesture interface {
	move(c *Controller, pt geo.Point)
	release(c *Controller) error
	preview(c *Controller) (layer.Item, bool)
}

// editGesture drags or resizes an existing item or field. Moves replace the
// live state; release commits once.
type editGesture struct {
	before layer.State
	id     string
	origin geo.Rect
	offset geo.Point

	corner Corner
	anchor geo.Point
	sx, sy float64

	moved bool
}

func newResize(st layer.State, id string, r geo.Rect, corner Corner) *editGesture {
	n := r.Normalize()
	g := &editGesture{before: st, id: id, origin: r, corner: corner, sx: 1, sy: 1}
	g.anchor = geo.Point{X: n.X, Y: n.Y}
	if corner == CornerNW || corner == CornerSW {
		g.anchor.X, g.sx = n.X+n.Width, -1
	}
	if corner == CornerNW || corner == CornerNE {
		g.anchor.Y, g.sy = n.Y+n.Height, -1
	}
	return g
}

func (g *editGesture) frame(pt geo.Point) geo.Rect {
	if g.corner == "" {
		r := g.origin
		r.X, r.Y = pt.X-g.offset.X, pt.Y-g.offset.Y
		return r
	}
	w := math.Max(g.sx*(pt.X-g.anchor.X), layer.MinSize)
	h := math.Max(g.sy*(pt.Y-g.anchor.Y), layer.MinSize)
	r := geo.Rect{X: g.anchor.X, Y: g.anchor.Y, Width: w, Height: h}
	if g.sx < 0 {
		r.X -= w
	}
	if g.sy < 0 {
		r.Y -= h
	}
	return r
}

func (g *editGesture) move(c *Controller, pt geo.Point) {
	cur := c.model.State()
	next := reframe(cur, g.id, g.frame(pt))
	if !next.Same(cur) {
		c.model.Replace(next)
		g.moved = true
	}
}

func (g *editGesture) release(c *Controller) error {
	if !g.moved {
		return nil
	}
	what := "move"
	if g.corner != "" {
		what = "resize " + string(g.corner)
	}
	return c.commit(c.model.State(), what)
}

func (g *editGesture) preview(*Controller) (layer.Item, bool) { return layer.Item{}, false }

type lineGesture struct {
	start, end geo.Point
}

func (g *lineGesture) move(_ *Controller, pt geo.Point) { g.end = pt }

func (g *lineGesture) release(*Controller) error { return nil }

func (g *lineGesture) preview(c *Controller) (layer.Item, bool) {
	r := geo.Rect{X: g.start.X, Y: g.start.Y, Width: g.end.X - g.start.X, Height: g.end.Y - g.start.Y}
	it := layer.NewShape(c.model.Page(), r, c.shape(layer.ShapeLine))
	it.ID = previewID
	return it, true
}

// strokeGesture accumulates a freehand or drawn-signature path in page space.
type strokeGesture struct {
	points []geo.Point
}

func (g *strokeGesture) move(_ *Controller, pt geo.Point) {
	if n := len(g.points); n > 0 && g.points[n-1] == pt {
		return
	}
	g.points = append(g.points, pt)
}

func (g *strokeGesture) item(c *Controller) layer.Item {
	kind := layer.ShapeFreeform
	if c.tool == ToolSignature {
		kind = layer.ShapeSignature
	}
	r, _ := geo.Bounds(g.points)
	body := c.shape(kind)
	body.Points = append([]geo.Point(nil), g.points...)
	return layer.NewShape(c.model.Page(), r, body)
}

func (g *strokeGesture) release(c *Controller) error {
	if len(g.points) < 2 {
		return ErrInteractionDiscarded
	}
	return c.add(g.item(c))
}

func (g *strokeGesture) preview(c *Controller) (layer.Item, bool) {
	if len(g.points) < 2 {
		return layer.Item{}, false
	}
	it := g.item(c)
	it.ID = previewID
	return it, true
}

// boxGesture is drag-to-size for highlights and redactions.
type boxGesture struct {
	anchor, current geo.Point
}

func (g *boxGesture) move(_ *Controller, pt geo.Point) { g.current = pt }

func (g *boxGesture) item(c *Controller, r geo.Rect) layer.Item {
	if c.tool == ToolRedaction {
		return layer.NewRedaction(c.model.Page(), r)
	}
	body := c.shape(layer.ShapeHighlight)
	body.Color = layer.Yellow
	return layer.NewShape(c.model.Page(), r, body)
}

func (g *boxGesture) release(c *Controller) error {
	r := geo.FromCorners(g.anchor, g.current)
	least := coords.PageLength(dragThreshold, c.model.View())
	if r.Width < least || r.Height < least {
		return ErrInteractionDiscarded
	}
	r.Width, r.Height = math.Max(r.Width, layer.MinSize), math.Max(r.Height, layer.MinSize)
	return c.add(g.item(c, r))
}

func (g *boxGesture) preview(c *Controller) (layer.Item, bool) {
	it := g.item(c, geo.FromCorners(g.anchor, g.current))
	it.ID = previewID
	return it, true
}

// create builds the item or field a placement asked for.
func (c *Controller) create(p Prompt, a Answer) error {
	text := geo.Rect{X: p.At.X, Y: p.At.Y, Width: c.cfg.TextWidth, Height: c.cfg.TextHeight}
	switch p.Tool {
	case ToolText:
		return c.add(layer.NewText(p.Page, text, layer.TextBody{
			Value: a.Text,
			Font:  c.cfg.Font,
			Size:  c.cfg.FontSize,
			Color: c.cfg.Color,
			Align: layer.AlignLeft,
		}))
	case ToolTypedSignature:
		body := c.shape(layer.ShapeSignature)
		body.Text = a.Text
		return c.add(layer.NewShape(p.Page, text, body))
	case ToolImage:
		_, cfg, err := builder.ImageData(a.Image)
		if err != nil {
			c.imageData = nil
			return err
		}
		w := c.cfg.ImageWidth
		h := w
		if cfg.Width > 0 {
			h = w * float64(cfg.Height) / float64(cfg.Width)
		}
		body := c.shape(layer.ShapeImage)
		body.Image = append([]byte(nil), a.Image...)
		return c.add(layer.NewShape(p.Page, geo.Rect{X: p.At.X, Y: p.At.Y, Width: w, Height: math.Max(h, layer.MinSize)}, body))
	}

	typ, ok := fieldTools[p.Tool]
	if !ok {
		return fmt.Errorf("unknown tool %q", p.Tool)
	}
	st := c.model.State()
	r := text
	if typ == layer.FieldCheckbox || typ == layer.FieldRadio {
		r.Width, r.Height = c.cfg.StampSize/2, c.cfg.StampSize/2
	}
	f := layer.NewField(uniqueName(st.Fields, string(typ)), p.Page, typ, r)
	switch typ {
	case layer.FieldRadio:
		if a.Text == "" {
			return fmt.Errorf("%w: radio button needs a group", layer.ErrInvalidItem)
		}
		on := fmt.Sprintf("Choice%d", len(st.Fields.Group(a.Text))+1)
		if len(a.Options) > 0 && a.Options[0] != "" {
			on = a.Options[0]
		}
		f.Name, f.RadioGroup, f.Options = a.Text, a.Text, []string{on}
	case layer.FieldChoice:
		if len(a.Options) == 0 {
			return fmt.Errorf("%w: choice field needs options", layer.ErrInvalidItem)
		}
		f.Options = append([]string(nil), a.Options...)
	}
	fields, err := st.Fields.Add(f)
	if err != nil {
		return err
	}
	st.Fields = fields
	return c.commit(st, "add "+string(typ)+" field")
}

func uniqueName(fields *layer.Fields, prefix string) string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", prefix, i)
		if _, taken := fields.ByName(name); !taken {
			return name
		}
	}
}
