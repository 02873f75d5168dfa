// Package interaction turns pointer events over a rendered page into overlay
// edits. Every pointer position arrives in device pixels and is resolved to
// page space through coords before anything is hit-tested or stored.
package interaction

import (
	"errors"
	"fmt"
	"math"

	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/observability"
)

// ErrInteractionDiscarded marks a gesture too small to mean anything, such as
// a click-sized freehand stroke. Callers ignore it.
var ErrInteractionDiscarded = errors.New("interaction discarded")

var ErrNoPrompt = errors.New("no pending prompt")

type Tool string

const (
	ToolSelect         Tool = "select"
	ToolText           Tool = "text"
	ToolRectangle      Tool = "rectangle"
	ToolCircle         Tool = "circle"
	ToolCheckmark      Tool = "checkmark"
	ToolXMark          Tool = "x-mark"
	ToolHighlight      Tool = "highlight"
	ToolRedaction      Tool = "redaction"
	ToolLine           Tool = "line"
	ToolFreehand       Tool = "freehand"
	ToolSignature      Tool = "signature"
	ToolTypedSignature Tool = "typed-signature"
	ToolImage          Tool = "image"
	ToolTextField      Tool = "text-field"
	ToolCheckboxField  Tool = "checkbox-field"
	ToolRadioField     Tool = "radio-field"
	ToolChoiceField    Tool = "choice-field"
	ToolSignatureField Tool = "signature-field"
)

var stamps = map[Tool]layer.ShapeKind{
	ToolRectangle: layer.ShapeRectangle,
	ToolCircle:    layer.ShapeCircle,
	ToolCheckmark: layer.ShapeCheckmark,
	ToolXMark:     layer.ShapeXMark,
}

var fieldTools = map[Tool]layer.FieldType{
	ToolTextField:      layer.FieldText,
	ToolCheckboxField:  layer.FieldCheckbox,
	ToolRadioField:     layer.FieldRadio,
	ToolChoiceField:    layer.FieldChoice,
	ToolSignatureField: layer.FieldSignature,
}

// Corner names a resize handle.
type Corner string

const (
	CornerNW Corner = "nw"
	CornerNE Corner = "ne"
	CornerSW Corner = "sw"
	CornerSE Corner = "se"
)

// Model is the editing session the controller drives.
type Model interface {
	View() coords.ViewState
	Page() int
	State() layer.State
	// Replace swaps the live collections without recording history.
	Replace(layer.State)
	// Commit records the live collections as one history entry.
	Commit() bool
}

type Option func(*Controller)

func WithLogger(l observability.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is the per-tool gesture state machine. Like the session it
// drives, it is single-owner.
type Controller struct {
	model  Model
	cfg    config.Interaction
	logger observability.Logger

	tool     Tool
	selected string
	gesture  gesture
	prompt   *Prompt

	signatureName string
	imageData     []byte
}

func NewController(model Model, cfg config.Interaction, opts ...Option) *Controller {
	c := &Controller{model: model, cfg: cfg, tool: ToolSelect, logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrNop(c.logger)
	return c
}

func (c *Controller) Tool() Tool { return c.tool }

// SetTool switches tools. An armed gesture or pending prompt is dropped
// without committing anything.
func (c *Controller) SetTool(t Tool) {
	if t == c.tool {
		return
	}
	c.Cancel()
	c.tool = t
	if t != ToolSelect {
		c.selected = ""
	}
}

// Cancel abandons the gesture in progress. A drag or resize in flight is
// rolled back to where it started.
func (c *Controller) Cancel() {
	if g, ok := c.gesture.(*editGesture); ok && g.moved {
		c.model.Replace(g.before)
	}
	c.gesture = nil
	c.prompt = nil
}

// Armed reports whether a gesture is in progress.
func (c *Controller) Armed() bool { return c.gesture != nil }

// Selected is the id of the selected item or field, or "".
func (c *Controller) Selected() string { return c.selected }

// Select selects the item or field with id. Unknown ids clear the selection.
func (c *Controller) Select(id string) {
	st := c.model.State()
	if _, ok := st.Items.Get(id); ok {
		c.selected = id
		return
	}
	if _, ok := st.Fields.Get(id); ok {
		c.selected = id
		return
	}
	c.selected = ""
}

// Delete removes the selected item or field with one commit.
func (c *Controller) Delete() bool {
	if c.selected == "" {
		return false
	}
	st := c.model.State()
	next := layer.State{Items: st.Items.Remove(c.selected), Fields: st.Fields.Remove(c.selected)}
	c.selected = ""
	if next.Same(st) {
		return false
	}
	c.model.Replace(next)
	return c.model.Commit()
}

// Preview returns the transient items of the gesture in progress, for the
// overlay painter.
func (c *Controller) Preview() []layer.Item {
	if c.gesture == nil {
		return nil
	}
	if it, ok := c.gesture.preview(c); ok {
		return []layer.Item{it}
	}
	return nil
}

func (c *Controller) point(d coords.Point) geo.Point {
	p := coords.ToPageSpace(d, c.model.View())
	return geo.Point{X: p.X, Y: p.Y}
}

// PointerDown handles a press at device point d.
func (c *Controller) PointerDown(d coords.Point) error {
	pt := c.point(d)
	c.prompt = nil
	if g, ok := c.gesture.(*lineGesture); ok {
		c.gesture = nil
		return c.finishLine(g, pt)
	}
	c.gesture = nil

	switch {
	case c.tool == ToolSelect:
		c.press(pt)
		return nil
	case stamps[c.tool] != "":
		return c.stamp(stamps[c.tool], pt)
	case c.tool == ToolLine:
		c.gesture = &lineGesture{start: pt, end: pt}
	case c.tool == ToolFreehand || c.tool == ToolSignature:
		c.gesture = &strokeGesture{points: []geo.Point{pt}}
	case c.tool == ToolHighlight || c.tool == ToolRedaction:
		c.gesture = &boxGesture{anchor: pt, current: pt}
	default:
		return c.place(pt)
	}
	return nil
}

// PointerMove handles pointer motion. Nothing is committed on move.
func (c *Controller) PointerMove(d coords.Point) {
	if c.gesture == nil {
		return
	}
	c.gesture.move(c, c.point(d))
}

// PointerUp ends a press-drag-release gesture.
func (c *Controller) PointerUp(d coords.Point) error {
	if c.gesture == nil {
		return nil
	}
	pt := c.point(d)
	c.gesture.move(c, pt)
	g := c.gesture
	if _, armed := g.(*lineGesture); armed {
		return nil
	}
	c.gesture = nil
	return g.release(c)
}

func (c *Controller) commit(st layer.State, what string) error {
	c.model.Replace(st)
	if c.model.Commit() {
		c.logger.Debug("overlay edit", observability.String("tool", string(c.tool)), observability.String("edit", what))
	}
	return nil
}

func (c *Controller) add(it layer.Item) error {
	st := c.model.State()
	items, err := st.Items.Add(it)
	if err != nil {
		return err
	}
	st.Items = items
	return c.commit(st, "add "+string(it.Kind()))
}

func (c *Controller) shape(kind layer.ShapeKind) layer.ShapeBody {
	return layer.ShapeBody{Shape: kind, Color: c.cfg.Color, StrokeWidth: c.cfg.StrokeWidth}
}

func (c *Controller) stamp(kind layer.ShapeKind, pt geo.Point) error {
	r := geo.FromCenter(pt, c.cfg.StampSize, c.cfg.StampSize)
	return c.add(layer.NewShape(c.model.Page(), r, c.shape(kind)))
}

func (c *Controller) finishLine(g *lineGesture, end geo.Point) error {
	if end == g.start {
		return ErrInteractionDiscarded
	}
	r := geo.Rect{X: g.start.X, Y: g.start.Y, Width: end.X - g.start.X, Height: end.Y - g.start.Y}
	return c.add(layer.NewShape(c.model.Page(), r, c.shape(layer.ShapeLine)))
}

// handle returns the resize corner of r under pt, if any. The hit box has a
// fixed device size at every zoom.
func (c *Controller) handle(r geo.Rect, pt geo.Point) (Corner, bool) {
	half := coords.PageLength(c.cfg.HandleSize, c.model.View()) / 2
	n := r.Normalize()
	corners := []struct {
		c Corner
		p geo.Point
	}{
		{CornerNW, geo.Point{X: n.X, Y: n.Y}},
		{CornerNE, geo.Point{X: n.X + n.Width, Y: n.Y}},
		{CornerSW, geo.Point{X: n.X, Y: n.Y + n.Height}},
		{CornerSE, geo.Point{X: n.X + n.Width, Y: n.Y + n.Height}},
	}
	for _, k := range corners {
		if math.Abs(pt.X-k.p.X) <= half && math.Abs(pt.Y-k.p.Y) <= half {
			return k.c, true
		}
	}
	return "", false
}

// press is a select-tool pointer-down: a handle of the selection starts a
// resize, a body starts a drag, empty space deselects.
func (c *Controller) press(pt geo.Point) {
	st := c.model.State()
	page := c.model.Page()
	if r, line, ok := c.selectionRect(st); ok && !line {
		if corner, ok := c.handle(r, pt); ok {
			c.gesture = newResize(st, c.selected, r, corner)
			return
		}
	}
	size := c.model.View().PageSize
	if it, ok := layer.IndexPage(st.Items, page, geo.Rect{Width: size.Width, Height: size.Height}).At(pt); ok {
		c.selected = it.ID
		c.gesture = &editGesture{before: st, id: it.ID, origin: it.Rect(), offset: geo.Point{X: pt.X - it.X, Y: pt.Y - it.Y}}
		return
	}
	fields := st.Fields.ByPage(page)
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if r := f.Rect.Rect(); r.Contains(pt) {
			c.selected = f.ID
			c.gesture = &editGesture{before: st, id: f.ID, origin: r, offset: geo.Point{X: pt.X - r.X, Y: pt.Y - r.Y}}
			return
		}
	}
	c.selected = ""
}

// selectionRect is the frame of the selection on the current page.
func (c *Controller) selectionRect(st layer.State) (r geo.Rect, line, ok bool) {
	if c.selected == "" {
		return geo.Rect{}, false, false
	}
	if it, found := st.Items.Get(c.selected); found && it.Page == c.model.Page() {
		return it.Rect(), it.IsLine(), true
	}
	if f, found := st.Fields.Get(c.selected); found && f.Page == c.model.Page() {
		return f.Rect.Rect(), false, true
	}
	return geo.Rect{}, false, false
}

// reframe moves the item or field id to r.
func reframe(st layer.State, id string, r geo.Rect) layer.State {
	if _, ok := st.Items.Get(id); ok {
		st.Items = st.Items.Update(id, layer.Frame(r))
		return st
	}
	fr := layer.FieldRectOf(r)
	st.Fields = st.Fields.Update(id, layer.FieldPatch{Rect: &fr})
	return st
}

// SelectionBox is the frame of the selected item or field on the current
// page, for drawing handles.
func (c *Controller) SelectionBox() (geo.Rect, bool) {
	r, line, ok := c.selectionRect(c.model.State())
	if !ok || line {
		return geo.Rect{}, false
	}
	return r, true
}

// Prompt asks for input a placement needs before it can create anything.
type Prompt struct {
	Tool Tool
	Page int
	At   geo.Point
}

// Answer supplies what a Prompt asked for. Text is the text value, signature
// name, or radio group; Image is encoded image bytes; Options are choice
// options, or the on value of a radio button.
type Answer struct {
	Text    string
	Image   []byte
	Options []string
}

// Pending returns the outstanding prompt, if any.
func (c *Controller) Pending() (Prompt, bool) {
	if c.prompt == nil {
		return Prompt{}, false
	}
	return *c.prompt, true
}

// Resolve completes the pending placement with a.
func (c *Controller) Resolve(a Answer) error {
	if c.prompt == nil {
		return ErrNoPrompt
	}
	p := *c.prompt
	c.prompt = nil
	switch p.Tool {
	case ToolTypedSignature:
		if a.Text == "" {
			return fmt.Errorf("%w: empty signature name", layer.ErrInvalidItem)
		}
		c.signatureName = a.Text
	case ToolImage:
		if len(a.Image) == 0 {
			return fmt.Errorf("%w: no image data", layer.ErrInvalidItem)
		}
		c.imageData = append([]byte(nil), a.Image...)
	}
	return c.create(p, a)
}

// CancelPrompt drops the pending placement.
func (c *Controller) CancelPrompt() { c.prompt = nil }

// place handles click-to-place tools. Tools missing input surface a prompt.
func (c *Controller) place(pt geo.Point) error {
	p := Prompt{Tool: c.tool, Page: c.model.Page(), At: pt}
	switch c.tool {
	case ToolTypedSignature:
		if c.signatureName != "" {
			return c.create(p, Answer{Text: c.signatureName})
		}
	case ToolImage:
		if len(c.imageData) > 0 {
			return c.create(p, Answer{Image: c.imageData})
		}
	case ToolText, ToolRadioField, ToolChoiceField:
	default:
		if _, ok := fieldTools[c.tool]; ok {
			return c.create(p, Answer{})
		}
		return fmt.Errorf("unknown tool %q", c.tool)
	}
	c.prompt = &p
	return nil
}
