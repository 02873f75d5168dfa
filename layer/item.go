package layer

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/wudi/pdfoverlay/geo"
)

// MinSize is the smallest width or height an item may be resized to.
const MinSize = 10.0

// Kind discriminates the payload carried by an Item.
type Kind string

const (
	KindText      Kind = "text"
	KindShape     Kind = "shape"
	KindRedaction Kind = "redaction"
)

// ShapeKind selects how a ShapeBody is drawn.
type ShapeKind string

const (
	ShapeHighlight ShapeKind = "highlight"
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeLine      ShapeKind = "line"
	ShapeCheckmark ShapeKind = "checkmark"
	ShapeXMark     ShapeKind = "x-mark"
	ShapeFreeform  ShapeKind = "freeform"
	ShapeSignature ShapeKind = "signature"
	ShapeImage     ShapeKind = "image"
)

func (s ShapeKind) Valid() bool {
	switch s {
	case ShapeHighlight, ShapeRectangle, ShapeCircle, ShapeLine, ShapeCheckmark,
		ShapeXMark, ShapeFreeform, ShapeSignature, ShapeImage:
		return true
	}
	return false
}

// Align is the horizontal alignment of a text box.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

var (
	ErrInvalidItem = errors.New("invalid overlay item")
	ErrDuplicateID = errors.New("duplicate id")
)

// Body is the kind-specific payload of an Item.
type Body interface {
	Kind() Kind
	clone() Body
	validate() error
}

type TextBody struct {
	Value     string  `json:"value"`
	Font      string  `json:"font"`
	Size      float64 `json:"size"`
	Color     RGB     `json:"color"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Underline bool    `json:"underline,omitempty"`
	Align     Align   `json:"align,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
}

func (TextBody) Kind() Kind    { return KindText }
func (b TextBody) clone() Body { return b }
func (b TextBody) validate() error {
	if b.Size <= 0 {
		return fmt.Errorf("%w: text size must be positive", ErrInvalidItem)
	}
	switch b.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("%w: alignment %q", ErrInvalidItem, b.Align)
	}
	return nil
}

type ShapeBody struct {
	Shape       ShapeKind   `json:"shape"`
	Color       RGB         `json:"color"`
	StrokeWidth float64     `json:"strokeWidth"`
	Points      []geo.Point `json:"points,omitempty"`
	Text        string      `json:"text,omitempty"`
	Image       []byte      `json:"image,omitempty"`
}

func (ShapeBody) Kind() Kind { return KindShape }

func (b ShapeBody) clone() Body {
	if b.Points != nil {
		b.Points = append([]geo.Point(nil), b.Points...)
	}
	if b.Image != nil {
		b.Image = append([]byte(nil), b.Image...)
	}
	return b
}

func (b ShapeBody) validate() error {
	if !b.Shape.Valid() {
		return fmt.Errorf("%w: shape %q", ErrInvalidItem, b.Shape)
	}
	if b.StrokeWidth <= 0 {
		return fmt.Errorf("%w: stroke width must be positive", ErrInvalidItem)
	}
	if len(b.Points) > 0 && b.Shape != ShapeFreeform && b.Shape != ShapeSignature {
		return fmt.Errorf("%w: points only apply to freeform and signature shapes", ErrInvalidItem)
	}
	if len(b.Image) > 0 && b.Shape != ShapeImage {
		return fmt.Errorf("%w: image data only applies to image shapes", ErrInvalidItem)
	}
	return nil
}

type RedactionBody struct {
	Color RGB `json:"color"`
}

func (RedactionBody) Kind() Kind        { return KindRedaction }
func (b RedactionBody) clone() Body     { return b }
func (b RedactionBody) validate() error { return nil }

// Item is one overlay object on a page. Geometry is in page space.
type Item struct {
	ID     string
	Page   int
	X      float64
	Y      float64
	Width  float64
	Height float64
	Body   Body
}

// NewID returns a fresh opaque identifier.
func NewID() string { return uuid.NewString() }

func newItem(page int, r geo.Rect, body Body) Item {
	return Item{ID: NewID(), Page: page, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, Body: body}
}

func NewText(page int, r geo.Rect, body TextBody) Item { return newItem(page, r, body) }

func NewShape(page int, r geo.Rect, body ShapeBody) Item { return newItem(page, r, body) }

// NewRedaction returns a redaction block, opaque white unless color is given.
func NewRedaction(page int, r geo.Rect, color ...RGB) Item {
	body := RedactionBody{Color: White}
	if len(color) > 0 {
		body.Color = color[0]
	}
	return newItem(page, r, body)
}

func (it Item) Kind() Kind {
	if it.Body == nil {
		return ""
	}
	return it.Body.Kind()
}

func (it Item) Rect() geo.Rect {
	return geo.Rect{X: it.X, Y: it.Y, Width: it.Width, Height: it.Height}
}

func (it Item) Text() (TextBody, bool) {
	b, ok := it.Body.(TextBody)
	return b, ok
}

func (it Item) Shape() (ShapeBody, bool) {
	b, ok := it.Body.(ShapeBody)
	return b, ok
}

func (it Item) Redaction() (RedactionBody, bool) {
	b, ok := it.Body.(RedactionBody)
	return b, ok
}

// IsLine reports whether the item keeps signed width and height.
func (it Item) IsLine() bool {
	s, ok := it.Shape()
	return ok && s.Shape == ShapeLine
}

// IsImage reports whether the item is an image stamp.
func (it Item) IsImage() bool {
	s, ok := it.Shape()
	return ok && s.Shape == ShapeImage
}

func (it Item) Clone() Item {
	if it.Body != nil {
		it.Body = it.Body.clone()
	}
	return it
}

func (it Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if it.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidItem, it.Page)
	}
	if it.Body == nil {
		return fmt.Errorf("%w: missing body", ErrInvalidItem)
	}
	if !it.IsLine() && (it.Width < 0 || it.Height < 0) {
		return fmt.Errorf("%w: negative extent", ErrInvalidItem)
	}
	return it.Body.validate()
}

// Reframe moves and resizes the item to r. Freehand points follow the frame.
func (it Item) Reframe(r geo.Rect) Item {
	if s, ok := it.Shape(); ok && len(s.Points) > 0 {
		from := it.Rect()
		pts := make([]geo.Point, len(s.Points))
		for i, p := range s.Points {
			if from.Width == 0 && from.Height == 0 {
				pts[i] = geo.Point{X: p.X + r.X - from.X, Y: p.Y + r.Y - from.Y}
				continue
			}
			pts[i] = from.MapPoint(p, r)
		}
		s.Points = pts
		it.Body = s
	}
	it.X, it.Y, it.Width, it.Height = r.X, r.Y, r.Width, r.Height
	return it
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Page   *int
	X      *float64
	Y      *float64
	Width  *float64
	Height *float64
	Body   Body
}

// MoveTo returns a patch placing the item origin at (x, y).
func MoveTo(x, y float64) Patch { return Patch{X: &x, Y: &y} }

// Frame returns a patch setting the full geometry.
func Frame(r geo.Rect) Patch {
	return Patch{X: &r.X, Y: &r.Y, Width: &r.Width, Height: &r.Height}
}

// WithBody returns a patch replacing the payload.
func WithBody(b Body) Patch { return Patch{Body: b} }

func (p Patch) apply(it Item) Item {
	if p.Page != nil {
		it.Page = *p.Page
	}
	if p.Body != nil {
		it.Body = p.Body.clone()
	}
	r := it.Rect()
	if p.X != nil {
		r.X = *p.X
	}
	if p.Y != nil {
		r.Y = *p.Y
	}
	if p.Width != nil && *p.Width != r.Width {
		r.Width = atLeast(*p.Width, it.IsLine())
	}
	if p.Height != nil && *p.Height != r.Height {
		r.Height = atLeast(*p.Height, it.IsLine())
	}
	if r != it.Rect() {
		if p.Body != nil {
			it.X, it.Y, it.Width, it.Height = r.X, r.Y, r.Width, r.Height
		} else {
			it = it.Reframe(r)
		}
	}
	return it
}

// atLeast floors a resized extent at MinSize. A line keeps the sign that
// gives its direction.
func atLeast(v float64, line bool) float64 {
	if line && v < 0 {
		return -math.Max(-v, MinSize)
	}
	return math.Max(v, MinSize)
}

var unit = geo.Rect{Width: 1, Height: 1}

var glyphStrokes = map[ShapeKind][][]geo.Point{
	ShapeCheckmark: {{{X: 0.1, Y: 0.55}, {X: 0.4, Y: 0.85}, {X: 0.9, Y: 0.15}}},
	ShapeXMark: {
		{{X: 0.15, Y: 0.15}, {X: 0.85, Y: 0.85}},
		{{X: 0.15, Y: 0.85}, {X: 0.85, Y: 0.15}},
	},
}

// Strokes returns the polylines that draw a checkmark or x-mark inside r, in
// the same space as r. Other shapes have none.
func Strokes(shape ShapeKind, r geo.Rect) [][]geo.Point {
	src := glyphStrokes[shape]
	n := r.Normalize()
	out := make([][]geo.Point, len(src))
	for i, stroke := range src {
		out[i] = make([]geo.Point, len(stroke))
		for j, p := range stroke {
			out[i][j] = unit.MapPoint(p, n)
		}
	}
	return out
}
