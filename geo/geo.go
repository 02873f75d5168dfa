package geo

import (
	"math"

	"github.com/golang/geo/r2"
)

// Point is a page-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) r2() r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// Rect is an origin-plus-extent rectangle in page space. Width and Height may
// be negative (a line drawn up or to the left); use Normalize for min/max form.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FromCorners returns the normalized rectangle spanning a and b.
func FromCorners(a, b Point) Rect {
	return fromR2(r2.RectFromPoints(a.r2(), b.r2()))
}

// FromCenter returns a w x h rectangle centered on c.
func FromCenter(c Point, w, h float64) Rect {
	return fromR2(r2.RectFromCenterSize(c.r2(), r2.Point{X: w, Y: h}))
}

// Bounds returns the smallest normalized rectangle containing pts. ok is
// false when pts is empty.
func Bounds(pts []Point) (Rect, bool) {
	if len(pts) == 0 {
		return Rect{}, false
	}
	r := r2.EmptyRect()
	for _, p := range pts {
		r = r.AddPoint(p.r2())
	}
	return fromR2(r), true
}

func fromR2(r r2.Rect) Rect {
	lo, size := r.Lo(), r.Size()
	return Rect{X: lo.X, Y: lo.Y, Width: size.X, Height: size.Y}
}

func (r Rect) r2() r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: r.X, Y: r.Y},
		r2.Point{X: r.X + r.Width, Y: r.Y + r.Height},
	)
}

// Normalize returns r with non-negative width and height covering the same area.
func (r Rect) Normalize() Rect { return fromR2(r.r2()) }

// Contains reports whether p lies inside r, edges included. Negative extents
// are tolerated.
func (r Rect) Contains(p Point) bool { return r.r2().ContainsPoint(p.r2()) }

// Intersects reports whether r and o overlap, edges included.
func (r Rect) Intersects(o Rect) bool { return r.r2().Intersects(o.r2()) }

// Expand grows r by m on every side after normalizing.
func (r Rect) Expand(m float64) Rect { return fromR2(r.r2().ExpandedByMargin(m)) }

// Union returns the smallest normalized rectangle covering r and o.
func (r Rect) Union(o Rect) Rect { return fromR2(r.r2().Union(o.r2())) }

func (r Rect) Min() Point    { n := r.Normalize(); return Point{X: n.X, Y: n.Y} }
func (r Rect) Max() Point    { n := r.Normalize(); return Point{X: n.X + n.Width, Y: n.Y + n.Height} }
func (r Rect) Center() Point { c := r.r2().Center(); return Point{X: c.X, Y: c.Y} }

// Translate moves r by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Area returns the absolute area of r.
func (r Rect) Area() float64 { return math.Abs(r.Width * r.Height) }

// Corners returns the four corners of the normalized rectangle in nw, ne, sw,
// se order.
func (r Rect) Corners() [4]Point {
	n := r.Normalize()
	return [4]Point{
		{X: n.X, Y: n.Y},
		{X: n.X + n.Width, Y: n.Y},
		{X: n.X, Y: n.Y + n.Height},
		{X: n.X + n.Width, Y: n.Y + n.Height},
	}
}

// MapPoint maps p from the frame of r to the frame of to. Degenerate source
// axes collapse onto the target origin.
func (r Rect) MapPoint(p Point, to Rect) Point {
	out := Point{X: to.X, Y: to.Y}
	if r.Width != 0 {
		out.X += (p.X - r.X) / r.Width * to.Width
	}
	if r.Height != 0 {
		out.Y += (p.Y - r.Y) / r.Height * to.Height
	}
	return out
}
