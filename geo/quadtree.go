package geo

// QuadTree is a spatial index over normalized rectangles keyed by an int
// (typically the z-order index of an overlay).
type QuadTree struct {
	Bounds   Rect
	Capacity int
	Points   []Entry
	Nodes    []*QuadTree
	depth    int
}

type Entry struct {
	Rect  Rect
	Index int
}

const maxQuadDepth = 12

func NewQuadTree(bounds Rect, capacity int) *QuadTree {
	if capacity <= 0 {
		capacity = 8
	}
	return &QuadTree{
		Bounds:   bounds.Normalize(),
		Capacity: capacity,
		Points:   make([]Entry, 0, capacity),
	}
}

func (qt *QuadTree) Insert(rect Rect, index int) bool {
	rect = rect.Normalize()
	if !qt.Bounds.Intersects(rect) {
		return false
	}

	if qt.Nodes != nil {
		for _, node := range qt.Nodes {
			if contains(node.Bounds, rect) {
				if node.Insert(rect, index) {
					return true
				}
			}
		}
	}

	// Leaf: store until full, then split and redistribute.
	if qt.Nodes == nil {
		if len(qt.Points) < qt.Capacity || qt.depth >= maxQuadDepth {
			qt.Points = append(qt.Points, Entry{Rect: rect, Index: index})
			return true
		}
		qt.subdivide()
		old := qt.Points
		qt.Points = make([]Entry, 0, qt.Capacity)
		for _, p := range old {
			qt.Insert(p.Rect, p.Index)
		}
		return qt.Insert(rect, index)
	}

	// Straddles children; keep it here.
	qt.Points = append(qt.Points, Entry{Rect: rect, Index: index})
	return true
}

func (qt *QuadTree) subdivide() {
	b := qt.Bounds
	hw, hh := b.Width/2, b.Height/2
	child := func(x, y float64) *QuadTree {
		n := NewQuadTree(Rect{X: x, Y: y, Width: hw, Height: hh}, qt.Capacity)
		n.depth = qt.depth + 1
		return n
	}
	qt.Nodes = []*QuadTree{
		child(b.X, b.Y),
		child(b.X+hw, b.Y),
		child(b.X, b.Y+hh),
		child(b.X+hw, b.Y+hh),
	}
}

// Query returns the indexes of every entry intersecting r, in no particular
// order.
func (qt *QuadTree) Query(r Rect) []int {
	var found []int
	r = r.Normalize()
	if !qt.Bounds.Intersects(r) {
		return found
	}
	for _, p := range qt.Points {
		if p.Rect.Intersects(r) {
			found = append(found, p.Index)
		}
	}
	for _, node := range qt.Nodes {
		found = append(found, node.Query(r)...)
	}
	return found
}

// QueryPoint returns the indexes of entries containing p.
func (qt *QuadTree) QueryPoint(p Point) []int {
	return qt.Query(Rect{X: p.X, Y: p.Y})
}

func contains(outer, inner Rect) bool {
	return inner.X >= outer.X && inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y >= outer.Y && inner.Y+inner.Height <= outer.Y+outer.Height
}
