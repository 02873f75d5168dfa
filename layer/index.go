package layer

import (
	"sort"

	"github.com/wudi/pdfoverlay/geo"
)

// PageIndex is a spatial index over one page's items, built on demand for
// hit-testing. It is a view of the collection it was built from and goes stale
// with the next mutation.
type PageIndex struct {
	items []Item
	tree  *geo.QuadTree
}

// IndexPage builds the hit index for page. bounds is the page rectangle;
// items hanging off the page are still indexed.
func IndexPage(items *Items, page int, bounds geo.Rect) *PageIndex {
	onPage := items.ByPage(page)
	world := bounds.Normalize()
	for _, it := range onPage {
		world = world.Union(it.Rect())
	}
	idx := &PageIndex{items: onPage, tree: geo.NewQuadTree(world, 0)}
	for i, it := range onPage {
		idx.tree.Insert(it.Rect(), i)
	}
	return idx
}

func (p *PageIndex) Len() int { return len(p.items) }

// At returns the topmost item containing pt.
func (p *PageIndex) At(pt geo.Point) (Item, bool) {
	hits := p.tree.QueryPoint(pt)
	best := -1
	for _, i := range hits {
		if i > best && p.items[i].Rect().Contains(pt) {
			best = i
		}
	}
	if best < 0 {
		return Item{}, false
	}
	return p.items[best], true
}

// Within returns the items intersecting r in z-order.
func (p *PageIndex) Within(r geo.Rect) []Item {
	hits := p.tree.Query(r)
	sort.Ints(hits)
	out := make([]Item, 0, len(hits))
	for _, i := range hits {
		out = append(out, p.items[i])
	}
	return out
}
