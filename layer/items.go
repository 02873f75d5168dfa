package layer

import (
	"fmt"
	"sort"
)

// Items is an immutable, insertion-ordered collection of overlay items. Every
// mutation returns a new *Items; operations that change nothing return the
// receiver so callers can detect "no change" by reference. A nil *Items is an
// empty collection.
type Items struct {
	list []Item
}

// NewItems builds a collection from items, validating each one.
func NewItems(items ...Item) (*Items, error) {
	var c *Items
	for _, it := range items {
		next, err := c.Add(it)
		if err != nil {
			return nil, err
		}
		c = next
	}
	if c == nil {
		c = &Items{}
	}
	return c, nil
}

func (c *Items) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

func (c *Items) index(id string) int {
	if c == nil {
		return -1
	}
	for i, it := range c.list {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Items) Get(id string) (Item, bool) {
	i := c.index(id)
	if i < 0 {
		return Item{}, false
	}
	return c.list[i].Clone(), true
}

// All returns copies of every item in z-order.
func (c *Items) All() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.list))
	for i, it := range c.list {
		out[i] = it.Clone()
	}
	return out
}

// ByPage returns the items on page in z-order (later entries paint on top).
func (c *Items) ByPage(page int) []Item {
	if c == nil {
		return nil
	}
	var out []Item
	for _, it := range c.list {
		if it.Page == page {
			out = append(out, it.Clone())
		}
	}
	return out
}

// Pages returns the distinct page numbers that carry items, ascending.
func (c *Items) Pages() []int {
	if c == nil {
		return nil
	}
	seen := map[int]bool{}
	var pages []int
	for _, it := range c.list {
		if !seen[it.Page] {
			seen[it.Page] = true
			pages = append(pages, it.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

// Add appends item on top of the z-order.
func (c *Items) Add(item Item) (*Items, error) {
	if err := item.Validate(); err != nil {
		return c, err
	}
	if c.index(item.ID) >= 0 {
		return c, fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}
	next := &Items{list: make([]Item, c.Len(), c.Len()+1)}
	if c != nil {
		copy(next.list, c.list)
	}
	next.list = append(next.list, item.Clone())
	return next, nil
}

// Update applies patch to the item with id. Unknown ids, patches that change
// nothing, and patches that would leave the item invalid are a no-op.
func (c *Items) Update(id string, patch Patch) *Items {
	i := c.index(id)
	if i < 0 {
		return c
	}
	updated := patch.apply(c.list[i].Clone())
	if updated.Validate() != nil || itemEqual(updated, c.list[i]) {
		return c
	}
	next := &Items{list: append([]Item(nil), c.list...)}
	next.list[i] = updated
	return next
}

// Remove drops the item with id. Unknown ids are a no-op.
func (c *Items) Remove(id string) *Items {
	i := c.index(id)
	if i < 0 {
		return c
	}
	next := &Items{list: make([]Item, 0, len(c.list)-1)}
	next.list = append(next.list, c.list[:i]...)
	next.list = append(next.list, c.list[i+1:]...)
	return next
}

// RaiseToTop moves the item with id to the end of the z-order.
func (c *Items) RaiseToTop(id string) *Items {
	i := c.index(id)
	if i < 0 || i == len(c.list)-1 {
		return c
	}
	it := c.list[i]
	next := c.Remove(id)
	next.list = append(next.list, it)
	return next
}
