package layer

import (
	"reflect"

	"github.com/wudi/pdfoverlay/geo"
)

// State is one instant of the overlay model: every item and every form field.
// It is the unit the history manager snapshots and the exporter consumes.
type State struct {
	Items  *Items
	Fields *Fields
}

// Empty reports whether the state carries neither items nor fields.
func (s State) Empty() bool { return s.Items.Len() == 0 && s.Fields.Len() == 0 }

// Same reports whether s and o share both collection references. Same implies
// Equal; it is the cheap check done before a structural comparison.
func (s State) Same(o State) bool {
	return s.Items == o.Items && s.Fields == o.Fields
}

// Equal reports structural equality.
func (s State) Equal(o State) bool {
	if s.Same(o) {
		return true
	}
	return itemsEqual(s.Items, o.Items) && fieldsEqual(s.Fields, o.Fields)
}

// Clone returns a deep copy sharing no backing arrays with s.
func (s State) Clone() State {
	out := State{Items: &Items{}, Fields: &Fields{}}
	if n := s.Items.Len(); n > 0 {
		out.Items.list = s.Items.All()
	}
	if n := s.Fields.Len(); n > 0 {
		out.Fields.list = s.Fields.All()
	}
	return out
}

func itemsEqual(a, b *Items) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !itemEqual(a.list[i], b.list[i]) {
			return false
		}
	}
	return true
}

func itemEqual(a, b Item) bool {
	if a.ID != b.ID || a.Page != b.Page || a.Rect() != b.Rect() {
		return false
	}
	sa, aok := a.Shape()
	sb, bok := b.Shape()
	if aok && bok {
		return sa.Shape == sb.Shape && sa.Color == sb.Color && sa.StrokeWidth == sb.StrokeWidth &&
			sa.Text == sb.Text && pointsEqual(sa.Points, sb.Points) && string(sa.Image) == string(sb.Image)
	}
	return reflect.DeepEqual(a.Body, b.Body)
}

func pointsEqual(a, b []geo.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fieldsEqual(a, b *Fields) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !fieldEqual(a.list[i], b.list[i]) {
			return false
		}
	}
	return true
}
