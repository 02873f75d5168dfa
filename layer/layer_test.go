package layer

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfoverlay/geo"
)

func textItem(page int, x, y float64) Item {
	return NewText(page, geo.Rect{X: x, Y: y, Width: 100, Height: 20},
		TextBody{Value: "hi", Font: "Helvetica", Size: 12, Color: Black})
}

func TestItemsCopyOnWrite(t *testing.T) {
	a := textItem(1, 10, 10)
	b := NewRedaction(2, geo.Rect{X: 0, Y: 0, Width: 50, Height: 50})

	c0, err := NewItems()
	if err != nil {
		t.Fatalf("NewItems: %v", err)
	}
	c1, err := c0.Add(a)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	c2, err := c1.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c0.Len() != 0 || c1.Len() != 1 || c2.Len() != 2 {
		t.Fatalf("lengths = %d %d %d", c0.Len(), c1.Len(), c2.Len())
	}
	if _, err := c2.Add(a); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate add err = %v", err)
	}

	if got := c2.Update("missing", MoveTo(1, 1)); got != c2 {
		t.Fatalf("update of unknown id must return the receiver")
	}
	moved := c2.Update(a.ID, MoveTo(40, 50))
	if moved == c2 {
		t.Fatalf("update must return a new collection")
	}
	if it, _ := c2.Get(a.ID); it.X != 10 {
		t.Fatalf("original collection mutated: %+v", it)
	}
	if it, _ := moved.Get(a.ID); it.X != 40 || it.Y != 50 {
		t.Fatalf("moved item = %+v", it)
	}

	bad := 0
	if got := moved.Update(a.ID, Patch{Page: &bad}); got != moved {
		t.Fatalf("invalid patch should be a no-op")
	}

	if got := moved.Remove("missing"); got != moved {
		t.Fatalf("remove of unknown id must return the receiver")
	}
	if got := moved.Remove(a.ID); got.Len() != 1 {
		t.Fatalf("remove left %d items", got.Len())
	}
}

func TestItemsByPageKeepsInsertionOrder(t *testing.T) {
	a, b, c := textItem(1, 0, 0), textItem(2, 0, 0), textItem(1, 5, 5)
	items, err := NewItems(a, b, c)
	if err != nil {
		t.Fatalf("NewItems: %v", err)
	}
	got := items.ByPage(1)
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Fatalf("ByPage(1) = %v", got)
	}
	if pages := items.Pages(); len(pages) != 2 || pages[0] != 1 || pages[1] != 2 {
		t.Fatalf("Pages = %v", pages)
	}
	raised := items.RaiseToTop(a.ID)
	if all := raised.All(); all[2].ID != a.ID {
		t.Fatalf("RaiseToTop did not move item to the top")
	}
}

func TestItemValidate(t *testing.T) {
	line := NewShape(1, geo.Rect{X: 10, Y: 10, Width: -100, Height: 50},
		ShapeBody{Shape: ShapeLine, Color: Red, StrokeWidth: 2})
	if err := line.Validate(); err != nil {
		t.Fatalf("line with signed extent rejected: %v", err)
	}
	tests := []struct {
		name string
		item Item
	}{
		{"page zero", textItem(0, 0, 0)},
		{"negative rect", NewShape(1, geo.Rect{Width: -1, Height: 5}, ShapeBody{Shape: ShapeRectangle, StrokeWidth: 1})},
		{"zero stroke", NewShape(1, geo.Rect{Width: 10, Height: 10}, ShapeBody{Shape: ShapeCircle})},
		{"bad shape", NewShape(1, geo.Rect{Width: 10, Height: 10}, ShapeBody{Shape: "blob", StrokeWidth: 1})},
		{"points on rectangle", NewShape(1, geo.Rect{Width: 10, Height: 10}, ShapeBody{Shape: ShapeRectangle, StrokeWidth: 1, Points: []geo.Point{{1, 1}}})},
		{"text size", NewText(1, geo.Rect{Width: 10, Height: 10}, TextBody{Value: "x"})},
		{"no body", Item{ID: "x", Page: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.item.Validate(); !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("Validate = %v, want ErrInvalidItem", err)
			}
		})
	}
}

func TestReframeMovesPoints(t *testing.T) {
	it := NewShape(1, geo.Rect{X: 0, Y: 0, Width: 10, Height: 10}, ShapeBody{
		Shape: ShapeFreeform, StrokeWidth: 1, Points: []geo.Point{{0, 0}, {10, 10}},
	})
	out := it.Reframe(geo.Rect{X: 100, Y: 100, Width: 20, Height: 20})
	s, _ := out.Shape()
	if s.Points[0] != (geo.Point{X: 100, Y: 100}) || s.Points[1] != (geo.Point{X: 120, Y: 120}) {
		t.Fatalf("points = %+v", s.Points)
	}
	orig, _ := it.Shape()
	if orig.Points[1] != (geo.Point{X: 10, Y: 10}) {
		t.Fatalf("Reframe mutated the source item")
	}
}

func radio(name, group, option string) FormField {
	f := NewField(name, 1, FieldRadio, geo.Rect{Width: 14, Height: 14})
	f.RadioGroup = group
	f.Options = []string{option}
	return f
}

func TestRadioExclusivity(t *testing.T) {
	a, b, c := radio("g", "G", "A"), radio("g", "G", "B"), radio("g", "G", "C")
	other := radio("h", "H", "X")
	other.Value = "X"
	fields, err := NewFields(a, b, c, other)
	if err != nil {
		t.Fatalf("NewFields: %v", err)
	}
	for _, id := range []string{a.ID, b.ID, c.ID, b.ID} {
		fields = fields.Select(id)
		var selected []string
		for _, f := range fields.Group("G") {
			if f.Selected() {
				selected = append(selected, f.ID)
			}
		}
		if len(selected) != 1 || selected[0] != id {
			t.Fatalf("after selecting %s selected = %v", id, selected)
		}
		if h, _ := fields.Get(other.ID); !h.Selected() {
			t.Fatalf("selection leaked into another group")
		}
	}
	if got, _ := fields.Get(b.ID); got.Value != "B" {
		t.Fatalf("selected radio value = %q, want its option", got.Value)
	}

	again := fields.Select(b.ID)
	if again != fields {
		t.Fatalf("re-selecting the selected radio should be a no-op")
	}

	viaValue := fields.SetValue(a.ID, "A")
	for _, f := range viaValue.Group("G") {
		if f.Selected() != (f.ID == a.ID) {
			t.Fatalf("SetValue broke exclusivity: %+v", f)
		}
	}
	cleared := viaValue.SetValue(a.ID, "")
	if f, _ := cleared.Get(a.ID); f.Value != Off {
		t.Fatalf("cleared radio value = %q", f.Value)
	}
}

func TestFieldsAddSelectedRadioClearsGroup(t *testing.T) {
	a, b := radio("g", "G", "A"), radio("g", "G", "B")
	a.Value, b.Value = "A", "B"
	fields, err := NewFields(a, b)
	if err != nil {
		t.Fatalf("NewFields: %v", err)
	}
	if fa, _ := fields.Get(a.ID); fa.Selected() {
		t.Fatalf("earlier member should be cleared when a selected one is added")
	}
}

func TestFieldsUpdate(t *testing.T) {
	f := NewField("name", 1, FieldText, geo.Rect{Width: 150, Height: 22})
	fields, _ := NewFields(f)
	if got := fields.Update("nope", FieldPatch{}); got != fields {
		t.Fatalf("unknown id should be a no-op")
	}
	v := "Ada"
	next := fields.Update(f.ID, FieldPatch{Value: &v})
	if got, _ := next.Get(f.ID); got.Value != "Ada" {
		t.Fatalf("value = %q", got.Value)
	}
	if got, _ := fields.Get(f.ID); got.Value != "" {
		t.Fatalf("update mutated the receiver")
	}
	if r := (FieldRect{X1: 10, Y1: 20, X2: 0, Y2: 0}).Rect(); r != (geo.Rect{Width: 10, Height: 20}) {
		t.Fatalf("FieldRect.Rect = %+v", r)
	}
}

func TestStateEqualityAndClone(t *testing.T) {
	items, _ := NewItems(textItem(1, 0, 0))
	fields, _ := NewFields(NewField("f", 1, FieldCheckbox, geo.Rect{Width: 14, Height: 14}))
	s := State{Items: items, Fields: fields}
	c := s.Clone()
	if c.Same(s) {
		t.Fatalf("clone must not share references")
	}
	if !c.Equal(s) {
		t.Fatalf("clone must be structurally equal")
	}
	if (State{}).Equal(State{Items: &Items{}}) != true {
		t.Fatalf("nil and empty collections should compare equal")
	}
	moved := State{Items: items.Update(items.All()[0].ID, MoveTo(1, 1)), Fields: fields}
	if moved.Equal(s) {
		t.Fatalf("moved state compared equal")
	}
	if !(State{}).Empty() || s.Empty() {
		t.Fatalf("Empty misreported")
	}
}

func TestStateJSON(t *testing.T) {
	sig := NewShape(1, geo.Rect{X: 1, Y: 2, Width: 30, Height: 10}, ShapeBody{
		Shape: ShapeSignature, Color: Blue, StrokeWidth: 1.5, Points: []geo.Point{{1, 2}, {31, 12}},
	})
	red := NewRedaction(2, geo.Rect{X: 5, Y: 5, Width: 20, Height: 20})
	items, _ := NewItems(textItem(1, 3, 4), sig, red)
	f := radio("choice", "G", "A")
	f.Value = "A"
	fields, _ := NewFields(f)
	in := State{Items: items, Fields: fields}

	var buf bytes.Buffer
	if err := WriteState(&buf, in); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind": "redaction"`) || !strings.Contains(buf.String(), `"#2563eb"`) {
		t.Fatalf("unexpected encoding:\n%s", buf.String())
	}
	out, err := ReadState(&buf)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("decoded state differs:\n%+v\n%+v", out.Items.All(), in.Items.All())
	}
}

func TestReadStateRejectsUnknownKind(t *testing.T) {
	_, err := ReadState(strings.NewReader(`{"items":[{"id":"a","kind":"sticker","page":1,"body":{}}]}`))
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("err = %v", err)
	}
	s, err := ReadState(strings.NewReader(`{"items":[{"kind":"redaction","page":1,"width":5,"height":5}]}`))
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	it := s.Items.All()[0]
	if it.ID == "" {
		t.Fatalf("missing id was not assigned")
	}
	if r, _ := it.Redaction(); r.Color != White {
		t.Fatalf("redaction default color = %v", r.Color)
	}
}

func TestPageIndexTopmostWins(t *testing.T) {
	bottom := textItem(1, 0, 0)
	top := NewRedaction(1, geo.Rect{X: 50, Y: 5, Width: 100, Height: 10})
	line := NewShape(1, geo.Rect{X: 300, Y: 300, Width: -50, Height: -50}, ShapeBody{Shape: ShapeLine, StrokeWidth: 1})
	elsewhere := textItem(2, 0, 0)
	items, _ := NewItems(bottom, top, line, elsewhere)
	idx := IndexPage(items, 1, geo.Rect{Width: 612, Height: 792})
	if idx.Len() != 3 {
		t.Fatalf("indexed %d items", idx.Len())
	}
	if it, ok := idx.At(geo.Point{X: 60, Y: 10}); !ok || it.ID != top.ID {
		t.Fatalf("At overlap = %v %v", it.ID, ok)
	}
	if it, ok := idx.At(geo.Point{X: 10, Y: 10}); !ok || it.ID != bottom.ID {
		t.Fatalf("At = %v %v", it.ID, ok)
	}
	if it, ok := idx.At(geo.Point{X: 275, Y: 275}); !ok || it.ID != line.ID {
		t.Fatalf("negative extents not hit: %v", ok)
	}
	if _, ok := idx.At(geo.Point{X: 500, Y: 700}); ok {
		t.Fatalf("empty space reported a hit")
	}
	if got := idx.Within(geo.Rect{X: 0, Y: 0, Width: 200, Height: 30}); len(got) != 2 || got[0].ID != bottom.ID {
		t.Fatalf("Within = %v", got)
	}
}

func TestStrokesFollowFrame(t *testing.T) {
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
	r := geo.Rect{X: 110, Y: 60, Width: -100, Height: -40}
	x := Strokes(ShapeXMark, r)
	if len(x) != 2 || len(x[0]) != 2 {
		t.Fatalf("x-mark strokes = %v", x)
	}
	if p := x[0][0]; !near(p.X, 25) || !near(p.Y, 26) {
		t.Fatalf("first x-mark point = %v, want (25, 26)", p)
	}
	if got := Strokes(ShapeCheckmark, r); len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("checkmark strokes = %v", got)
	}
	if got := Strokes(ShapeCircle, r); len(got) != 0 {
		t.Fatalf("circle strokes = %v", got)
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"", "Off", " off ", "false", "F", "no", "0"} {
		if Truthy(v) {
			t.Errorf("Truthy(%q) = true", v)
		}
	}
	for _, v := range []string{"Yes", "On", "1", "true", "Choice2"} {
		if !Truthy(v) {
			t.Errorf("Truthy(%q) = false", v)
		}
	}
}

func TestResizeFloor(t *testing.T) {
	box := textItem(1, 10, 10)
	line := NewShape(1, geo.Rect{X: 50, Y: 50, Width: 40, Height: -30}, ShapeBody{Shape: ShapeLine, Color: Red, StrokeWidth: 1})
	flat := NewShape(1, geo.Rect{X: 0, Y: 90, Width: 80, Height: 0}, ShapeBody{Shape: ShapeLine, Color: Red, StrokeWidth: 1})
	items, err := NewItems(box, line, flat)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		id    string
		patch Patch
		w, h  float64
	}{
		{"shrunk box", box.ID, Frame(geo.Rect{X: 10, Y: 10, Width: 2, Height: 0}), MinSize, MinSize},
		{"negative box", box.ID, Frame(geo.Rect{X: 10, Y: 10, Width: -40, Height: 15}), MinSize, 15},
		{"short line keeps direction", line.ID, Frame(geo.Rect{X: 50, Y: 50, Width: 3, Height: -4}), MinSize, -MinSize},
		{"moved flat line", flat.ID, Frame(geo.Rect{X: 5, Y: 95, Width: 80, Height: 0}), 80, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := items.Update(tt.id, tt.patch).Get(tt.id)
			if got.Width != tt.w || got.Height != tt.h {
				t.Fatalf("size = %vx%v, want %vx%v", got.Width, got.Height, tt.w, tt.h)
			}
		})
	}
}
