package layer

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfoverlay/geo"
)

// FieldType is the interactive type of a form field.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldCheckbox  FieldType = "checkbox"
	FieldRadio     FieldType = "radio"
	FieldChoice    FieldType = "choice"
	FieldSignature FieldType = "signature"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldCheckbox, FieldRadio, FieldChoice, FieldSignature:
		return true
	}
	return false
}

// Off is the unselected value of checkbox and radio fields.
const Off = "Off"

// FieldRect is a field's box as two corners in page space (top-left origin).
type FieldRect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Rect converts to an origin-plus-extent rectangle.
func (r FieldRect) Rect() geo.Rect {
	return geo.FromCorners(geo.Point{X: r.X1, Y: r.Y1}, geo.Point{X: r.X2, Y: r.Y2})
}

// FieldRectOf converts an origin-plus-extent rectangle to corners.
func FieldRectOf(r geo.Rect) FieldRect {
	n := r.Normalize()
	return FieldRect{X1: n.X, Y1: n.Y, X2: n.X + n.Width, Y2: n.Y + n.Height}
}

// FormField is an interactive field of the base document and the value the
// user gave it.
type FormField struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Page       int       `json:"page"`
	Rect       FieldRect `json:"rect"`
	Type       FieldType `json:"type"`
	Value      string    `json:"value,omitempty"`
	Options    []string  `json:"options,omitempty"`
	RadioGroup string    `json:"radioGroup,omitempty"`
	Required   bool      `json:"required,omitempty"`
}

// NewField returns a field with a fresh id.
func NewField(name string, page int, typ FieldType, r geo.Rect) FormField {
	return FormField{ID: NewID(), Name: name, Page: page, Type: typ, Rect: FieldRectOf(r)}
}

func (f FormField) Clone() FormField {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	return f
}

// OnValue is the value a checkbox or radio field takes when selected.
func (f FormField) OnValue() string {
	if f.Type == FieldRadio && len(f.Options) > 0 {
		return f.Options[0]
	}
	return "Yes"
}

// Selected reports whether a checkbox or radio field is on.
func (f FormField) Selected() bool {
	switch f.Type {
	case FieldCheckbox, FieldRadio:
		return Truthy(f.Value)
	}
	return false
}

// Truthy reports whether v reads as an "on" value for a checkbox or radio
// field. Empty, "off", "false", "no" and "0" are off.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "off", "false", "f", "no", "0":
		return false
	}
	return true
}

func (f FormField) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: field missing id", ErrInvalidItem)
	}
	if f.Page < 1 {
		return fmt.Errorf("%w: field page %d", ErrInvalidItem, f.Page)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: field type %q", ErrInvalidItem, f.Type)
	}
	return nil
}

// FieldPatch is a partial field update. Nil fields are left alone.
type FieldPatch struct {
	Name       *string
	Page       *int
	Rect       *FieldRect
	Value      *string
	Options    []string
	RadioGroup *string
	Required   *bool
}

func (p FieldPatch) apply(f FormField) FormField {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Page != nil {
		f.Page = *p.Page
	}
	if p.Rect != nil {
		f.Rect = *p.Rect
	}
	if p.Value != nil {
		f.Value = *p.Value
	}
	if p.Options != nil {
		f.Options = append([]string(nil), p.Options...)
	}
	if p.RadioGroup != nil {
		f.RadioGroup = *p.RadioGroup
	}
	if p.Required != nil {
		f.Required = *p.Required
	}
	return f
}

// Fields is the immutable form-field counterpart of Items.
type Fields struct {
	list []FormField
}

func NewFields(fields ...FormField) (*Fields, error) {
	var c *Fields
	for _, f := range fields {
		next, err := c.Add(f)
		if err != nil {
			return nil, err
		}
		c = next
	}
	if c == nil {
		c = &Fields{}
	}
	return c, nil
}

func (c *Fields) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

func (c *Fields) index(id string) int {
	if c == nil {
		return -1
	}
	for i, f := range c.list {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (c *Fields) Get(id string) (FormField, bool) {
	i := c.index(id)
	if i < 0 {
		return FormField{}, false
	}
	return c.list[i].Clone(), true
}

// ByName returns the first field called name.
func (c *Fields) ByName(name string) (FormField, bool) {
	if c == nil {
		return FormField{}, false
	}
	for _, f := range c.list {
		if f.Name == name {
			return f.Clone(), true
		}
	}
	return FormField{}, false
}

func (c *Fields) All() []FormField {
	if c == nil {
		return nil
	}
	out := make([]FormField, len(c.list))
	for i, f := range c.list {
		out[i] = f.Clone()
	}
	return out
}

func (c *Fields) ByPage(page int) []FormField {
	if c == nil {
		return nil
	}
	var out []FormField
	for _, f := range c.list {
		if f.Page == page {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Group returns the members of a radio group in insertion order.
func (c *Fields) Group(name string) []FormField {
	if c == nil || name == "" {
		return nil
	}
	var out []FormField
	for _, f := range c.list {
		if f.RadioGroup == name {
			out = append(out, f.Clone())
		}
	}
	return out
}

func (c *Fields) Add(f FormField) (*Fields, error) {
	if err := f.Validate(); err != nil {
		return c, err
	}
	if c.index(f.ID) >= 0 {
		return c, fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
	}
	next := &Fields{list: make([]FormField, c.Len(), c.Len()+1)}
	if c != nil {
		copy(next.list, c.list)
	}
	next.list = append(next.list, f.Clone())
	if f.Type == FieldRadio && f.Selected() {
		next.clearGroup(f.RadioGroup, f.ID)
	}
	return next, nil
}

// Update applies patch to the field with id. Unknown ids are a no-op. Value
// changes on radio fields go through SetValue so the group stays exclusive.
func (c *Fields) Update(id string, patch FieldPatch) *Fields {
	i := c.index(id)
	if i < 0 {
		return c
	}
	value := patch.Value
	patch.Value = nil
	updated := patch.apply(c.list[i].Clone())
	if updated.Validate() != nil {
		return c
	}
	next := c
	if !fieldEqual(updated, c.list[i]) {
		next = &Fields{list: append([]FormField(nil), c.list...)}
		next.list[i] = updated
	}
	if value != nil {
		return next.SetValue(id, *value)
	}
	return next
}

// SetValue sets a field's value. Selecting a radio field clears every other
// field in its group.
func (c *Fields) SetValue(id, value string) *Fields {
	i := c.index(id)
	if i < 0 {
		return c
	}
	f := c.list[i]
	if f.Type == FieldRadio {
		if Truthy(value) {
			return c.Select(id)
		}
		value = Off
	}
	if f.Value == value {
		return c
	}
	next := &Fields{list: append([]FormField(nil), c.list...)}
	next.list[i].Value = value
	return next
}

// Select turns a checkbox or radio field on, clearing the rest of its radio
// group.
func (c *Fields) Select(id string) *Fields {
	i := c.index(id)
	if i < 0 {
		return c
	}
	f := c.list[i]
	if f.Type != FieldRadio && f.Type != FieldCheckbox {
		return c
	}
	next := &Fields{list: append([]FormField(nil), c.list...)}
	next.list[i].Value = f.OnValue()
	if f.Type == FieldRadio {
		next.clearGroup(f.RadioGroup, id)
	}
	if fieldsEqual(next, c) {
		return c
	}
	return next
}

func (c *Fields) clearGroup(group, keep string) {
	if group == "" {
		return
	}
	for i := range c.list {
		if c.list[i].RadioGroup == group && c.list[i].ID != keep && c.list[i].Selected() {
			c.list[i].Value = Off
		}
	}
}

func (c *Fields) Remove(id string) *Fields {
	i := c.index(id)
	if i < 0 {
		return c
	}
	next := &Fields{list: make([]FormField, 0, len(c.list)-1)}
	next.list = append(next.list, c.list[:i]...)
	next.list = append(next.list, c.list[i+1:]...)
	return next
}

func fieldEqual(a, b FormField) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Page != b.Page || a.Rect != b.Rect ||
		a.Type != b.Type || a.Value != b.Value || a.RadioGroup != b.RadioGroup ||
		a.Required != b.Required || len(a.Options) != len(b.Options) {
		return false
	}
	for i := range a.Options {
		if a.Options[i] != b.Options[i] {
			return false
		}
	}
	return true
}
