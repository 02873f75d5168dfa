package pdfdoc

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/observability"
)

// Field flag bits (PDF 32000 12.7.4).
const (
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
)

// widget is one widget annotation together with the field it belongs to.
// Radio buttons share their field dictionary with the other buttons of the
// group.
type widget struct {
	page    int
	dict    types.Dict
	field   types.Dict
	name    string
	typ     layer.FieldType
	flags   int
	onState string
	options []string
	rect    Box
	value   string
	look    appearance
}

func (d *Document) discover() error {
	if d.discovered {
		return nil
	}
	for n := 1; n <= d.ctx.PageCount; n++ {
		ps, err := d.page(n)
		if err != nil {
			return err
		}
		for _, a := range d.annots(ps) {
			ad, err := d.ctx.DereferenceDict(a)
			if err != nil || !isWidget(ad) {
				continue
			}
			if w, ok := d.widgetFor(n, ad); ok {
				d.widgets = append(d.widgets, w)
			}
		}
	}
	d.discovered = true
	return nil
}

func isWidget(d types.Dict) bool {
	if d == nil {
		return false
	}
	st := d.NameEntry("Subtype")
	return st != nil && *st == "Widget"
}

func (d *Document) annots(ps *pageState) types.Array {
	o, ok := ps.dict.Find("Annots")
	if !ok {
		return nil
	}
	arr, err := d.ctx.DereferenceArray(o)
	if err != nil {
		return nil
	}
	return arr
}

// widgetFor resolves the inheritable field attributes of a widget by walking
// its /Parent chain. Push buttons and widgets of unknown type are skipped.
func (d *Document) widgetFor(page int, ad types.Dict) (*widget, bool) {
	var (
		parts []string
		field types.Dict
		ft    string
		value types.Object
		opt   types.Array
		da    string
	)
	flags, quad, cur := -1, -1, ad
	for depth := 0; cur != nil && depth < 32; depth++ {
		if t, ok := cur.Find("T"); ok {
			if s, err := d.text(t); err == nil {
				parts = append([]string{s}, parts...)
			}
			if field == nil {
				field = cur
			}
		}
		if ft == "" {
			if n := cur.NameEntry("FT"); n != nil {
				ft = *n
			}
		}
		if flags < 0 {
			if o, ok := cur.Find("Ff"); ok {
				if i, err := d.ctx.DereferenceInteger(o); err == nil && i != nil {
					flags = i.Value()
				}
			}
		}
		if value == nil {
			value, _ = cur.Find("V")
		}
		if da == "" {
			if o, ok := cur.Find("DA"); ok {
				da, _ = d.text(o)
			}
		}
		if quad < 0 {
			if o, ok := cur.Find("Q"); ok {
				if i, err := d.ctx.DereferenceInteger(o); err == nil && i != nil {
					quad = i.Value()
				}
			}
		}
		if opt == nil {
			if o, ok := cur.Find("Opt"); ok {
				opt, _ = d.ctx.DereferenceArray(o)
			}
		}
		p, ok := cur.Find("Parent")
		if !ok {
			break
		}
		next, err := d.ctx.DereferenceDict(p)
		if err != nil {
			break
		}
		cur = next
	}
	if field == nil || ft == "" {
		return nil, false
	}
	if flags < 0 {
		flags = 0
	}
	w := &widget{
		page:    page,
		dict:    ad,
		field:   field,
		name:    strings.Join(parts, "."),
		flags:   flags,
		onState: d.onState(ad),
		rect:    d.rect(ad),
	}
	switch ft {
	case "Btn":
		switch {
		case flags&flagPushButton != 0:
			return nil, false
		case flags&flagRadio != 0:
			w.typ = layer.FieldRadio
		default:
			w.typ = layer.FieldCheckbox
		}
		w.value = layer.Off
		if n, err := d.text(value); err == nil && n != "" && n != layer.Off && (w.typ == layer.FieldCheckbox || n == w.onState) {
			w.value = w.onState
		}
	case "Tx", "Ch", "Sig":
		w.typ = map[string]layer.FieldType{"Tx": layer.FieldText, "Ch": layer.FieldChoice, "Sig": layer.FieldSignature}[ft]
		w.look = d.appearanceOf(da, quad)
		if value != nil {
			if o, err := d.ctx.Dereference(value); err == nil {
				if arr, ok := o.(types.Array); ok && len(arr) > 0 {
					o = arr[0]
				}
				w.value, _ = d.text(o)
			}
		}
		for _, o := range opt {
			if s, err := d.option(o); err == nil {
				w.options = append(w.options, s)
			}
		}
	default:
		return nil, false
	}
	return w, true
}

// text reads a name or string object.
func (d *Document) text(o types.Object) (string, error) {
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return "", err
	}
	switch v := o.(type) {
	case nil:
		return "", nil
	case types.Name:
		return v.Value(), nil
	case types.StringLiteral, types.HexLiteral:
		s, err := types.StringOrHexLiteral(v)
		if err != nil {
			return "", err
		}
		return *s, nil
	}
	return "", fmt.Errorf("unexpected %T", o)
}

// option reads a choice option, preferring the display text of an
// [export display] pair.
func (d *Document) option(o types.Object) (string, error) {
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return "", err
	}
	if pair, ok := o.(types.Array); ok && len(pair) > 0 {
		return d.text(pair[len(pair)-1])
	}
	return d.text(o)
}

// onState is the first appearance state other than Off, or "Yes".
func (d *Document) onState(ad types.Dict) string {
	o, ok := ad.Find("AP")
	if !ok {
		return "Yes"
	}
	ap, err := d.ctx.DereferenceDict(o)
	if err != nil || ap == nil {
		return "Yes"
	}
	o, ok = ap.Find("N")
	if !ok {
		return "Yes"
	}
	n, err := d.ctx.DereferenceDict(o)
	if err != nil || n == nil {
		return "Yes"
	}
	keys := make([]string, 0, len(n))
	for k := range n {
		if k != layer.Off {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "Yes"
	}
	sort.Strings(keys)
	return keys[0]
}

func (d *Document) rect(ad types.Dict) Box {
	o, ok := ad.Find("Rect")
	if !ok {
		return Box{}
	}
	arr, err := d.ctx.DereferenceArray(o)
	if err != nil {
		return Box{}
	}
	r := types.RectForArray(arr)
	if r == nil {
		return Box{}
	}
	return Box{
		LLX: math.Min(r.LL.X, r.UR.X), LLY: math.Min(r.LL.Y, r.UR.Y),
		URX: math.Max(r.LL.X, r.UR.X), URY: math.Max(r.LL.Y, r.UR.Y),
	}
}

// Form lists the document's fields in page space. Each radio button is its own
// entry, grouped by the full name of its field.
func (d *Document) Form() ([]layer.FormField, error) {
	if err := d.discover(); err != nil {
		return nil, err
	}
	out := make([]layer.FormField, 0, len(d.widgets))
	for _, w := range d.widgets {
		box := d.pages[w.page].box
		r := geo.Rect{X: w.rect.LLX - box.LLX, Y: box.URY - w.rect.URY, Width: w.rect.Width(), Height: w.rect.Height()}
		f := layer.NewField(w.name, w.page, w.typ, r)
		f.Value = w.value
		f.Required = w.flags&flagRequired != 0
		switch w.typ {
		case layer.FieldChoice:
			f.Options = append([]string(nil), w.options...)
		case layer.FieldRadio:
			f.Options = []string{w.onState}
			f.RadioGroup = w.name
		}
		out = append(out, f)
	}
	return out, nil
}

func (d *Document) named(name string) []*widget {
	var out []*widget
	for _, w := range d.widgets {
		if w.name == name {
			out = append(out, w)
		}
	}
	return out
}

// FillField sets the value of the field with the given full name. Checkboxes
// take any on value; a radio group takes the on state of one of its buttons or
// an off value.
func (d *Document) FillField(name, value string) error {
	if err := d.discover(); err != nil {
		return err
	}
	ws := d.named(name)
	if len(ws) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	switch ws[0].typ {
	case layer.FieldText, layer.FieldChoice:
		lit, err := literal(value)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidValue, name, err)
		}
		for _, w := range ws {
			w.field.Update("V", lit)
			w.value = value
		}
		d.needAppearances()
	case layer.FieldCheckbox:
		for _, w := range ws {
			state := layer.Off
			if layer.Truthy(value) {
				state = w.onState
			}
			w.field.Update("V", types.Name(state))
			w.dict.Update("AS", types.Name(state))
			w.value = state
		}
	case layer.FieldRadio:
		selected := layer.Off
		if layer.Truthy(value) {
			for _, w := range ws {
				if w.onState == value {
					selected = value
				}
			}
			if selected == layer.Off {
				return fmt.Errorf("%w: %q has no option %q", ErrInvalidValue, name, value)
			}
		}
		for _, w := range ws {
			state := layer.Off
			if w.onState == selected {
				state = selected
			}
			w.dict.Update("AS", types.Name(state))
			w.value = state
		}
		ws[0].field.Update("V", types.Name(selected))
	case layer.FieldSignature:
		for _, w := range ws {
			w.value = value
		}
	}
	return nil
}

func literal(s string) (types.StringLiteral, error) {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	var (
		esc *string
		err error
	)
	if ascii {
		esc, err = types.Escape(s)
	} else {
		esc, err = types.EscapedUTF16String(s)
	}
	if err != nil {
		return "", err
	}
	return types.StringLiteral(*esc), nil
}

func (d *Document) acroForm() types.Dict {
	cat, err := d.ctx.Catalog()
	if err != nil {
		return nil
	}
	o, ok := cat.Find("AcroForm")
	if !ok {
		return nil
	}
	acro, err := d.ctx.DereferenceDict(o)
	if err != nil {
		return nil
	}
	return acro
}

func (d *Document) needAppearances() {
	if acro := d.acroForm(); acro != nil {
		acro.Update("NeedAppearances", types.Boolean(true))
	}
}

// Flatten draws every field's current value into its page content and
// removes the interactive form. Widgets whose value cannot be drawn are
// logged and dropped.
func (d *Document) Flatten() error {
	if err := d.discover(); err != nil {
		return err
	}
	pages := map[int]bool{}
	for _, w := range d.widgets {
		pages[w.page] = true
		if err := d.paint(d.pages[w.page], w); err != nil {
			d.logger.Warn("field value not drawn",
				observability.String("field", w.name), observability.Error("error", err))
		}
	}
	for n := range pages {
		ps := d.pages[n]
		var keep types.Array
		for _, a := range d.annots(ps) {
			if ad, err := d.ctx.DereferenceDict(a); err == nil && isWidget(ad) {
				continue
			}
			keep = append(keep, a)
		}
		if len(keep) == 0 {
			ps.dict.Delete("Annots")
		} else {
			ps.dict.Update("Annots", keep)
		}
	}
	if cat, err := d.ctx.Catalog(); err == nil {
		cat.Delete("AcroForm")
	}
	d.widgets = nil
	return nil
}

func (d *Document) paint(ps *pageState, w *widget) error {
	return drawValue(ps, w.rect, w.typ, w.value, w.look)
}

// DrawFieldValue paints value the way a flattened field of type typ shows it,
// inside box on page. It serves fields the document itself does not have.
func (d *Document) DrawFieldValue(page int, box Box, typ layer.FieldType, value string) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return drawValue(ps, box, typ, value, defaultAppearance)
}

func drawValue(ps *pageState, r Box, typ layer.FieldType, value string, look appearance) error {
	width, height := r.Width(), r.Height()
	switch typ {
	case layer.FieldCheckbox:
		if !layer.Truthy(value) {
			return nil
		}
		mark := layer.Strokes(layer.ShapeCheckmark, geo.Rect{Width: width, Height: height})[0]
		pts := make([]geo.Point, len(mark))
		for i, p := range mark {
			pts[i] = geo.Point{X: r.LLX + p.X, Y: r.URY - p.Y}
		}
		return ps.pb.DrawPolyline(pts, builder.PathOptions{
			LineWidth: math.Max(1, height/12), LineCap: 1, LineJoin: 1, Stroke: true,
		})
	case layer.FieldRadio:
		if !layer.Truthy(value) {
			return nil
		}
		return ps.pb.DrawEllipse(r.LLX+width/4, r.LLY+height/4, width/2, height/2, builder.RectOptions{Fill: true})
	}
	if value == "" {
		return nil
	}
	if typ == layer.FieldSignature {
		look.font = "Times-Italic"
	}
	opts := look.textOptions(width, height)
	size := opts.FontSize
	return ps.pb.DrawText(value, r.LLX+2, r.LLY+(height-size)/2+size*0.25, opts)
}
