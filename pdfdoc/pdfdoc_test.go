package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/internal/pdftest"
	"github.com/wudi/pdfoverlay/layer"
)

func open(t *testing.T, data []byte) *Document {
	t.Helper()
	doc, err := NewService().Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return doc
}

func pageContent(t *testing.T, data []byte, page int) string {
	t.Helper()
	content, err := open(t, data).Content(page)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	return string(content)
}

func formFixture() []byte {
	p := pdftest.Letter("Form")
	p.Fields = []pdftest.Field{
		{Name: "name", Type: "text", Rect: [4]float64{100, 700, 300, 720}, Value: "Ann", Required: true},
		{Name: "agree", Type: "checkbox", Rect: [4]float64{100, 650, 115, 665}, Value: "Yes"},
		{Name: "size", Type: "radio", Rect: [4]float64{100, 600, 115, 615}, OnState: "S"},
		{Name: "size", Type: "radio", Rect: [4]float64{130, 600, 145, 615}, OnState: "L", Value: "L"},
		{Name: "color", Type: "choice", Rect: [4]float64{100, 550, 200, 565}, Options: []string{"Red", "Blue"}, Value: "Blue"},
		{Name: "sig", Type: "signature", Rect: [4]float64{100, 500, 250, 530}},
	}
	return pdftest.Build(p)
}

func TestOpenRejectsInvalidInput(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf at all")} {
		if _, err := NewService().Open(data); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("Open(%q) = %v, want ErrInvalidDocument", data, err)
		}
	}
}

func TestPageBox(t *testing.T) {
	doc := open(t, pdftest.Build(pdftest.Letter("a"), pdftest.Page{Width: 300, Height: 400}))
	if doc.PageCount() != 2 {
		t.Fatalf("PageCount = %d", doc.PageCount())
	}
	box, err := doc.PageBox(2)
	if err != nil {
		t.Fatalf("PageBox: %v", err)
	}
	if box.Width() != 300 || box.Height() != 400 {
		t.Fatalf("box = %+v", box)
	}
	if _, err := doc.PageBox(3); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("PageBox(3) = %v", err)
	}
}

func TestDrawAndSaveKeepsOriginalContent(t *testing.T) {
	base := pdftest.Build(pdftest.Letter("Hello"))
	orig := bytes.Clone(base)
	doc := open(t, base)

	if err := doc.DrawText(1, "Overlay", 72, 600, builder.TextOptions{Font: "Helvetica", FontSize: 14}); err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	if err := doc.DrawRectangle(1, 10, 10, 50, 20, builder.RectOptions{Fill: true}); err != nil {
		t.Fatalf("DrawRectangle: %v", err)
	}
	if err := doc.DrawText(1, "x", 0, 0, builder.TextOptions{Font: "Comic Sans", FontSize: 12}); !errors.Is(err, ErrUnsupportedFont) {
		t.Fatalf("unsupported font: got %v", err)
	}
	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Equal(base, orig) {
		t.Fatalf("base bytes were modified")
	}

	content := pageContent(t, out, 1)
	hello, overlay := strings.Index(content, "(Hello) Tj"), strings.Index(content, "(Overlay) Tj")
	if hello < 0 || overlay < 0 || overlay < hello {
		t.Fatalf("expected original then overlay text, got:\n%s", content)
	}
	if !strings.HasPrefix(content, "q") || !strings.Contains(content, "10 10 50 20 re") {
		t.Fatalf("unexpected content:\n%s", content)
	}
	if strings.Contains(content, "Comic") {
		t.Fatalf("rejected text leaked into content")
	}
}

func TestDrawImage(t *testing.T) {
	doc := open(t, pdftest.Build(pdftest.Letter("")))
	if err := doc.DrawImage(1, []byte("nope"), 0, 0, 10, 10, 1); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("invalid image: got %v", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if err := doc.DrawImage(1, buf.Bytes(), 100, 100, 40, 40, 0.5); err != nil {
		t.Fatalf("DrawImage: %v", err)
	}
	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	content := pageContent(t, out, 1)
	if !strings.Contains(content, "40 0 0 40 100 100 cm") || !strings.Contains(content, " Do") || !strings.Contains(content, " gs") {
		t.Fatalf("unexpected content:\n%s", content)
	}
}

func byName(fields []layer.FormField) map[string][]layer.FormField {
	out := map[string][]layer.FormField{}
	for _, f := range fields {
		out[f.Name] = append(out[f.Name], f)
	}
	return out
}

func TestFormDiscovery(t *testing.T) {
	fields, err := open(t, formFixture()).Form()
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	if len(fields) != 6 {
		t.Fatalf("expected 6 fields, got %d: %+v", len(fields), fields)
	}
	got := byName(fields)

	name := got["name"][0]
	if name.Type != layer.FieldText || name.Value != "Ann" || !name.Required || name.Page != 1 {
		t.Fatalf("name = %+v", name)
	}
	if want := (layer.FieldRect{X1: 100, Y1: 72, X2: 300, Y2: 92}); name.Rect != want {
		t.Fatalf("name rect = %+v, want %+v", name.Rect, want)
	}
	if a := got["agree"][0]; a.Type != layer.FieldCheckbox || !a.Selected() {
		t.Fatalf("agree = %+v", a)
	}
	sizes := got["size"]
	if len(sizes) != 2 || sizes[0].RadioGroup != "size" || sizes[0].Selected() || sizes[1].Value != "L" {
		t.Fatalf("size = %+v", sizes)
	}
	if sizes[0].Options[0] != "S" {
		t.Fatalf("radio on state = %v", sizes[0].Options)
	}
	c := got["color"][0]
	if c.Type != layer.FieldChoice || c.Value != "Blue" || len(c.Options) != 2 || c.Options[0] != "Red" {
		t.Fatalf("color = %+v", c)
	}
	if s := got["sig"][0]; s.Type != layer.FieldSignature {
		t.Fatalf("sig = %+v", s)
	}
}

func TestFillField(t *testing.T) {
	doc := open(t, formFixture())
	steps := []struct {
		name, value string
		err         error
	}{
		{"name", "Bob", nil},
		{"agree", "Off", nil},
		{"size", "S", nil},
		{"size", "XL", ErrInvalidValue},
		{"missing", "x", ErrUnknownField},
		{"sig", "Bob B.", nil},
	}
	for _, s := range steps {
		if err := doc.FillField(s.name, s.value); !errors.Is(err, s.err) {
			t.Fatalf("FillField(%q, %q) = %v, want %v", s.name, s.value, err, s.err)
		}
	}
	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	fields, err := open(t, out).Form()
	if err != nil {
		t.Fatalf("Form: %v", err)
	}
	got := byName(fields)
	if got["name"][0].Value != "Bob" {
		t.Errorf("name = %q", got["name"][0].Value)
	}
	if got["agree"][0].Selected() {
		t.Errorf("agree still selected")
	}
	if sz := got["size"]; !sz[0].Selected() || sz[1].Selected() {
		t.Errorf("size = %+v", sz)
	}
}

func TestFlatten(t *testing.T) {
	doc := open(t, formFixture())
	if err := doc.FillField("name", "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Flatten(); err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	out, err := doc.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	flat := open(t, out)
	fields, err := flat.Form()
	if err != nil || len(fields) != 0 {
		t.Fatalf("flattened form still has fields: %v %+v", err, fields)
	}
	cat, err := flat.ctx.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cat.Find("AcroForm"); ok {
		t.Fatalf("AcroForm survived flattening")
	}
	content := pageContent(t, out, 1)
	for _, want := range []string{"(Bob) Tj", "(Blue) Tj"} {
		if !strings.Contains(content, want) {
			t.Errorf("flattened content lacks %s:\n%s", want, content)
		}
	}
}

func TestServiceLoad(t *testing.T) {
	data := pdftest.Build(pdftest.Letter("Hello World"), pdftest.Page{Width: 300, Height: 400})
	h, err := NewService().Load(context.Background(), data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.PageCount != 2 || len(h.PageSizes) != 2 || h.PageSizes[1].Width != 300 || h.PageSizes[1].Height != 400 {
		t.Fatalf("handle = %+v", h)
	}
	var text string
	for _, c := range h.Text {
		text += c.Text
	}
	if text != "Hello World" {
		t.Fatalf("text layer = %q", text)
	}

	if _, err := NewService().Load(context.Background(), []byte("junk")); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("junk: got %v", err)
	}
}

func TestDrawFieldValue(t *testing.T) {
	doc := open(t, pdftest.Build(pdftest.Letter("")))
	box := Box{LLX: 100, LLY: 100, URX: 200, URY: 120}
	if err := doc.DrawFieldValue(1, box, layer.FieldText, "Typed"); err != nil {
		t.Fatalf("DrawFieldValue: %v", err)
	}
	if err := doc.DrawFieldValue(1, box, layer.FieldCheckbox, "Off"); err != nil {
		t.Fatalf("DrawFieldValue: %v", err)
	}
	if err := doc.DrawFieldValue(2, box, layer.FieldText, "x"); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("page 2 = %v", err)
	}
	out, err := doc.Save()
	if err != nil {
		t.Fatal(err)
	}
	content := pageContent(t, out, 1)
	if !strings.Contains(content, "(Typed) Tj") {
		t.Fatalf("unexpected content:\n%s", content)
	}
}

func TestParseDA(t *testing.T) {
	tests := []struct {
		da    string
		font  string
		size  float64
		color builder.Color
	}{
		{"/Helv 0 Tf 0 g", "Helv", 0, builder.Color{}},
		{"/TiRo 9 Tf 1 g", "TiRo", 9, builder.Color{R: 1, G: 1, B: 1}},
		{"0 0 1 rg /Cour 11.5 Tf", "Cour", 11.5, builder.Color{B: 1}},
		{"/F2 10 Tf 0 1 1 0 k", "F2", 10, builder.Color{R: 1}},
		{"", "", 0, builder.Color{}},
	}
	for _, tt := range tests {
		font, size, color := parseDA(tt.da)
		if font != tt.font || size != tt.size || color != tt.color {
			t.Errorf("parseDA(%q) = %q %v %+v", tt.da, font, size, color)
		}
	}
}

// shownWith finds the operation showing text and returns the state set up
// for it: the fill color, font size and line offset.
func shownWith(t *testing.T, content, text string) (color builder.Color, size, dx float64) {
	t.Helper()
	ops, err := contentstream.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	at := -1
	for i, op := range ops {
		if op.Operator == "Tj" && string(op.Text(0)) == text {
			at = i
		}
	}
	if at < 0 {
		t.Fatalf("%q not shown:\n%s", text, content)
	}
	var haveColor, haveSize, haveDX bool
	for i := at - 1; i >= 0; i-- {
		op := ops[i]
		switch {
		case op.Operator == "rg" && !haveColor:
			color, haveColor = builder.Color{R: op.Number(0), G: op.Number(1), B: op.Number(2)}, true
		case op.Operator == "Tf" && !haveSize:
			size, haveSize = op.Number(1), true
		case op.Operator == "Tm" && !haveDX:
			dx, haveDX = op.Number(4), true
		}
	}
	return color, size, dx
}

func TestFlattenFollowsDefaultAppearance(t *testing.T) {
	tests := []struct {
		name     string
		da       string
		quadding int
		color    builder.Color
		size     float64
		aligned  func(dx float64) bool
	}{
		{"auto size", "", 0, builder.Color{}, 12, func(dx float64) bool { return dx == 0 }},
		{"white 9pt", "/Helv 9 Tf 1 g", 0, builder.Color{R: 1, G: 1, B: 1}, 9, func(dx float64) bool { return dx == 0 }},
		{"red right aligned", "/Helv 9 Tf 1 0 0 rg", 2, builder.Color{R: 1}, 9, func(dx float64) bool { return dx > 150 && dx < 196 }},
		{"centered", "/Helv 10 Tf 0 g", 1, builder.Color{}, 10, func(dx float64) bool { return dx > 70 && dx < 98 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pdftest.Letter("Form")
			p.Fields = []pdftest.Field{{Name: "name", Type: "text", Rect: [4]float64{100, 700, 300, 720}, Value: "Ada", DA: tt.da, Quadding: tt.quadding}}
			doc := open(t, pdftest.Build(p))
			if err := doc.Flatten(); err != nil {
				t.Fatalf("Flatten: %v", err)
			}
			out, err := doc.Save()
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			color, size, dx := shownWith(t, pageContent(t, out, 1), "Ada")
			if color != tt.color || size != tt.size || !tt.aligned(dx) {
				t.Fatalf("drawn in %+v at %vpt, offset %v", color, size, dx)
			}
		})
	}
}

func TestTextBoxes(t *testing.T) {
	doc := open(t, pdftest.Build(pdftest.Letter("Secret\nPlain")))
	boxes, err := doc.TextBoxes(1)
	if err != nil {
		t.Fatalf("TextBoxes: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("boxes = %+v", boxes)
	}
	first := Box{LLX: 72, LLY: 720, URX: 108, URY: 732}
	if boxes[0] != first {
		t.Fatalf("first run at %+v, want %+v", boxes[0], first)
	}
	if !boxes[0].Overlaps(Box{LLX: 60, LLY: 700, URX: 200, URY: 725}) || boxes[0].Overlaps(Box{LLX: 60, LLY: 600, URX: 200, URY: 700}) {
		t.Fatal("Overlaps disagrees with the traced run")
	}
	if _, err := doc.TextBoxes(2); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("page 2 = %v", err)
	}
}
