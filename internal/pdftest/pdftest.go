// Package pdftest writes small, well-formed PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Page describes one page of a fixture.
type Page struct {
	Width, Height float64
	// Text is set in 12pt Helvetica from (72, Height-72), one line per '\n'.
	Text   string
	Fields []Field
}

// Field is a form field widget. Rect is in native PDF space
// (llx, lly, urx, ury).
type Field struct {
	Name     string
	Type     string // text, checkbox, radio, choice, signature
	Rect     [4]float64
	Value    string
	Options  []string
	Required bool
	// OnState names the appearance of a selected checkbox or radio button.
	// Radio buttons sharing a Name become kids of one field.
	OnState string
	// DA is the default appearance of a text or choice field,
	// "/Helv 0 Tf 0 g" when empty. Quadding is its /Q.
	DA       string
	Quadding int
}

func (f Field) variableText() string {
	da := f.DA
	if da == "" {
		da = "/Helv 0 Tf 0 g"
	}
	s := " /DA " + Literal(da)
	if f.Quadding != 0 {
		s += fmt.Sprintf(" /Q %d", f.Quadding)
	}
	return s
}

// Letter returns a US Letter page with text.
func Letter(text string) Page { return Page{Width: 612, Height: 792, Text: text} }

type doc struct {
	objs []string
}

func (d *doc) alloc() int {
	d.objs = append(d.objs, "")
	return len(d.objs)
}

func (d *doc) set(n int, body string) { d.objs[n-1] = body }

func (d *doc) stream(dict, data string) int {
	n := d.alloc()
	if dict != "" {
		dict = " " + dict
	}
	d.set(n, fmt.Sprintf("<< /Length %d%s >>\nstream\n%s\nendstream", len(data), dict, data))
	return n
}

func ref(n int) string { return fmt.Sprintf("%d 0 R", n) }

func refs(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = ref(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Literal escapes s as a PDF literal string.
func Literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// Build returns the bytes of a PDF with the given pages. Cross-reference
// offsets are exact.
func Build(pages ...Page) []byte {
	d := &doc{}
	catalog := d.alloc()
	pagesObj := d.alloc()
	font := d.alloc()
	d.set(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var kids, topFields []int
	radios := map[string]int{}
	radioKids := map[string][]int{}
	radioValue := map[string]string{}
	var radioOrder []string

	for _, p := range pages {
		page := d.alloc()
		kids = append(kids, page)

		var content strings.Builder
		if p.Text != "" {
			content.WriteString("BT\n/F1 12 Tf\n")
			for i, line := range strings.Split(p.Text, "\n") {
				fmt.Fprintf(&content, "1 0 0 1 72 %g Tm\n%s Tj\n", p.Height-72-float64(i)*14, Literal(line))
			}
			content.WriteString("ET")
		}
		contents := d.stream("", content.String())

		var annots []int
		for _, f := range p.Fields {
			if f.OnState == "" {
				f.OnState = "Yes"
			}
			w := d.alloc()
			annots = append(annots, w)
			rect := fmt.Sprintf("[%g %g %g %g]", f.Rect[0], f.Rect[1], f.Rect[2], f.Rect[3])
			base := fmt.Sprintf("/Type /Annot /Subtype /Widget /Rect %s /P %s /F 4", rect, ref(page))
			flags := 0
			if f.Required {
				flags |= 2
			}
			switch f.Type {
			case "radio":
				parent, ok := radios[f.Name]
				if !ok {
					parent = d.alloc()
					radios[f.Name] = parent
					radioOrder = append(radioOrder, f.Name)
					topFields = append(topFields, parent)
				}
				radioKids[f.Name] = append(radioKids[f.Name], w)
				as := "Off"
				if f.Value != "" && f.Value != "Off" && f.Value == f.OnState {
					as = f.OnState
					radioValue[f.Name] = f.OnState
				}
				d.set(w, fmt.Sprintf("<< %s /Parent %s /AS /%s /AP << /N %s >> >>", base, ref(parent), as, appearances(d, f)))
				continue
			case "checkbox":
				as := "Off"
				if f.Value != "" && f.Value != "Off" {
					as = f.OnState
				}
				d.set(w, fmt.Sprintf("<< %s /FT /Btn /Ff %d /T %s /V /%s /AS /%s /AP << /N %s >> >>",
					base, flags, Literal(f.Name), as, as, appearances(d, f)))
			case "choice":
				opts := make([]string, len(f.Options))
				for i, o := range f.Options {
					opts[i] = Literal(o)
				}
				d.set(w, fmt.Sprintf("<< %s /FT /Ch /Ff %d /T %s /V %s /Opt [%s]%s >>",
					base, flags|1<<17, Literal(f.Name), Literal(f.Value), strings.Join(opts, " "), f.variableText()))
			case "signature":
				d.set(w, fmt.Sprintf("<< %s /FT /Sig /T %s >>", base, Literal(f.Name)))
			default:
				d.set(w, fmt.Sprintf("<< %s /FT /Tx /Ff %d /T %s /V %s%s >>",
					base, flags, Literal(f.Name), Literal(f.Value), f.variableText()))
			}
			topFields = append(topFields, w)
		}

		annotEntry := ""
		if len(annots) > 0 {
			annotEntry = " /Annots " + refs(annots)
		}
		d.set(page, fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 %g %g] /Resources << /Font << /F1 %s >> >> /Contents %s%s >>",
			ref(pagesObj), p.Width, p.Height, ref(font), ref(contents), annotEntry))
	}

	sort.Strings(radioOrder)
	for _, name := range radioOrder {
		v := radioValue[name]
		if v == "" {
			v = "Off"
		}
		d.set(radios[name], fmt.Sprintf("<< /FT /Btn /Ff %d /T %s /V /%s /Kids %s >>",
			1<<14|1<<15, Literal(name), v, refs(radioKids[name])))
	}

	d.set(pagesObj, fmt.Sprintf("<< /Type /Pages /Kids %s /Count %d >>", refs(kids), len(kids)))
	acro := ""
	if len(topFields) > 0 {
		acro = fmt.Sprintf(" /AcroForm << /Fields %s /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv %s >> >> >>", refs(topFields), ref(font))
	}
	d.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s%s >>", ref(pagesObj), acro))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(d.objs))
	for i, body := range d.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(d.objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n", len(d.objs)+1, ref(catalog), xref)
	return buf.Bytes()
}

func appearances(d *doc, f Field) string {
	w, h := f.Rect[2]-f.Rect[0], f.Rect[3]-f.Rect[1]
	dict := fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [0 0 %g %g]", w, h)
	on := d.stream(dict, fmt.Sprintf("0 g 2 2 %g %g re f", w-4, h-4))
	off := d.stream(dict, "")
	return fmt.Sprintf("<< /%s %s /Off %s >>", f.OnState, ref(on), ref(off))
}
