package pdfdoc

import (
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfoverlay/builder"
)

// Quadding values (PDF 32000 12.7.3.3).
const (
	quadLeft   = 0
	quadCenter = 1
	quadRight  = 2
)

// appearance is how a variable text field shows its value: the font, size and
// color of its default appearance string plus its quadding. A zero size means
// auto-size to the widget.
type appearance struct {
	font     string
	size     float64
	color    builder.Color
	quadding int
}

var defaultAppearance = appearance{font: builder.DefaultFont}

// Resource names form authoring tools put in /DR for the standard fonts.
var formFonts = map[string]string{
	"Helv": "Helvetica",
	"HeBo": "Helvetica-Bold",
	"HeOb": "Helvetica-Oblique",
	"TiRo": "Times-Roman",
	"TiBo": "Times-Bold",
	"TiIt": "Times-Italic",
	"Cour": "Courier",
	"CoBo": "Courier-Bold",
	"Symb": "Symbol",
	"ZaDb": "ZapfDingbats",
}

// parseDA reads the font resource, size and fill color of a /DA string.
func parseDA(da string) (fontRes string, size float64, color builder.Color) {
	parts := strings.Fields(da)
	num := func(i int) float64 {
		if i < 0 {
			return 0
		}
		f, _ := strconv.ParseFloat(parts[i], 64)
		return f
	}
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, "/") && i+2 < len(parts) && parts[i+2] == "Tf":
			fontRes, size = p[1:], num(i+1)
		case p == "g" && i >= 1:
			c := num(i - 1)
			color = builder.Color{R: c, G: c, B: c}
		case p == "rg" && i >= 3:
			color = builder.Color{R: num(i - 3), G: num(i - 2), B: num(i - 1)}
		case p == "k" && i >= 4:
			k := 1 - num(i-1)
			color = builder.Color{R: (1 - num(i-4)) * k, G: (1 - num(i-3)) * k, B: (1 - num(i-2)) * k}
		}
	}
	return fontRes, size, color
}

// appearanceOf resolves a widget's appearance. da and q come from the field
// hierarchy; missing ones fall back to the AcroForm's.
func (d *Document) appearanceOf(da string, q int) appearance {
	acro := d.acroForm()
	if da == "" && acro != nil {
		if o, ok := acro.Find("DA"); ok {
			da, _ = d.text(o)
		}
	}
	if q < 0 {
		q = quadLeft
		if acro != nil {
			if o, ok := acro.Find("Q"); ok {
				if i, err := d.ctx.DereferenceInteger(o); err == nil && i != nil {
					q = i.Value()
				}
			}
		}
	}
	a := defaultAppearance
	a.quadding = q
	if da == "" {
		return a
	}
	res, size, color := parseDA(da)
	a.size, a.color = size, color
	if font := d.resourceFont(acro, res); font != "" {
		a.font = font
	}
	return a
}

// resourceFont maps a /DA font resource to a standard 14 font, through the
// AcroForm's /DR when it names one.
func (d *Document) resourceFont(acro types.Dict, res string) string {
	if res == "" {
		return ""
	}
	if acro != nil {
		if base := d.drBaseFont(acro, res); base != "" {
			if name, err := builder.FontName(base, false, false); err == nil {
				return name
			}
		}
	}
	return formFonts[res]
}

func (d *Document) drBaseFont(acro types.Dict, res string) string {
	o, ok := acro.Find("DR")
	if !ok {
		return ""
	}
	dr, err := d.ctx.DereferenceDict(o)
	if err != nil || dr == nil {
		return ""
	}
	if o, ok = dr.Find("Font"); !ok {
		return ""
	}
	fonts, err := d.ctx.DereferenceDict(o)
	if err != nil || fonts == nil {
		return ""
	}
	if o, ok = fonts.Find(res); !ok {
		return ""
	}
	fd, err := d.ctx.DereferenceDict(o)
	if err != nil || fd == nil {
		return ""
	}
	if n := fd.NameEntry("BaseFont"); n != nil {
		return *n
	}
	return ""
}

// textOptions lays a value out inside a widget of the given width and height.
func (a appearance) textOptions(width, height float64) builder.TextOptions {
	size := a.size
	if size <= 0 {
		size = min(12, height*0.7)
	}
	opts := builder.TextOptions{Font: a.font, FontSize: size, Color: a.color, Width: width - 4}
	switch a.quadding {
	case quadCenter:
		opts.Align = "center"
	case quadRight:
		opts.Align = "right"
	}
	return opts
}
