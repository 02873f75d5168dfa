package builder

import (
	"errors"
	"fmt"
	"strings"

	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFont is returned for font families that cannot be mapped to
// one of the standard 14 PDF fonts.
var ErrUnsupportedFont = errors.New("unsupported font")

// DefaultFont is used when no family is given.
const DefaultFont = "Helvetica"

// LineSpacing is the baseline-to-baseline distance as a multiple of the font size.
const LineSpacing = 1.2

type fontFamily struct {
	regular, bold, italic, boldItalic string
}

var families = map[string]fontFamily{
	"helvetica": {"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"},
	"times":     {"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"},
	"courier":   {"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"},
	"symbol":    {"Symbol", "Symbol", "Symbol", "Symbol"},
	"zapf":      {"ZapfDingbats", "ZapfDingbats", "ZapfDingbats", "ZapfDingbats"},
}

var aliases = map[string]string{
	"":                "helvetica",
	"helvetica":       "helvetica",
	"arial":           "helvetica",
	"sans":            "helvetica",
	"sans-serif":      "helvetica",
	"times":           "times",
	"times-roman":     "times",
	"times new roman": "times",
	"serif":           "times",
	"courier":         "courier",
	"courier new":     "courier",
	"mono":            "courier",
	"monospace":       "courier",
	"symbol":          "symbol",
	"zapfdingbats":    "zapf",
}

// FontName resolves a family name plus style to a standard 14 font name.
func FontName(family string, bold, italic bool) (string, error) {
	key := strings.ToLower(strings.TrimSpace(family))
	if pdffont.IsCoreFont(family) {
		if !bold && !italic {
			return family, nil
		}
		key = strings.ToLower(strings.SplitN(family, "-", 2)[0])
	}
	alias, ok := aliases[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFont, family)
	}
	f := families[alias]
	switch {
	case bold && italic:
		return f.boldItalic, nil
	case bold:
		return f.bold, nil
	case italic:
		return f.italic, nil
	}
	return f.regular, nil
}

// Metrics measures text set in a standard 14 font.
type Metrics struct {
	Font string
	Size float64
}

// Width is the advance of encoded text in user space units.
func (m Metrics) Width(encoded []byte) float64 {
	if !pdffont.IsCoreFont(m.Font) {
		return float64(len(encoded)) * m.Size * 0.5
	}
	return pdffont.TextWidth(string(encoded), m.Font, 1000) * m.Size / 1000
}

// Ascent is the distance from the baseline to the top of the font box.
func (m Metrics) Ascent() float64 {
	if !pdffont.IsCoreFont(m.Font) {
		return m.Size * 0.8
	}
	return pdffont.Ascent(m.Font, 1000) * m.Size / 1000
}

func (m Metrics) LineHeight() float64 { return m.Size * LineSpacing }

// EncodeWinAnsi converts text to the single-byte encoding used by the
// standard fonts. Runes outside the code page become '?'.
func EncodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
