package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/layer"
)

// Canvas paints page previews: a blank sheet carrying the document's native
// text runs and field outlines, with overlays added by PaintOverlay.
type Canvas struct {
	Paper layer.RGB
	// HighlightOpacity is the alpha used for highlight shapes.
	HighlightOpacity float64
	// HandleSize is the side of a selection handle in device pixels.
	HandleSize float64

	mu    sync.Mutex
	fonts map[string]*truetype.Font
	faces map[faceKey]font.Face
}

func NewCanvas(paper layer.RGB) *Canvas {
	return &Canvas{
		Paper:            paper,
		HighlightOpacity: 0.35,
		HandleSize:       8,
		fonts:            map[string]*truetype.Font{},
		faces:            map[faceKey]font.Face{},
	}
}

type faceKey struct {
	ttf  string
	size float64
}

func ttfFor(family string, bold, italic bool) (string, []byte) {
	mono := strings.Contains(strings.ToLower(family), "courier") || strings.Contains(strings.ToLower(family), "mono")
	switch {
	case mono && bold:
		return "gomonobold", gomonobold.TTF
	case mono:
		return "gomono", gomono.TTF
	case bold && italic:
		return "gobolditalic", gobolditalic.TTF
	case bold:
		return "gobold", gobold.TTF
	case italic:
		return "goitalic", goitalic.TTF
	}
	return "goregular", goregular.TTF
}

// face returns a cached face for the family and device pixel size.
func (c *Canvas) face(family string, bold, italic bool, size float64) (font.Face, error) {
	name, data := ttfFor(family, bold, italic)
	key := faceKey{ttf: name, size: math.Round(size*10) / 10}
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	ttf, ok := c.fonts[name]
	if !ok {
		var err error
		ttf, err = truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		c.fonts[name] = ttf
	}
	f := truetype.NewFace(ttf, &truetype.Options{Size: key.size, DPI: 72, Hinting: font.HintingFull})
	c.faces[key] = f
	return f, nil
}

// RenderPage paints the sheet for page under view.
func (c *Canvas) RenderPage(ctx context.Context, h Handle, page int, view coords.ViewState) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size, ok := h.PageSize(page)
	if !ok {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, h.PageCount)
	}
	view.PageSize = size
	dev := coords.DeviceSize(view)
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(dev.Width)), int(math.Ceil(dev.Height))))
	dc := gg.NewContextForRGBA(img)
	dc.SetRGB(c.Paper.Floats())
	dc.Clear()

	p := painter{c: c, dc: dc, view: view}
	dc.SetRGB(0.35, 0.35, 0.35)
	for _, run := range h.Text {
		if run.Page != page {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := run.Size
		if size <= 0 {
			size = run.Bounds.Height
		}
		p.text(run.Text, run.Bounds.X, run.Bounds.Y, 0, textStyle{size: size})
	}

	dc.SetRGBA(0.15, 0.39, 0.92, 0.6)
	dc.SetLineWidth(1)
	for _, f := range h.Fields {
		if f.Page == page {
			p.rect(f.Rect.Rect())
			dc.Stroke()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
