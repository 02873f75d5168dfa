package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/ocr"
)

func TestSchedulerDropsSupersededRender(t *testing.T) {
	var s Scheduler
	ctxA, a := s.Begin(context.Background(), 1, coords.ViewState{Zoom: 1})
	_, b := s.Begin(context.Background(), 2, coords.ViewState{Zoom: 1})

	if ctxA.Err() == nil {
		t.Fatalf("first render context should be cancelled")
	}
	if s.Current(a) || !s.Current(b) {
		t.Fatalf("only the latest token should be current")
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if _, err := s.Finish(a, img, nil); !errors.Is(err, ErrRenderCancelled) {
		t.Fatalf("stale result: got %v", err)
	}
	got, err := s.Finish(b, img, nil)
	if err != nil || got != img {
		t.Fatalf("current result: got %v, %v", got, err)
	}
}

func TestSchedulerClassifiesErrors(t *testing.T) {
	var s Scheduler
	_, tok := s.Begin(context.Background(), 3, coords.ViewState{})
	if _, err := s.Finish(tok, nil, context.Canceled); !errors.Is(err, ErrRenderCancelled) {
		t.Fatalf("context cancellation: got %v", err)
	}

	_, tok = s.Begin(context.Background(), 3, coords.ViewState{})
	boom := errors.New("boom")
	_, err := s.Finish(tok, nil, boom)
	var re *RenderError
	if !errors.As(err, &re) || re.Page != 3 || !errors.Is(err, boom) {
		t.Fatalf("expected RenderError for page 3, got %v", err)
	}

	_, tok = s.Begin(context.Background(), 1, coords.ViewState{})
	s.Cancel()
	if _, err := s.Finish(tok, nil, nil); !errors.Is(err, ErrRenderCancelled) {
		t.Fatalf("cancelled render: got %v", err)
	}
}

func letterHandle() Handle {
	return Handle{
		PageCount: 1,
		PageSizes: []coords.Size{{Width: 612, Height: 792}},
		Fields: []layer.FormField{
			layer.NewField("name", 1, layer.FieldText, geo.Rect{X: 72, Y: 100, Width: 200, Height: 20}),
		},
		Text: []ocr.Candidate{{Page: 1, Text: "Hello", Bounds: geo.Rect{X: 72, Y: 60, Width: 30, Height: 12}, Size: 12}},
	}
}

func TestRenderPageSizes(t *testing.T) {
	c := NewCanvas(layer.White)
	tests := []struct {
		name string
		view coords.ViewState
		w, h int
	}{
		{"identity", coords.ViewState{Zoom: 1}, 612, 792},
		{"zoomed", coords.ViewState{Zoom: 0.5}, 306, 396},
		{"quarter turn", coords.ViewState{Zoom: 1, Rotation: coords.Rotate90}, 792, 612},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := c.RenderPage(context.Background(), letterHandle(), 1, tt.view)
			if err != nil {
				t.Fatalf("RenderPage: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.w || b.Dy() != tt.h {
				t.Fatalf("bounds = %v, want %dx%d", b, tt.w, tt.h)
			}
		})
	}
}

func TestRenderPageErrors(t *testing.T) {
	c := NewCanvas(layer.White)
	if _, err := c.RenderPage(context.Background(), letterHandle(), 2, coords.ViewState{Zoom: 1}); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var s Scheduler
	if _, err := s.Render(ctx, c, letterHandle(), 1, coords.ViewState{Zoom: 1}); !errors.Is(err, ErrRenderCancelled) {
		t.Fatalf("expected ErrRenderCancelled, got %v", err)
	}
}

func state(t *testing.T, items ...layer.Item) layer.State {
	t.Helper()
	is, err := layer.NewItems(items...)
	if err != nil {
		t.Fatalf("NewItems: %v", err)
	}
	fs, _ := layer.NewFields()
	return layer.State{Items: is, Fields: fs}
}

func TestPaintOverlayRedactionUnderZoom(t *testing.T) {
	c := NewCanvas(layer.White)
	red := layer.NewRedaction(1, geo.Rect{X: 10, Y: 10, Width: 20, Height: 20}, layer.Black)
	other := layer.NewRedaction(2, geo.Rect{X: 60, Y: 60, Width: 20, Height: 20}, layer.Black)
	view := coords.ViewState{Zoom: 2, PageSize: coords.Size{Width: 100, Height: 200}}

	img := c.PaintOverlay(nil, state(t, red, other), 1, view, OverlayOptions{})
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 400 {
		t.Fatalf("bounds = %v", b)
	}
	if got := img.RGBAAt(40, 40); got != (color.RGBA{A: 255}) {
		t.Fatalf("inside redaction = %v", got)
	}
	if got := img.RGBAAt(10, 10); got.A != 0 {
		t.Fatalf("outside redaction should stay transparent, got %v", got)
	}
	if got := img.RGBAAt(140, 140); got.A != 0 {
		t.Fatalf("item of another page painted: %v", got)
	}
}

func TestPaintOverlayKeepsBase(t *testing.T) {
	c := NewCanvas(layer.White)
	base := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := range base.Pix {
		base.Pix[i] = 255
	}
	hl := layer.NewShape(1, geo.Rect{X: 0, Y: 0, Width: 50, Height: 50}, layer.ShapeBody{Shape: layer.ShapeHighlight, Color: layer.Black, StrokeWidth: 1})
	view := coords.ViewState{Zoom: 1, PageSize: coords.Size{Width: 100, Height: 100}}

	img := c.PaintOverlay(base, state(t, hl), 1, view, OverlayOptions{})
	if base.RGBAAt(10, 10) != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("base was modified")
	}
	got := img.RGBAAt(10, 10)
	if got.R == 255 || got.R == 0 {
		t.Fatalf("highlight should blend, got %v", got)
	}
	if img.RGBAAt(80, 80) != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("outside highlight changed: %v", img.RGBAAt(80, 80))
	}
}

func TestPaintOverlayRotatedView(t *testing.T) {
	c := NewCanvas(layer.White)
	red := layer.NewRedaction(1, geo.Rect{X: 0, Y: 0, Width: 10, Height: 10}, layer.Black)
	view := coords.ViewState{Zoom: 1, Rotation: coords.Rotate90, PageSize: coords.Size{Width: 100, Height: 50}}

	img := c.PaintOverlay(nil, state(t, red), 1, view, OverlayOptions{})
	// The page's top-left corner lands on the device's top-right corner.
	if got := img.RGBAAt(45, 5); got.A != 255 {
		t.Fatalf("expected redaction at top-right, got %v", got)
	}
	if got := img.RGBAAt(5, 5); got.A != 0 {
		t.Fatalf("top-left should be empty, got %v", got)
	}
}

func TestPaintOverlayDrawsImagesAndSelection(t *testing.T) {
	c := NewCanvas(layer.White)
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 255, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	stamp := layer.NewShape(1, geo.Rect{X: 20, Y: 20, Width: 40, Height: 40}, layer.ShapeBody{Shape: layer.ShapeImage, Color: layer.Black, StrokeWidth: 1, Image: buf.Bytes()})
	view := coords.ViewState{Zoom: 1, PageSize: coords.Size{Width: 100, Height: 100}}

	img := c.PaintOverlay(nil, state(t, stamp), 1, view, OverlayOptions{Selected: stamp.ID})
	if got := img.RGBAAt(40, 40); got.R < 200 || got.G > 50 || got.A != 255 {
		t.Fatalf("image pixel = %v", got)
	}
	// Handles are filled squares centered on the corners.
	if got := img.RGBAAt(20, 20); got.B < 200 {
		t.Fatalf("expected a selection handle at the corner, got %v", got)
	}
}
