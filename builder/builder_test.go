package builder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/geo"
	"golang.org/x/image/bmp"
)

type fakeResources struct {
	fonts  []string
	images int
	alphas []float64
}

func (f *fakeResources) Font(base string) (string, error) {
	f.fonts = append(f.fonts, base)
	return "F1", nil
}

func (f *fakeResources) Image(data []byte) (string, error) {
	f.images++
	return "Im1", nil
}

func (f *fakeResources) Opacity(alpha float64) (string, error) {
	f.alphas = append(f.alphas, alpha)
	return "GS1", nil
}

func operators(ops []contentstream.Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Operator
	}
	return strings.Join(names, " ")
}

func TestFontName(t *testing.T) {
	tests := []struct {
		family       string
		bold, italic bool
		want         string
	}{
		{"", false, false, "Helvetica"},
		{"Arial", true, false, "Helvetica-Bold"},
		{"Times New Roman", false, true, "Times-Italic"},
		{"courier", true, true, "Courier-BoldOblique"},
		{"Times-Roman", false, false, "Times-Roman"},
		{"Helvetica-Bold", false, false, "Helvetica-Bold"},
		{"Helvetica", true, true, "Helvetica-BoldOblique"},
	}
	for _, tt := range tests {
		got, err := FontName(tt.family, tt.bold, tt.italic)
		if err != nil || got != tt.want {
			t.Errorf("FontName(%q,%v,%v) = %q, %v; want %q", tt.family, tt.bold, tt.italic, got, err, tt.want)
		}
	}
	if _, err := FontName("Comic Sans", false, false); !errors.Is(err, ErrUnsupportedFont) {
		t.Fatalf("expected ErrUnsupportedFont, got %v", err)
	}
}

func TestEncodeWinAnsi(t *testing.T) {
	got := EncodeWinAnsi("café €5 ✓")
	want := []byte{'c', 'a', 'f', 0xe9, ' ', 0x80, '5', ' ', '?'}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeWinAnsi = %v, want %v", got, want)
	}
}

func TestMetricsWidth(t *testing.T) {
	m := Metrics{Font: "Courier", Size: 10}
	if got := m.Width([]byte("abcd")); math.Abs(got-24) > 1e-9 {
		t.Fatalf("Courier width = %v, want 24", got)
	}
	if m.Ascent() <= 0 || m.Ascent() > 10 {
		t.Fatalf("unexpected ascent %v", m.Ascent())
	}
}

func TestDrawTextOperations(t *testing.T) {
	res := &fakeResources{}
	pb := NewPageBuilder(res)
	err := pb.DrawText("Hi\nthere", 10, 700, TextOptions{
		Font:      "Courier",
		FontSize:  10,
		Color:     Color{R: 1},
		Underline: true,
		Align:     "right",
		Width:     100,
	})
	if err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	if len(res.fonts) != 1 || res.fonts[0] != "Courier" {
		t.Fatalf("font lookups = %v", res.fonts)
	}
	ops := pb.Operations()
	want := "q cm rg BT Tf Tm Tj Tm Tj ET RG w m l S m l S Q"
	if got := operators(ops); got != want {
		t.Fatalf("operators = %q, want %q", got, want)
	}
	if ops[1].Number(4) != 10 || ops[1].Number(5) != 700 {
		t.Fatalf("cm origin = %v", ops[1].Operands)
	}
	// "Hi" is 12 wide in 10pt Courier; right aligned in a 100 box.
	if ops[5].Number(4) != 88 || ops[5].Number(5) != 0 {
		t.Fatalf("first line Tm = %v", ops[5].Operands)
	}
	if ops[7].Number(5) != -12 {
		t.Fatalf("second line should step down by 12, got %v", ops[7].Operands)
	}
	if string(ops[6].Text(0)) != "Hi" {
		t.Fatalf("Tj = %q", ops[6].Text(0))
	}
}

func TestDrawTextUnsupportedFontAppendsNothing(t *testing.T) {
	pb := NewPageBuilder(&fakeResources{})
	if err := pb.DrawText("x", 0, 0, TextOptions{Font: "Wingdings 9"}); !errors.Is(err, ErrUnsupportedFont) {
		t.Fatalf("expected ErrUnsupportedFont, got %v", err)
	}
	if !pb.Empty() {
		t.Fatalf("failed draw left operations behind")
	}
}

func TestDrawTextRotationTracesBox(t *testing.T) {
	pb := NewPageBuilder(&fakeResources{})
	if err := pb.DrawText("abcd", 100, 100, TextOptions{Font: "Courier", FontSize: 10, Rotation: 90}); err != nil {
		t.Fatal(err)
	}
	tr := contentstream.NewTracer()
	tr.Width = func(_ string, text []byte, size float64) float64 { return float64(len(text)) * 0.6 * size }
	boxes, err := tr.Trace(pb.Operations())
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 1 {
		t.Fatalf("expected one painted box, got %d", len(boxes))
	}
	b := boxes[0].Rect
	if math.Abs(b.LLY-100) > 1e-6 || math.Abs(b.URY-124) > 1e-6 {
		t.Fatalf("rotated text should run upward from the origin: %+v", b)
	}
}

func TestDrawShapes(t *testing.T) {
	res := &fakeResources{}
	pb := NewPageBuilder(res)
	if err := pb.DrawRectangle(0, 0, 50, 20, RectOptions{Fill: true, FillColor: Color{R: 1, G: 1}, Opacity: 0.35}); err != nil {
		t.Fatal(err)
	}
	if err := pb.DrawEllipse(10, 10, 20, 10, RectOptions{LineWidth: 2}); err != nil {
		t.Fatal(err)
	}
	if err := pb.DrawLine(0, 0, 10, 10, LineOptions{LineWidth: 1, DashPattern: []float64{3, 2}}); err != nil {
		t.Fatal(err)
	}
	if err := pb.DrawPolyline([]geo.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 0}}, PathOptions{LineCap: 1, LineJoin: 1}); err != nil {
		t.Fatal(err)
	}
	if err := pb.DrawPolyline([]geo.Point{{X: 1, Y: 1}}, PathOptions{}); err != nil {
		t.Fatal(err)
	}
	want := "q gs rg re f Q " +
		"q RG w m c c c c h S Q " +
		"q RG w d m l S Q " +
		"q RG J j m l l S Q"
	if got := operators(pb.Operations()); got != want {
		t.Fatalf("operators =\n%q\nwant\n%q", got, want)
	}
	if len(res.alphas) != 1 || res.alphas[0] != 0.35 {
		t.Fatalf("opacity lookups = %v", res.alphas)
	}
	if !strings.Contains(string(pb.Bytes()), "0 0 50 20 re\nf\n") {
		t.Fatalf("serialized content missing rectangle:\n%s", pb.Bytes())
	}
}

func TestDrawImage(t *testing.T) {
	res := &fakeResources{}
	pb := NewPageBuilder(res)
	if err := pb.DrawImage([]byte("png"), 5, 6, 70, 80, 0); err != nil {
		t.Fatal(err)
	}
	ops := pb.Operations()
	if operators(ops) != "q cm Do Q" || ops[1].Number(0) != 70 || ops[1].Number(3) != 80 || ops[2].Name(0) != "Im1" {
		t.Fatalf("unexpected image operations: %+v", ops)
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func TestImageData(t *testing.T) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, testImage()); err != nil {
		t.Fatal(err)
	}
	data, cfg, err := ImageData(pngBuf.Bytes())
	if err != nil || cfg.Width != 3 || cfg.Height != 2 || !bytes.Equal(data, pngBuf.Bytes()) {
		t.Fatalf("png passthrough: cfg=%+v err=%v", cfg, err)
	}

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBuf.Bytes())
	if _, cfg, err := ImageData([]byte(uri)); err != nil || cfg.Width != 3 {
		t.Fatalf("data URI: cfg=%+v err=%v", cfg, err)
	}

	var bmpBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, testImage()); err != nil {
		t.Fatal(err)
	}
	data, _, err = ImageData(bmpBuf.Bytes())
	if err != nil {
		t.Fatalf("bmp: %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
		t.Fatalf("bmp should be re-encoded as png, got %q %v", format, err)
	}

	for _, bad := range [][]byte{nil, []byte("not an image"), []byte("data:image/png,abc")} {
		if _, _, err := ImageData(bad); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("ImageData(%q) err = %v", bad, err)
		}
	}
}
