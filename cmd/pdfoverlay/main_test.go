package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/internal/pdftest"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/ocr"
)

func fixture(t *testing.T) (dir, pdf string) {
	t.Helper()
	dir = t.TempDir()
	p := pdftest.Letter("Invoice")
	p.Fields = []pdftest.Field{
		{Name: "qty", Type: "text", Rect: [4]float64{100, 700, 200, 720}, Value: "2"},
		{Name: "total", Type: "text", Rect: [4]float64{100, 650, 200, 670}},
	}
	pdf = filepath.Join(dir, "invoice.pdf")
	if err := os.WriteFile(pdf, pdftest.Build(p), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, pdf
}

func writeEdits(t *testing.T, dir string) string {
	t.Helper()
	items, err := layer.NewItems(
		layer.NewText(1, geo.Rect{X: 72, Y: 300, Width: 150, Height: 24}, layer.TextBody{Value: "Paid", Font: "Helvetica", Size: 14}),
		layer.NewRedaction(1, geo.Rect{X: 72, Y: 400, Width: 100, Height: 20}),
	)
	if err != nil {
		t.Fatal(err)
	}
	fields, _ := layer.NewFields()
	var buf bytes.Buffer
	if err := layer.WriteState(&buf, layer.State{Items: items, Fields: fields}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "edits.json")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestApply(t *testing.T) {
	dir, pdf := fixture(t)
	edits := writeEdits(t, dir)
	script := filepath.Join(dir, "calc.js")
	if err := os.WriteFile(script, []byte(`getField("total").value = getField("qty").value * 21;`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, errOut, code := runCLI(t, "apply", "-edits", edits, "-script", script, pdf)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	dest := filepath.Join(dir, "invoice-edited.pdf")
	if !strings.HasPrefix(out, dest+": 2 drawn, 2 filled, 0 skipped") {
		t.Fatalf("stdout = %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output: %v", err)
	}
}

func TestFieldsAndText(t *testing.T) {
	_, pdf := fixture(t)

	out, errOut, code := runCLI(t, "fields", pdf)
	if code != 0 {
		t.Fatalf("fields exit %d: %s", code, errOut)
	}
	var fields []layer.FormField
	if err := json.Unmarshal([]byte(out), &fields); err != nil || len(fields) != 2 || fields[0].Name != "qty" || fields[0].Value != "2" {
		t.Fatalf("fields = %+v, %v", fields, err)
	}

	out, errOut, code = runCLI(t, "text", "-page", "1", pdf)
	if code != 0 {
		t.Fatalf("text exit %d: %s", code, errOut)
	}
	var runs []ocr.Candidate
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) == 0 || runs[0].Text != "Invoice" {
		t.Fatalf("text = %s, %v", out, err)
	}
}

func TestPreview(t *testing.T) {
	dir, pdf := fixture(t)
	dest := filepath.Join(dir, "p1.png")
	_, errOut, code := runCLI(t, "preview", "-zoom", "0.5", "-rotate", "90", "-edits", writeEdits(t, dir), "-out", dest, pdf)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	f, err := os.Open(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 396 || cfg.Height != 306 {
		t.Fatalf("preview is %dx%d, want rotated 396x306", cfg.Width, cfg.Height)
	}
}

func TestUsageErrors(t *testing.T) {
	_, pdf := fixture(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"explode", pdf}, 2},
		{"missing pdf", []string{"fields"}, 2},
		{"bad rotation", []string{"preview", "-rotate", "45", pdf}, 2},
		{"missing file", []string{"fields", filepath.Join(t.TempDir(), "nope.pdf")}, 1},
		{"page out of range", []string{"preview", "-page", "9", pdf}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, code := runCLI(t, tt.args...); code != tt.code {
				t.Fatalf("exit = %d, want %d", code, tt.code)
			}
		})
	}
}
