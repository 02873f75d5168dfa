package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/export"
	"github.com/wudi/pdfoverlay/ocr"
	"github.com/wudi/pdfoverlay/ocr/tesseract"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/pdfdoc"
	"github.com/wudi/pdfoverlay/render"
	"github.com/wudi/pdfoverlay/scripting"
	"github.com/wudi/pdfoverlay/session"
)

const (
	ocrDPI        = 144
	ocrConfidence = 60
)

func onePDF(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: want exactly one pdf, got %d arguments", errUsage, fs.NArg())
	}
	return fs.Arg(0), nil
}

func (e *env) service() *pdfdoc.Service {
	opts := []pdfdoc.Option{pdfdoc.WithLogger(e.logger)}
	if strings.EqualFold(e.cfg.Log.Level, "debug") {
		opts = append(opts, pdfdoc.WithDiagnostics())
	}
	return pdfdoc.NewService(opts...)
}

func (e *env) open(ctx context.Context, path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return session.Load(ctx, e.service(), data, session.WithConfig(e.cfg), session.WithLogger(e.logger.With(observability.String("file", filepath.Base(path)))))
}

func importEdits(s *session.Session, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := s.Import(f); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runApply(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	edits := fs.String("edits", "", "edits file (JSON)")
	script := fs.String("script", "", "form script to run after the edits")
	useOCR := fs.Bool("ocr", false, "recognize page text and add it as text boxes")
	out := fs.String("out", "", "output file (default from export config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := onePDF(fs)
	if err != nil {
		return err
	}
	s, err := e.open(ctx, path)
	if err != nil {
		return err
	}
	if err := importEdits(s, *edits); err != nil {
		return err
	}
	if *script != "" {
		src, err := os.ReadFile(*script)
		if err != nil {
			return err
		}
		if _, err := scripting.NewRunner(scripting.WithLogger(e.logger)).Run(ctx, s, string(src)); err != nil {
			return fmt.Errorf("script %s: %w", *script, err)
		}
	}
	if *useOCR {
		if err := recognize(ctx, e, s); err != nil {
			return err
		}
	}

	dest := *out
	if dest == "" {
		dest = e.cfg.Export.OutputPath(path)
	}
	merger := export.NewMerger(export.PDFOpener{Service: e.service()}, e.cfg.Export, export.WithLogger(e.logger))
	rep, err := merger.ExportTo(ctx, export.FileSink{Dir: filepath.Dir(dest)}, dest, s.Base(), s.Snapshot())
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s: %d drawn, %d filled, %d skipped\n", dest, rep.Drawn, rep.Filled, len(rep.Skipped))
	for _, x := range rep.Exposed {
		fmt.Fprintf(e.stdout, "warning: redaction %s on page %d covers %d text runs still in the file\n", x.ID, x.Page, x.Runs)
	}
	return nil
}

// recognize rasterizes every page and ingests the recognized lines as text
// boxes in one batch.
func recognize(ctx context.Context, e *env, s *session.Session) error {
	canvas := render.NewCanvas(e.cfg.Render.Paper)
	engine := tesseract.New()
	h := s.Handle()
	var all []ocr.Candidate
	for p := 1; p <= h.PageCount; p++ {
		size, _ := h.PageSize(p)
		img, err := canvas.RenderPage(ctx, h, p, coords.ViewState{Zoom: ocrDPI / 72.0, PageSize: size})
		if err != nil {
			return err
		}
		in, err := ocr.InputFromImage(p, img, ocr.WithDPI(ocrDPI))
		if err != nil {
			return err
		}
		cands, err := ocr.RecognizePage(ctx, engine, in, ocrConfidence)
		if err != nil {
			return fmt.Errorf("recognize page %d: %w", p, err)
		}
		all = append(all, cands...)
	}
	n, err := s.Ingest(all)
	if err != nil {
		return err
	}
	e.logger.Info("recognized text ingested", observability.Int("boxes", n))
	return nil
}

func runFields(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("fields", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := onePDF(fs)
	if err != nil {
		return err
	}
	s, err := e.open(ctx, path)
	if err != nil {
		return err
	}
	return e.printJSON(s.State().Fields.All())
}

func runText(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("text", flag.ContinueOnError)
	page := fs.Int("page", 0, "only this page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := onePDF(fs)
	if err != nil {
		return err
	}
	s, err := e.open(ctx, path)
	if err != nil {
		return err
	}
	runs := []ocr.Candidate{}
	for _, c := range s.Handle().Text {
		if *page == 0 || c.Page == *page {
			runs = append(runs, c)
		}
	}
	return e.printJSON(runs)
}

func runPreview(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	page := fs.Int("page", 1, "page to render")
	zoom := fs.Float64("zoom", e.cfg.View.Zoom, "zoom factor")
	rotate := fs.Int("rotate", 0, "view rotation in degrees, a multiple of 90")
	edits := fs.String("edits", "", "edits file (JSON) to paint")
	out := fs.String("out", "", "PNG file (default <pdf>-p<page>.png)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := onePDF(fs)
	if err != nil {
		return err
	}
	if *rotate%90 != 0 {
		return fmt.Errorf("%w: rotation %d is not a quarter turn", errUsage, *rotate)
	}
	s, err := e.open(ctx, path)
	if err != nil {
		return err
	}
	if err := s.SetPage(*page); err != nil {
		return err
	}
	s.SetZoom(*zoom)
	s.SetRotation(coords.Rotation(*rotate))
	if err := importEdits(s, *edits); err != nil {
		return err
	}

	canvas := render.NewCanvas(e.cfg.Render.Paper)
	var sched render.Scheduler
	base, err := sched.Render(ctx, canvas, s.Handle(), s.Page(), s.View())
	if err != nil {
		return err
	}
	img := canvas.PaintOverlay(base, s.State(), s.Page(), s.View(), render.OverlayOptions{})

	dest := *out
	if dest == "" {
		dest = fmt.Sprintf("%s-p%d.png", strings.TrimSuffix(path, filepath.Ext(path)), s.Page())
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := render.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, dest)
	return nil
}
