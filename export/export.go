// Package export bakes a session snapshot into a copy of the base document.
//
// Items are projected from page space (top-left origin) onto each page's
// native space and drawn in a fixed order: text, then form values, then
// shapes and redactions, then image stamps. A failure that concerns one item
// is recorded and skipped; only whole-document failures abort.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/pdfdoc"
	"github.com/wudi/pdfoverlay/session"
)

var (
	ErrNoBaseDocument  = errors.New("no base document")
	ErrNothingToExport = errors.New("nothing to export")
	ErrOpenBase        = errors.New("cannot open base document")
	ErrSave            = errors.New("cannot save document")
)

// FatalError aborts an export. Reason is one of the Err* values above; Err is
// the underlying cause, if any.
type FatalError struct {
	Reason error
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return "export: " + e.Reason.Error()
	}
	return fmt.Sprintf("export: %v: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// ItemError is a failure confined to one item or field.
type ItemError struct {
	ID   string
	Kind string
	Page int
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("export %s %s on page %d: %v", e.Kind, e.ID, e.Page, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Exposure is a redaction drawn over text that is still in the page content,
// and so still extractable.
type Exposure struct {
	ID   string
	Page int
	Runs int
}

// Report summarizes an export.
type Report struct {
	Drawn     int
	Filled    int
	Flattened bool
	Pages     []int
	Skipped   []*ItemError
	Exposed   []Exposure
}

// Err joins the skipped item errors, or returns nil.
func (r *Report) Err() error {
	if r == nil || len(r.Skipped) == 0 {
		return nil
	}
	errs := make([]error, len(r.Skipped))
	for i, e := range r.Skipped {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Document is the editable document the merger draws on. Coordinates are
// native PDF space.
type Document interface {
	PageBox(page int) (pdfdoc.Box, error)
	DrawText(page int, text string, x, y float64, opts builder.TextOptions) error
	DrawRectangle(page int, x, y, width, height float64, opts builder.RectOptions) error
	DrawEllipse(page int, x, y, width, height float64, opts builder.RectOptions) error
	DrawLine(page int, x1, y1, x2, y2 float64, opts builder.LineOptions) error
	DrawPolyline(page int, points []geo.Point, opts builder.PathOptions) error
	DrawImage(page int, data []byte, x, y, width, height, opacity float64) error
	DrawFieldValue(page int, box pdfdoc.Box, typ layer.FieldType, value string) error
	FillField(name, value string) error
	Flatten() error
	Save() ([]byte, error)
}

// TextLocator is implemented by documents that can tell where their own page
// content shows text. Redactions are checked against it.
type TextLocator interface {
	TextBoxes(page int) ([]pdfdoc.Box, error)
}

// Opener opens base bytes for editing.
type Opener interface {
	Open(data []byte) (Document, error)
}

// PDFOpener opens documents with a pdfdoc.Service.
type PDFOpener struct {
	Service *pdfdoc.Service
}

func (o PDFOpener) Open(data []byte) (Document, error) {
	doc, err := o.Service.Open(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type Option func(*Merger)

func WithLogger(l observability.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

func WithTracer(t observability.Tracer) Option {
	return func(m *Merger) { m.tracer = t }
}

type Merger struct {
	opener Opener
	cfg    config.Export
	logger observability.Logger
	tracer observability.Tracer
}

func NewMerger(opener Opener, cfg config.Export, opts ...Option) *Merger {
	m := &Merger{opener: opener, cfg: cfg, logger: observability.NopLogger{}, tracer: observability.NopTracer()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = observability.OrNop(m.logger)
	if m.tracer == nil {
		m.tracer = observability.NopTracer()
	}
	return m
}

// Export draws snap onto a fresh copy of base and returns the new document.
// base is never modified. Item failures are in the report; the returned error
// is a *FatalError or the context's error.
func (m *Merger) Export(ctx context.Context, base []byte, snap session.Snapshot) (out []byte, rep *Report, err error) {
	ctx, span := m.tracer.StartSpan(ctx, "export.merge")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	if len(base) == 0 {
		return nil, nil, &FatalError{Reason: ErrNoBaseDocument}
	}
	if snap.Empty() {
		return nil, nil, &FatalError{Reason: ErrNothingToExport}
	}
	doc, err := m.opener.Open(bytes.Clone(base))
	if err != nil {
		return nil, nil, &FatalError{Reason: ErrOpenBase, Err: err}
	}

	mg := &merge{m: m, doc: doc, rep: &Report{}, boxes: map[int]pdfdoc.Box{}, pages: map[int]bool{}}
	items := snap.State.Items.All()
	passes := []struct {
		name string
		run  func()
	}{
		{"text", func() { mg.items(items, isText) }},
		{"fields", func() { mg.fields(snap.State.Fields) }},
		{"shapes", func() { mg.items(items, isShape) }},
		{"images", func() { mg.items(items, layer.Item.IsImage) }},
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		_, ps := m.tracer.StartSpan(ctx, "export."+p.name)
		before := len(mg.rep.Skipped)
		p.run()
		ps.SetTag("skipped", len(mg.rep.Skipped)-before)
		ps.Finish()
	}

	out, err = doc.Save()
	if err != nil {
		return nil, nil, &FatalError{Reason: ErrSave, Err: err}
	}
	for p := range mg.pages {
		mg.rep.Pages = append(mg.rep.Pages, p)
	}
	sort.Ints(mg.rep.Pages)
	span.SetTag("bytes", len(out))
	m.logger.Info("export finished",
		observability.Int("drawn", mg.rep.Drawn),
		observability.Int("filled", mg.rep.Filled),
		observability.Int("skipped", len(mg.rep.Skipped)),
		observability.Int("bytes", len(out)))
	return out, mg.rep, nil
}

// Sink receives finished documents.
type Sink interface {
	Deliver(filename string, data []byte) error
}

// ExportTo exports and hands the result to sink under filename.
func (m *Merger) ExportTo(ctx context.Context, sink Sink, filename string, base []byte, snap session.Snapshot) (*Report, error) {
	out, rep, err := m.Export(ctx, base, snap)
	if err != nil {
		return nil, err
	}
	if err := sink.Deliver(filename, out); err != nil {
		return rep, fmt.Errorf("deliver %s: %w", filename, err)
	}
	return rep, nil
}

func isText(it layer.Item) bool { return it.Kind() == layer.KindText }

func isShape(it layer.Item) bool {
	return it.Kind() == layer.KindRedaction || (it.Kind() == layer.KindShape && !it.IsImage())
}

func kindName(it layer.Item) string {
	if s, ok := it.Shape(); ok {
		return string(s.Shape)
	}
	return string(it.Kind())
}

// merge is the state of one export run.
type merge struct {
	m     *Merger
	doc   Document
	rep   *Report
	boxes map[int]pdfdoc.Box
	pages map[int]bool
}

func (mg *merge) skip(id, kind string, page int, err error) {
	ie := &ItemError{ID: id, Kind: kind, Page: page, Err: err}
	mg.rep.Skipped = append(mg.rep.Skipped, ie)
	mg.m.logger.Warn("export item skipped",
		observability.String("id", id),
		observability.String("kind", kind),
		observability.Int("page", page),
		observability.Error("error", err))
}

func (mg *merge) box(page int) (pdfdoc.Box, error) {
	if b, ok := mg.boxes[page]; ok {
		return b, nil
	}
	b, err := mg.doc.PageBox(page)
	if err != nil {
		return pdfdoc.Box{}, err
	}
	mg.boxes[page] = b
	return b, nil
}

func (mg *merge) items(items []layer.Item, keep func(layer.Item) bool) {
	for _, it := range items {
		if !keep(it) {
			continue
		}
		box, err := mg.box(it.Page)
		t := target{n: it.Page, box: box}
		if err == nil {
			err = mg.draw(t, it)
		}
		if err != nil {
			mg.skip(it.ID, kindName(it), it.Page, err)
			continue
		}
		mg.rep.Drawn++
		mg.pages[it.Page] = true
		if it.Kind() == layer.KindRedaction {
			mg.covered(t, it)
		}
	}
}

// covered records a redaction that hides text the output still carries.
func (mg *merge) covered(t target, it layer.Item) {
	loc, ok := mg.doc.(TextLocator)
	if !ok {
		return
	}
	boxes, err := loc.TextBoxes(t.n)
	if err != nil {
		mg.m.logger.Debug("page text not traced", observability.Int("page", t.n), observability.Error("error", err))
		return
	}
	r := t.native(it.Rect())
	runs := 0
	for _, b := range boxes {
		if r.Overlaps(b) {
			runs++
		}
	}
	if runs == 0 {
		return
	}
	mg.rep.Exposed = append(mg.rep.Exposed, Exposure{ID: it.ID, Page: t.n, Runs: runs})
	mg.m.logger.Warn("redaction covers text that stays in the document",
		observability.String("id", it.ID),
		observability.Int("page", t.n),
		observability.Int("runs", runs))
}

// fields fills every field by name, then flattens the form when configured.
// Fields the base document does not have are drawn as static values.
func (mg *merge) fields(fields *layer.Fields) {
	done := map[string]bool{}
	for _, f := range fields.All() {
		if f.Type == layer.FieldRadio && f.RadioGroup != "" {
			if done[f.RadioGroup] {
				continue
			}
			done[f.RadioGroup] = true
			mg.radio(fields.Group(f.RadioGroup))
			continue
		}
		mg.fill(f.Name, f.Value, []layer.FormField{f})
	}
	if !mg.m.cfg.Flatten {
		return
	}
	if err := mg.doc.Flatten(); err != nil {
		mg.skip("", "form", 0, err)
		return
	}
	mg.rep.Flattened = true
}

func (mg *merge) radio(group []layer.FormField) {
	value := layer.Off
	for _, f := range group {
		if f.Selected() {
			value = f.OnValue()
			break
		}
	}
	mg.fill(group[0].Name, value, group)
}

// fill sets a field's value. members are the snapshot fields behind the name,
// used to draw the value when the document has no such field.
func (mg *merge) fill(name, value string, members []layer.FormField) {
	err := mg.doc.FillField(name, value)
	if err == nil {
		mg.rep.Filled++
		for _, f := range members {
			mg.pages[f.Page] = true
		}
		return
	}
	if !errors.Is(err, pdfdoc.ErrUnknownField) {
		mg.skip(members[0].ID, "field "+name, members[0].Page, err)
		return
	}
	for _, f := range members {
		box, err := mg.box(f.Page)
		if err == nil {
			err = mg.doc.DrawFieldValue(f.Page, target{n: f.Page, box: box}.native(f.Rect.Rect()), f.Type, f.Value)
		}
		if err != nil {
			mg.skip(f.ID, "field "+name, f.Page, err)
			continue
		}
		mg.rep.Drawn++
		mg.pages[f.Page] = true
	}
}
