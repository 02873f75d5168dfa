// Package session owns one editing session over a loaded document: the view
// (page, zoom, rotation), the live overlay collections and their history.
//
// A Session is single-owner and event-driven. It is not safe for concurrent
// mutation; callers serialize access, typically on one UI goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wudi/pdfoverlay/config"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/history"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/ocr"
	"github.com/wudi/pdfoverlay/render"
)

var (
	ErrEmptyDocument  = errors.New("empty document")
	ErrPageOutOfRange = errors.New("page out of range")
)

// LoadError reports a document that could not be loaded. No session is
// created, and an existing session is left as it was.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "load document: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

type Option func(*Session)

func WithConfig(cfg config.Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

func WithLogger(l observability.Logger) Option {
	return func(s *Session) { s.logger = l }
}

type Session struct {
	cfg    config.Config
	logger observability.Logger

	base   []byte
	handle render.Handle

	page     int
	zoom     float64
	rotation coords.Rotation

	initial layer.State
	state   layer.State
	history *history.Manager
	auto    *history.AutoCommitter
}

// Load decodes data with loader and starts a session on it. data is kept by
// reference and never modified.
func Load(ctx context.Context, loader render.Loader, data []byte, opts ...Option) (*Session, error) {
	s := &Session{cfg: config.Default(), logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger)
	h, err := load(ctx, loader, data)
	if err != nil {
		return nil, err
	}
	if err := s.start(data, h); err != nil {
		return nil, &LoadError{Err: err}
	}
	return s, nil
}

func load(ctx context.Context, loader render.Loader, data []byte) (render.Handle, error) {
	if len(data) == 0 {
		return render.Handle{}, &LoadError{Err: ErrEmptyDocument}
	}
	h, err := loader.Load(ctx, data)
	if err != nil {
		return render.Handle{}, &LoadError{Err: err}
	}
	if h.PageCount < 1 || len(h.PageSizes) != h.PageCount {
		return render.Handle{}, &LoadError{Err: fmt.Errorf("document reports %d pages and %d page sizes", h.PageCount, len(h.PageSizes))}
	}
	return h, nil
}

// Reload replaces the document and resets the session. On failure the
// current session is untouched.
func (s *Session) Reload(ctx context.Context, loader render.Loader, data []byte) error {
	h, err := load(ctx, loader, data)
	if err != nil {
		return err
	}
	if err := s.start(data, h); err != nil {
		return &LoadError{Err: err}
	}
	return nil
}

func (s *Session) start(data []byte, h render.Handle) error {
	fields, err := layer.NewFields(h.Fields...)
	if err != nil {
		return fmt.Errorf("document fields: %w", err)
	}
	items, _ := layer.NewItems()

	s.base, s.handle = data, h
	s.initial = layer.State{Items: items, Fields: fields}
	s.Reset()
	s.logger.Info("document loaded",
		observability.Int("pages", h.PageCount),
		observability.Int("fields", fields.Len()),
		observability.Int("bytes", len(data)))
	return nil
}

// Reset discards every edit and the history, returning to the document as
// loaded.
func (s *Session) Reset() {
	s.page, s.zoom, s.rotation = 1, s.cfg.View.Clamp(s.cfg.View.Zoom), coords.Rotate0
	s.state = s.initial
	if s.history == nil {
		s.history = history.New(s.cfg.History.Capacity, s.initial)
		s.auto = history.NewAutoCommitter(s.history)
		return
	}
	s.history.Reset(s.initial)
	s.auto.Forget()
}

func (s *Session) Config() config.Config { return s.cfg }
func (s *Session) Base() []byte          { return s.base }
func (s *Session) Handle() render.Handle { return s.handle }
func (s *Session) PageCount() int        { return s.handle.PageCount }
func (s *Session) Page() int             { return s.page }

// SetPage makes page the active page.
func (s *Session) SetPage(page int) error {
	if page < 1 || page > s.handle.PageCount {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, s.handle.PageCount)
	}
	s.page = page
	return nil
}

func (s *Session) NextPage() bool { return s.SetPage(s.page+1) == nil }
func (s *Session) PrevPage() bool { return s.SetPage(s.page-1) == nil }

func (s *Session) Zoom() float64 { return s.zoom }

// SetZoom sets the zoom within the configured limits and returns the value
// applied.
func (s *Session) SetZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return s.zoom
	}
	s.zoom = s.cfg.View.Clamp(z)
	return s.zoom
}

func (s *Session) ZoomIn() float64  { return s.SetZoom(s.zoom * s.cfg.View.ZoomStep) }
func (s *Session) ZoomOut() float64 { return s.SetZoom(s.zoom / s.cfg.View.ZoomStep) }

func (s *Session) Rotation() coords.Rotation { return s.rotation }

// Rotate turns the view a quarter clockwise.
func (s *Session) Rotate() coords.Rotation {
	s.rotation = s.rotation.Next()
	return s.rotation
}

func (s *Session) SetRotation(r coords.Rotation) { s.rotation = r.Normalize() }

// View describes how the active page is presented.
func (s *Session) View() coords.ViewState {
	size, _ := s.handle.PageSize(s.page)
	return coords.ViewState{Zoom: s.zoom, Rotation: s.rotation, PageSize: size}
}

// PageBounds is the active page in page space.
func (s *Session) PageBounds() geo.Rect {
	size, _ := s.handle.PageSize(s.page)
	return geo.Rect{Width: size.Width, Height: size.Height}
}

// State returns the live collections.
func (s *Session) State() layer.State { return s.state }

// Replace swaps in new live collections without recording history. Gestures
// in progress use it; Commit records the outcome.
func (s *Session) Replace(st layer.State) { s.state = st }

// Commit records the live state in history. It reports false when nothing
// changed since the last entry.
func (s *Session) Commit() bool { return s.history.Commit(s.state) }

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo restores the previous snapshot by replacement.
func (s *Session) Undo() bool {
	st, ok := s.history.Undo()
	if ok {
		s.state = st
		s.auto.Forget()
		s.logger.Debug("undo", observability.Int("cursor", s.history.Cursor()))
	}
	return ok
}

func (s *Session) Redo() bool {
	st, ok := s.history.Redo()
	if ok {
		s.state = st
		s.auto.Forget()
		s.logger.Debug("redo", observability.Int("cursor", s.history.Cursor()))
	}
	return ok
}

func (s *Session) checkPage(page int) error {
	if page < 1 || page > s.handle.PageCount {
		return fmt.Errorf("%w: %w: item on page %d of %d", layer.ErrInvalidItem, ErrPageOutOfRange, page, s.handle.PageCount)
	}
	return nil
}

// AddItem adds it on top of its page and commits.
func (s *Session) AddItem(it layer.Item) error {
	if err := s.checkPage(it.Page); err != nil {
		return err
	}
	items, err := s.state.Items.Add(it)
	if err != nil {
		return err
	}
	s.state.Items = items
	s.Commit()
	return nil
}

// UpdateItem applies patch to an item and commits. Unknown ids are ignored.
func (s *Session) UpdateItem(id string, patch layer.Patch) error {
	if patch.Page != nil {
		if err := s.checkPage(*patch.Page); err != nil {
			return err
		}
	}
	s.state.Items = s.state.Items.Update(id, patch)
	s.Commit()
	return nil
}

// Remove deletes the item or field with id and commits. It reports whether
// anything was removed.
func (s *Session) Remove(id string) bool {
	st := s.state
	st.Items = st.Items.Remove(id)
	st.Fields = st.Fields.Remove(id)
	if st.Same(s.state) {
		return false
	}
	s.state = st
	return s.Commit()
}

// SetFieldValue sets a field's value and commits.
func (s *Session) SetFieldValue(id, value string) bool {
	fields := s.state.Fields.SetValue(id, value)
	if fields == s.state.Fields {
		return false
	}
	s.state.Fields = fields
	return s.Commit()
}

// AddField adds a form field placed by the user and commits.
func (s *Session) AddField(f layer.FormField) error {
	if err := s.checkPage(f.Page); err != nil {
		return err
	}
	fields, err := s.state.Fields.Add(f)
	if err != nil {
		return err
	}
	s.state.Fields = fields
	s.Commit()
	return nil
}

// Apply runs an externally driven batch over the live state. The result is
// committed at most once, and only when it differs from what was last
// observed. On error the state is left as it was.
func (s *Session) Apply(batch func(layer.State) (layer.State, error)) (bool, error) {
	next, err := batch(s.state)
	if err != nil {
		return false, err
	}
	for _, it := range next.Items.All() {
		if err := s.checkPage(it.Page); err != nil {
			return false, err
		}
	}
	s.state = next
	return s.auto.Observe(next), nil
}

// Import merges an edit file: its items are added on top, and its field
// values are applied to the document's fields with the same name. Fields that
// match nothing are skipped.
func (s *Session) Import(r io.Reader) (bool, error) {
	in, err := layer.ReadState(r)
	if err != nil {
		return false, err
	}
	return s.Apply(func(st layer.State) (layer.State, error) {
		items := st.Items
		for _, it := range in.Items.All() {
			it.ID = layer.NewID()
			next, err := items.Add(it)
			if err != nil {
				return st, err
			}
			items = next
		}
		fields := st.Fields
		for _, f := range in.Fields.All() {
			if target, ok := matchField(fields, f); ok {
				fields = fields.SetValue(target.ID, f.Value)
			} else {
				s.logger.Warn("imported field matches nothing", observability.String("field", f.Name))
			}
		}
		return layer.State{Items: items, Fields: fields}, nil
	})
}

func matchField(fields *layer.Fields, f layer.FormField) (layer.FormField, bool) {
	if f.Type != layer.FieldRadio {
		return fields.ByName(f.Name)
	}
	for _, m := range fields.Group(f.Name) {
		if len(m.Options) > 0 && len(f.Options) > 0 && m.Options[0] == f.Options[0] {
			return m, true
		}
	}
	return layer.FormField{}, false
}

// Export writes the live state as an edit file.
func (s *Session) Export(w io.Writer) error { return layer.WriteState(w, s.state) }

// Ingest turns recognized text into text items as one batch and returns how
// many were added. Candidates on unknown pages or without text are dropped.
func (s *Session) Ingest(cands []ocr.Candidate) (int, error) {
	added := 0
	_, err := s.Apply(func(st layer.State) (layer.State, error) {
		items := st.Items
		for _, c := range cands {
			if c.Text == "" || s.checkPage(c.Page) != nil {
				continue
			}
			size := c.Size
			if size <= 0 {
				size = c.Bounds.Normalize().Height
			}
			if size <= 0 {
				continue
			}
			r := c.Bounds.Normalize()
			r.Width, r.Height = math.Max(r.Width, layer.MinSize), math.Max(r.Height, layer.MinSize)
			it := layer.NewText(c.Page, r, layer.TextBody{
				Value: c.Text,
				Font:  s.cfg.Interaction.Font,
				Size:  size,
				Color: s.cfg.Interaction.Color,
			})
			next, err := items.Add(it)
			if err != nil {
				return st, err
			}
			items, added = next, added+1
		}
		st.Items = items
		return st, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Snapshot is a value copy of the edits for export. Later edits do not reach
// it.
type Snapshot struct {
	State     layer.State
	PageCount int
	PageSizes []coords.Size
	// Baseline is the document's fields as loaded. Nil means every field in
	// State counts as an edit.
	Baseline *layer.Fields
}

// Empty reports whether there is nothing to export: no items, and no field
// that differs from the baseline.
func (s Snapshot) Empty() bool {
	if s.State.Items.Len() > 0 {
		return false
	}
	if s.Baseline == nil {
		return s.State.Fields.Len() == 0
	}
	return s.State.Equal(layer.State{Items: s.State.Items, Fields: s.Baseline})
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		State:     s.state.Clone(),
		PageCount: s.handle.PageCount,
		PageSizes: append([]coords.Size(nil), s.handle.PageSizes...),
		Baseline:  s.initial.Clone().Fields,
	}
}
