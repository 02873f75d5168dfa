// Package render rasterizes page previews with the overlay model painted on
// top, and arbitrates in-flight renders so a stale result is never shown.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/ocr"
)

var (
	// ErrRenderCancelled marks a render superseded by a newer one. It is
	// expected control flow and should be dropped silently.
	ErrRenderCancelled = errors.New("render cancelled")
	ErrPageOutOfRange  = errors.New("page out of range")
)

// RenderError is a render that failed for a reason other than cancellation.
// The previous raster should stay visible.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render page %d: %v", e.Page, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// Handle describes a loaded document.
type Handle struct {
	PageCount int
	// PageSizes holds the unrotated size of each page, index 0 is page 1.
	PageSizes []coords.Size
	// Fields are the interactive fields found in the document, in page space.
	Fields []layer.FormField
	// Text holds the document's native text runs, when available.
	Text []ocr.Candidate
}

// PageSize returns the size of a 1-based page.
func (h Handle) PageSize(page int) (coords.Size, bool) {
	if page < 1 || page > len(h.PageSizes) {
		return coords.Size{}, false
	}
	return h.PageSizes[page-1], true
}

// Loader decodes document bytes.
type Loader interface {
	Load(ctx context.Context, data []byte) (Handle, error)
}

// Renderer rasterizes one page of a loaded document.
type Renderer interface {
	RenderPage(ctx context.Context, h Handle, page int, view coords.ViewState) (image.Image, error)
}

// Token identifies one render request.
type Token struct {
	gen  uint64
	Page int
	View coords.ViewState
}

// Scheduler hands out tokens so that only the most recent render is applied.
// Starting a render cancels the context of the one in flight. Safe for
// concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a render for page and view, superseding any earlier one.
func (s *Scheduler) Begin(ctx context.Context, page int, view coords.ViewState) (context.Context, Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.gen++
	return ctx, Token{gen: s.gen, Page: page, View: view}
}

// Current reports whether t is still the latest render.
func (s *Scheduler) Current(t Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.gen == s.gen
}

// Cancel invalidates the render in flight, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// Finish classifies the outcome of the render started with t. Results of a
// superseded render are discarded with ErrRenderCancelled.
func (s *Scheduler) Finish(t Token, img image.Image, err error) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.gen {
		return nil, ErrRenderCancelled
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrRenderCancelled) {
			return nil, ErrRenderCancelled
		}
		return nil, &RenderError{Page: t.Page, Err: err}
	}
	return img, nil
}

// Render runs r for page and view under the scheduler.
func (s *Scheduler) Render(ctx context.Context, r Renderer, h Handle, page int, view coords.ViewState) (image.Image, error) {
	rctx, tok := s.Begin(ctx, page, view)
	img, err := r.RenderPage(rctx, h, page, view)
	return s.Finish(tok, img, err)
}
