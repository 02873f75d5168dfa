// Package pdfdoc is the document-model collaborator: it opens base PDF bytes,
// draws overlay content onto pages, fills and flattens the interactive form,
// and writes the result. It is built on pdfcpu.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdflog "github.com/pdfcpu/pdfcpu/pkg/log"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/coords"
	"github.com/wudi/pdfoverlay/observability"
	"github.com/wudi/pdfoverlay/render"
	"github.com/wudi/pdfoverlay/textlayer"
)

var (
	ErrInvalidDocument = errors.New("invalid document")
	ErrUnknownField    = errors.New("unknown form field")
	ErrInvalidValue    = errors.New("invalid field value")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrUnsupportedFont = builder.ErrUnsupportedFont
	ErrInvalidImage    = builder.ErrInvalidImage
)

var disableConfigDir sync.Once

// Service opens documents. It carries no per-document state and may be
// shared.
type Service struct {
	logger      observability.Logger
	diagnostics bool
}

type Option func(*Service)

func WithLogger(l observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDiagnostics routes pdfcpu's read, validate and write logs to the
// service logger at debug level. pdfcpu's loggers are process wide.
func WithDiagnostics() Option {
	return func(s *Service) { s.diagnostics = true }
}

func NewService(opts ...Option) *Service {
	disableConfigDir.Do(api.DisableConfigDir)
	s := &Service{logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger)
	if s.diagnostics {
		bridge := func(topic string) pdflog.Logger {
			return observability.PDFLogBridge{Logger: s.logger, Topic: topic}
		}
		pdflog.SetReadLogger(bridge("read"))
		pdflog.SetValidateLogger(bridge("validate"))
		pdflog.SetWriteLogger(bridge("write"))
		pdflog.SetDebugLogger(bridge("debug"))
	}
	return s
}

func (s *Service) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open parses data into an editable document. data is not retained or
// modified.
func (s *Service) Open(data []byte) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()
	ctx, err := api.ReadContext(bytes.NewReader(data), s.configuration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		s.logger.Warn("document failed validation, continuing", observability.Error("error", err))
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	return newDocument(ctx, s.logger), nil
}

// Load implements render.Loader. Page sizes and fields come from the
// document model; the native text layer is added when it can be read.
func (s *Service) Load(ctx context.Context, data []byte) (render.Handle, error) {
	if err := ctx.Err(); err != nil {
		return render.Handle{}, err
	}
	doc, err := s.Open(data)
	if err != nil {
		return render.Handle{}, err
	}
	h := render.Handle{PageCount: doc.PageCount()}
	for p := 1; p <= h.PageCount; p++ {
		box, err := doc.PageBox(p)
		if err != nil {
			return render.Handle{}, err
		}
		h.PageSizes = append(h.PageSizes, coords.Size{Width: box.Width(), Height: box.Height()})
	}
	if h.Fields, err = doc.Form(); err != nil {
		s.logger.Warn("form discovery failed", observability.Error("error", err))
		h.Fields = nil
	}
	text, err := textlayer.Extract(ctx, data)
	switch {
	case ctx.Err() != nil:
		return render.Handle{}, ctx.Err()
	case err != nil:
		s.logger.Debug("no native text layer", observability.Error("error", err))
	default:
		h.Text = text
	}
	return h, nil
}
