package scripting

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wudi/pdfoverlay/layer"
	"github.com/wudi/pdfoverlay/observability"
)

var ErrInvalidValue = errors.New("invalid field value")

// FieldsDOM exposes a working copy of a field collection to scripts.
type FieldsDOM struct {
	fields *layer.Fields
	pages  int
	alerts []string
	err    error
}

func NewFieldsDOM(fields *layer.Fields, pages int) *FieldsDOM {
	return &FieldsDOM{fields: fields, pages: pages}
}

// Fields returns the collection with every script assignment applied.
func (d *FieldsDOM) Fields() *layer.Fields { return d.fields }

func (d *FieldsDOM) Alerts() []string { return d.alerts }

// Err returns the first rejected assignment.
func (d *FieldsDOM) Err() error { return d.err }

func (d *FieldsDOM) reject(err error) error {
	if d.err == nil {
		d.err = err
	}
	return err
}

func (d *FieldsDOM) PageCount() int { return d.pages }

func (d *FieldsDOM) Alert(message string) { d.alerts = append(d.alerts, message) }

func (d *FieldsDOM) Field(name string) (FieldProxy, error) {
	f, ok := d.fields.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	return &fieldProxy{dom: d, name: name, typ: f.Type, page: f.Page}, nil
}

type fieldProxy struct {
	dom  *FieldsDOM
	name string
	typ  layer.FieldType
	page int
}

func (p *fieldProxy) Name() string { return p.name }
func (p *fieldProxy) Type() string { return string(p.typ) }
func (p *fieldProxy) Page() int    { return p.page }

func (p *fieldProxy) members() []layer.FormField {
	f, ok := p.dom.fields.ByName(p.name)
	if !ok {
		return nil
	}
	if f.Type == layer.FieldRadio && f.RadioGroup != "" {
		return p.dom.fields.Group(f.RadioGroup)
	}
	return []layer.FormField{f}
}

func (p *fieldProxy) Value() string {
	members := p.members()
	if len(members) == 0 {
		return ""
	}
	switch p.typ {
	case layer.FieldRadio, layer.FieldCheckbox:
		for _, f := range members {
			if f.Selected() {
				return f.OnValue()
			}
		}
		return layer.Off
	}
	return members[0].Value
}

func (p *fieldProxy) SetValue(value string) error {
	members := p.members()
	if len(members) == 0 {
		return p.dom.reject(fmt.Errorf("%w: %q", ErrNoSuchField, p.name))
	}
	fields := p.dom.fields
	switch p.typ {
	case layer.FieldRadio:
		if !layer.Truthy(value) {
			for _, f := range members {
				fields = fields.SetValue(f.ID, layer.Off)
			}
			break
		}
		i := slices.IndexFunc(members, func(f layer.FormField) bool { return f.OnValue() == value })
		if i < 0 {
			return p.dom.reject(fmt.Errorf("%w: %q for %s", ErrInvalidValue, value, p.name))
		}
		fields = fields.Select(members[i].ID)
	case layer.FieldCheckbox:
		if layer.Truthy(value) {
			fields = fields.Select(members[0].ID)
		} else {
			fields = fields.SetValue(members[0].ID, layer.Off)
		}
	case layer.FieldChoice:
		if opts := members[0].Options; len(opts) > 0 && value != "" && !slices.Contains(opts, value) {
			return p.dom.reject(fmt.Errorf("%w: %q for %s", ErrInvalidValue, value, p.name))
		}
		fields = fields.SetValue(members[0].ID, value)
	default:
		fields = fields.SetValue(members[0].ID, value)
	}
	p.dom.fields = fields
	return nil
}

// Batcher applies one batch of edits as a single history step.
type Batcher interface {
	Apply(batch func(layer.State) (layer.State, error)) (bool, error)
	PageCount() int
}

// Result describes one script run.
type Result struct {
	Value   interface{}
	Changed bool
	Alerts  []string
}

type Option func(*Runner)

func WithLogger(l observability.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner executes scripts against a session's fields.
type Runner struct {
	logger observability.Logger
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = observability.OrNop(r.logger)
	return r
}

// Run executes script on a fresh engine. Its field assignments land as one
// batch; a failing script changes nothing.
func (r *Runner) Run(ctx context.Context, b Batcher, script string) (Result, error) {
	var res Result
	changed, err := b.Apply(func(st layer.State) (layer.State, error) {
		dom := NewFieldsDOM(st.Fields, b.PageCount())
		engine := NewEngine()
		if err := engine.RegisterDOM(dom); err != nil {
			return st, err
		}
		v, err := engine.Execute(ctx, script)
		res.Alerts = dom.Alerts()
		if derr := dom.Err(); derr != nil {
			return st, derr
		}
		if err != nil {
			return st, err
		}
		res.Value = v
		st.Fields = dom.Fields()
		return st, nil
	})
	for _, a := range res.Alerts {
		r.logger.Info("script alert", observability.String("message", a))
	}
	if err != nil {
		r.logger.Warn("script failed", observability.Error("error", err))
		return res, err
	}
	res.Changed = changed
	r.logger.Debug("script finished", observability.Bool("changed", changed))
	return res, nil
}
