// Package scripting runs form calculation scripts against a session's fields.
package scripting

import (
	"context"
	"errors"
)

var ErrNoSuchField = errors.New("no such field")

// Engine executes scripts against a registered DOM.
type Engine interface {
	Execute(ctx context.Context, script string) (interface{}, error)
	RegisterDOM(dom DOM) error
}

// DOM is what a script sees of the document: its form fields by name, the
// page count and an alert sink.
type DOM interface {
	Field(name string) (FieldProxy, error)
	PageCount() int
	Alert(message string)
}

// FieldProxy is one named field. Radio groups appear as a single field whose
// value is the selected member's on value.
type FieldProxy interface {
	Name() string
	Type() string
	Page() int
	Value() string
	SetValue(value string) error
}
