package scripting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

// RegisterDOM installs getField, numPages and app.alert.
func (e *GojaEngine) RegisterDOM(dom DOM) error {
	app := e.vm.NewObject()
	err := app.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Alert(msg)
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	if err := e.vm.Set("app", app); err != nil {
		return err
	}
	if err := e.vm.Set("numPages", dom.PageCount()); err != nil {
		return err
	}
	return e.vm.Set("getField", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		field, err := dom.Field(call.Arguments[0].String())
		if err != nil {
			return goja.Null()
		}
		return e.fieldObject(field)
	})
}

func (e *GojaEngine) fieldObject(field FieldProxy) goja.Value {
	obj := e.vm.NewObject()
	_ = obj.Set("name", field.Name())
	_ = obj.Set("type", field.Type())
	_ = obj.Set("page", field.Page())
	_ = obj.DefineAccessorProperty("value",
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(field.Value())
		}),
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				if err := field.SetValue(scriptString(call.Arguments[0])); err != nil {
					panic(e.vm.NewGoError(err))
				}
			}
			return goja.Undefined()
		}),
		goja.FLAG_TRUE,
		goja.FLAG_TRUE,
	)
	return obj
}

// scriptString renders a script value the way a form field stores it.
func scriptString(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	switch x := v.Export().(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "Yes"
		}
		return "Off"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
