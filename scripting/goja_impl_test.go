package scripting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/layer"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

type fakeBatcher struct {
	state   layer.State
	batches int
}

func (b *fakeBatcher) PageCount() int { return 2 }

func (b *fakeBatcher) Apply(batch func(layer.State) (layer.State, error)) (bool, error) {
	next, err := batch(b.state)
	if err != nil {
		return false, err
	}
	changed := !next.Same(b.state)
	b.state = next
	if changed {
		b.batches++
	}
	return changed, nil
}

func formState(t *testing.T) layer.State {
	t.Helper()
	qty := layer.NewField("qty", 1, layer.FieldText, geo.Rect{Width: 50, Height: 12})
	qty.Value = "3"
	price := layer.NewField("price", 1, layer.FieldText, geo.Rect{Y: 20, Width: 50, Height: 12})
	price.Value = "2.5"
	total := layer.NewField("total", 1, layer.FieldText, geo.Rect{Y: 40, Width: 50, Height: 12})
	agree := layer.NewField("agree", 2, layer.FieldCheckbox, geo.Rect{Width: 10, Height: 10})
	radio := func(opt string) layer.FormField {
		f := layer.NewField("size", 2, layer.FieldRadio, geo.Rect{Y: 20, Width: 10, Height: 10})
		f.Options, f.RadioGroup = []string{opt}, "size"
		return f
	}
	fields, err := layer.NewFields(qty, price, total, agree, radio("S"), radio("L"))
	if err != nil {
		t.Fatal(err)
	}
	return layer.State{Items: &layer.Items{}, Fields: fields}
}

func value(t *testing.T, st layer.State, name string) string {
	t.Helper()
	f, ok := st.Fields.ByName(name)
	if !ok {
		t.Fatalf("no field %q", name)
	}
	return f.Value
}

func TestRunnerCalculatesInOneBatch(t *testing.T) {
	b := &fakeBatcher{state: formState(t)}
	script := `
		getField("total").value = getField("qty").value * getField("price").value;
		getField("agree").value = true;
		getField("size").value = "L";
		app.alert("pages " + numPages);
		getField("size").value;
	`
	res, err := NewRunner().Run(context.Background(), b, script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Changed || b.batches != 1 {
		t.Fatalf("changed=%v batches=%d", res.Changed, b.batches)
	}
	if res.Value != "L" || len(res.Alerts) != 1 || res.Alerts[0] != "pages 2" {
		t.Fatalf("result = %+v", res)
	}
	if got := value(t, b.state, "total"); got != "7.5" {
		t.Errorf("total = %q", got)
	}
	if got := value(t, b.state, "agree"); got != "Yes" {
		t.Errorf("agree = %q", got)
	}
	group := b.state.Fields.Group("size")
	if group[0].Selected() || !group[1].Selected() {
		t.Errorf("size group = %+v", group)
	}
}

func TestRunnerFailureLeavesFieldsUntouched(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"bad radio value", `getField("total").value = "x"; getField("size").value = "XL";`, ErrInvalidValue},
		{"syntax", `getField("total").value = ;`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := formState(t)
			b := &fakeBatcher{state: st}
			_, err := NewRunner().Run(context.Background(), b, tt.script)
			if err == nil || (tt.want != nil && !errors.Is(err, tt.want)) {
				t.Fatalf("Run = %v, want %v", err, tt.want)
			}
			if b.batches != 0 || value(t, b.state, "total") != "" {
				t.Fatalf("state changed after failed script")
			}
		})
	}
}

func TestUnknownFieldIsNull(t *testing.T) {
	b := &fakeBatcher{state: formState(t)}
	res, err := NewRunner().Run(context.Background(), b, `getField("nope") === null`)
	if err != nil || res.Value != true || res.Changed {
		t.Fatalf("Run = %+v, %v", res, err)
	}
}
