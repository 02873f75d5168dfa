// Package contentstream models PDF content-stream operations: building them,
// serializing them, reading them back and tracing what they paint.
package contentstream

// Operand is a type-safe operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

// StringOperand holds already-encoded bytes; serialization escapes them.
type StringOperand struct{ Value []byte }

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand()     {}
func (ArrayOperand) Type() string { return "array" }

// Operation is one operator with its operands, in stream order.
type Operation struct {
	Operator string
	Operands []Operand
}

// Op builds an operation. Arguments may be float64, int, string (a name),
// []byte (a string), or an Operand.
func Op(operator string, args ...any) Operation {
	ops := make([]Operand, 0, len(args))
	for _, a := range args {
		ops = append(ops, toOperand(a))
	}
	return Operation{Operator: operator, Operands: ops}
}

func toOperand(a any) Operand {
	switch v := a.(type) {
	case Operand:
		return v
	case float64:
		return NumberOperand{Value: v}
	case int:
		return NumberOperand{Value: float64(v)}
	case string:
		return NameOperand{Value: v}
	case []byte:
		return StringOperand{Value: v}
	case []float64:
		arr := ArrayOperand{Values: make([]Operand, len(v))}
		for i, f := range v {
			arr.Values[i] = NumberOperand{Value: f}
		}
		return arr
	}
	panic("contentstream: unsupported operand type")
}

// Number returns the numeric value of the i-th operand, or 0.
func (o Operation) Number(i int) float64 {
	if i < len(o.Operands) {
		if n, ok := o.Operands[i].(NumberOperand); ok {
			return n.Value
		}
	}
	return 0
}

// Name returns the i-th operand when it is a name.
func (o Operation) Name(i int) string {
	if i < len(o.Operands) {
		if n, ok := o.Operands[i].(NameOperand); ok {
			return n.Value
		}
	}
	return ""
}

// Text returns the i-th operand when it is a string.
func (o Operation) Text(i int) []byte {
	if i < len(o.Operands) {
		if s, ok := o.Operands[i].(StringOperand); ok {
			return s.Value
		}
	}
	return nil
}
