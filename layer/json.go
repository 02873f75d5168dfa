package layer

import (
	"encoding/json"
	"fmt"
	"io"
)

type itemJSON struct {
	ID     string          `json:"id"`
	Kind   Kind            `json:"kind"`
	Page   int             `json:"page"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Height float64         `json:"height"`
	Body   json.RawMessage `json:"body"`
}

// MarshalJSON writes the item with its kind discriminant next to the payload.
func (it Item) MarshalJSON() ([]byte, error) {
	if it.Body == nil {
		return nil, fmt.Errorf("%w: missing body", ErrInvalidItem)
	}
	body, err := json.Marshal(it.Body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(itemJSON{
		ID: it.ID, Kind: it.Body.Kind(), Page: it.Page,
		X: it.X, Y: it.Y, Width: it.Width, Height: it.Height,
		Body: body,
	})
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var body Body
	switch raw.Kind {
	case KindText:
		var b TextBody
		if err := json.Unmarshal(raw.Body, &b); err != nil {
			return fmt.Errorf("text body: %w", err)
		}
		body = b
	case KindShape:
		var b ShapeBody
		if err := json.Unmarshal(raw.Body, &b); err != nil {
			return fmt.Errorf("shape body: %w", err)
		}
		body = b
	case KindRedaction:
		b := RedactionBody{Color: White}
		if len(raw.Body) > 0 && string(raw.Body) != "null" {
			if err := json.Unmarshal(raw.Body, &b); err != nil {
				return fmt.Errorf("redaction body: %w", err)
			}
		}
		body = b
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, raw.Kind)
	}
	*it = Item{ID: raw.ID, Page: raw.Page, X: raw.X, Y: raw.Y, Width: raw.Width, Height: raw.Height, Body: body}
	return nil
}

type stateJSON struct {
	Items  []Item      `json:"items"`
	Fields []FormField `json:"fields,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{Items: s.Items.All(), Fields: s.Fields.All()}
	if out.Items == nil {
		out.Items = []Item{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a state. Missing ids are assigned.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i := range raw.Items {
		if raw.Items[i].ID == "" {
			raw.Items[i].ID = NewID()
		}
	}
	for i := range raw.Fields {
		if raw.Fields[i].ID == "" {
			raw.Fields[i].ID = NewID()
		}
	}
	items, err := NewItems(raw.Items...)
	if err != nil {
		return err
	}
	fields, err := NewFields(raw.Fields...)
	if err != nil {
		return err
	}
	*s = State{Items: items, Fields: fields}
	return nil
}

// ReadState decodes an edit file.
func ReadState(r io.Reader) (State, error) {
	var s State
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return State{}, fmt.Errorf("decode edits: %w", err)
	}
	return s, nil
}

// WriteState encodes s as an indented edit file.
func WriteState(w io.Writer, s State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
