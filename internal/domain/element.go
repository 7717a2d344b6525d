package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ElementType string

const (
	ElementPencil    ElementType = "pencil"
	ElementEraser    ElementType = "eraser"
	ElementLine      ElementType = "line"
	ElementRectangle ElementType = "rectangle"
	ElementEllipse   ElementType = "ellipse"
	ElementText      ElementType = "text"
	ElementImage     ElementType = "image"
)

const DefaultImageSize = 200

var ErrElementNotObject = errors.New("element must be a JSON object")

// Element is an open record. Every field the client sent is kept verbatim as
// raw JSON, so fields this server does not know about survive a merge. Typed
// access goes through Attrs and the per-kind views below.
type Element struct {
	fields map[string]json.RawMessage
}

// NewElement builds an element from plain Go values. Mostly used server side
// (ingestion) and in tests.
func NewElement(values map[string]any) (Element, error) {
	el := Element{fields: make(map[string]json.RawMessage, len(values))}
	for k, v := range values {
		if err := el.Set(k, v); err != nil {
			return Element{}, err
		}
	}
	return el, nil
}

func (e Element) ID() string {
	raw, ok := e.fields["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// numeric ids are common with canvas libraries
	return strings.TrimSpace(string(raw))
}

func (e Element) Type() ElementType {
	var t string
	if raw, ok := e.fields["type"]; ok {
		_ = json.Unmarshal(raw, &t)
	}
	return ElementType(strings.ToLower(t))
}

func (e Element) Has(name string) bool {
	_, ok := e.fields[name]
	return ok
}

func (e Element) Field(name string) (json.RawMessage, bool) {
	raw, ok := e.fields[name]
	return raw, ok
}

// Number returns a numeric field; missing, null and non-numeric values report false.
func (e Element) Number(name string) (float64, bool) {
	raw, ok := e.fields[name]
	if !ok || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func (e *Element) Set(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("element field %q: %w", name, err)
	}
	if e.fields == nil {
		e.fields = make(map[string]json.RawMessage)
	}
	e.fields[name] = raw
	return nil
}

// Merge overwrites every field present in update and leaves the rest alone.
func (e *Element) Merge(update Element) {
	if e.fields == nil {
		e.fields = make(map[string]json.RawMessage, len(update.fields))
	}
	for k, v := range update.fields {
		e.fields[k] = v
	}
}

func (e Element) Clone() Element {
	out := Element{fields: make(map[string]json.RawMessage, len(e.fields))}
	for k, v := range e.fields {
		out.fields[k] = v
	}
	return out
}

// Equal compares field sets, ignoring insignificant whitespace in values.
func (e Element) Equal(other Element) bool {
	if len(e.fields) != len(other.fields) {
		return false
	}
	for k, v := range e.fields {
		w, ok := other.fields[k]
		if !ok || !rawEqual(v, w) {
			return false
		}
	}
	return true
}

// Keys returns the field names in sorted order.
func (e Element) Keys() []string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e Element) MarshalJSON() ([]byte, error) {
	if e.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.fields)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrElementNotObject
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	e.fields = fields
	return nil
}

func rawEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
