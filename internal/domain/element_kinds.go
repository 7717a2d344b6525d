package domain

import (
	"encoding/json"
)

// Point is one sample of a freehand stroke. T is relative to the start of
// the recording.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t,omitempty"`
}

// Attrs is the typed view of an element. The concrete type follows the
// element discriminant; unknown discriminants have no typed view.
type Attrs interface {
	kind() ElementType
}

type StrokeAttrs struct {
	Points      []Point `json:"points"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	StartTime   float64 `json:"startTime,omitempty"`
}

type ShapeAttrs struct {
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        bool    `json:"fill,omitempty"`
	FillStyle   string  `json:"fillStyle,omitempty"`
}

type TextAttrs struct {
	Text  string  `json:"text"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color,omitempty"`
}

type ImageAttrs struct {
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
}

func (StrokeAttrs) kind() ElementType { return ElementPencil }
func (ShapeAttrs) kind() ElementType  { return ElementRectangle }
func (TextAttrs) kind() ElementType   { return ElementText }
func (ImageAttrs) kind() ElementType  { return ElementImage }

var knownFields = map[ElementType][]string{
	ElementPencil:    {"points", "color", "strokeWidth", "startTime"},
	ElementEraser:    {"points", "color", "strokeWidth", "startTime"},
	ElementLine:      {"x1", "y1", "x2", "y2", "color", "strokeWidth", "fill", "fillStyle", "startTime"},
	ElementRectangle: {"x1", "y1", "x2", "y2", "color", "strokeWidth", "fill", "fillStyle", "startTime"},
	ElementEllipse:   {"x1", "y1", "x2", "y2", "color", "strokeWidth", "fill", "fillStyle", "startTime"},
	ElementText:      {"text", "x1", "y1", "color", "startTime"},
	ElementImage:     {"src", "width", "height", "x1", "y1", "startTime"},
}

// Attrs decodes the typed view for the element's discriminant. A nil Attrs
// with a nil error means the type is not one this server models.
func (e Element) Attrs() (Attrs, error) {
	var target Attrs
	switch e.Type() {
	case ElementPencil, ElementEraser:
		target = &StrokeAttrs{}
	case ElementLine, ElementRectangle, ElementEllipse:
		target = &ShapeAttrs{}
	case ElementText:
		target = &TextAttrs{}
	case ElementImage:
		target = &ImageAttrs{}
	default:
		return nil, nil
	}
	raw, err := json.Marshal(e.fields)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, err
	}
	switch a := target.(type) {
	case *StrokeAttrs:
		return *a, nil
	case *ShapeAttrs:
		return *a, nil
	case *TextAttrs:
		return *a, nil
	case *ImageAttrs:
		return *a, nil
	}
	return nil, nil
}

// Extensions returns the fields outside id, type and the known attribute set
// of the element's discriminant.
func (e Element) Extensions() map[string]json.RawMessage {
	known := map[string]struct{}{"id": {}, "type": {}}
	for _, f := range knownFields[e.Type()] {
		known[f] = struct{}{}
	}
	out := make(map[string]json.RawMessage)
	for k, v := range e.fields {
		if _, ok := known[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// WithDefaults fills type specific defaults for a newly inserted element.
// Images that carry no width or height key get DefaultImageSize. An explicit
// value, zero included, is kept so a repeated upsert merges to the same state.
func (e Element) WithDefaults() Element {
	out := e.Clone()
	if out.Type() != ElementImage {
		return out
	}
	for _, dim := range []string{"width", "height"} {
		if !out.Has(dim) {
			_ = out.Set(dim, DefaultImageSize)
		}
	}
	return out
}
