package core

import (
	"testing"

	"github.com/dkeye/Slideboard/internal/domain"
)

func mustElement(t *testing.T, values map[string]any) domain.Element {
	t.Helper()
	el, err := domain.NewElement(values)
	if err != nil {
		t.Fatalf("NewElement(%v): %v", values, err)
	}
	return el
}

func TestUpsertMergeKeepsUntouchedFields(t *testing.T) {
	slide := &domain.Slide{ID: "s"}
	UpsertElement(slide, mustElement(t, map[string]any{"id": "E", "type": "rectangle", "color": "blue", "x1": 5}))

	if inserted := UpsertElement(slide, mustElement(t, map[string]any{"id": "E", "color": "red"})); inserted {
		t.Fatal("second upsert should merge, not insert")
	}

	want := mustElement(t, map[string]any{"id": "E", "type": "rectangle", "color": "red", "x1": 5})
	if len(slide.Elements) != 1 || !slide.Elements[0].Equal(want) {
		t.Errorf("merge result: got %v", slide.Elements)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"pencil", map[string]any{
			"id": "S1", "type": "pencil",
			"points": []map[string]float64{{"x": 0, "y": 0, "t": 0}, {"x": 4, "y": 2, "t": 12}},
		}},
		{"image zero width", map[string]any{"id": "img", "type": "image", "src": "a.png", "width": 0, "height": 50}},
		{"image null height", map[string]any{"id": "img", "type": "image", "src": "a.png", "width": 10, "height": nil}},
		{"image without size", map[string]any{"id": "img", "type": "image", "src": "a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update := mustElement(t, tt.fields)

			once := &domain.Slide{ID: "s"}
			UpsertElement(once, update)

			twice := &domain.Slide{ID: "s"}
			UpsertElement(twice, update)
			UpsertElement(twice, update)

			if len(once.Elements) != len(twice.Elements) {
				t.Fatalf("element counts differ: %d vs %d", len(once.Elements), len(twice.Elements))
			}
			for i := range once.Elements {
				if !once.Elements[i].Equal(twice.Elements[i]) {
					t.Errorf("element %d differs after repeated upsert: %v vs %v", i, once.Elements[i], twice.Elements[i])
				}
			}
		})
	}
}

func TestUpsertImageDefaults(t *testing.T) {
	slide := &domain.Slide{ID: "s"}
	UpsertElement(slide, mustElement(t, map[string]any{"id": "img", "type": "image", "src": "https://cdn/x.png", "width": 640}))

	el := slide.Elements[0]
	if w, _ := el.Number("width"); w != 640 {
		t.Errorf("explicit width overwritten: got %v", w)
	}
	if h, _ := el.Number("height"); h != domain.DefaultImageSize {
		t.Errorf("height default: got %v, want %d", h, domain.DefaultImageSize)
	}
	attrs, err := el.Attrs()
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}
	img, ok := attrs.(domain.ImageAttrs)
	if !ok || img.Src != "https://cdn/x.png" {
		t.Errorf("image view: got %#v", attrs)
	}
}

func TestUpsertPreservesUnknownFields(t *testing.T) {
	slide := &domain.Slide{ID: "s"}
	UpsertElement(slide, mustElement(t, map[string]any{"id": "T", "type": "text", "text": "hi", "rotation": 45}))
	UpsertElement(slide, mustElement(t, map[string]any{"id": "T", "text": "hello", "opacity": 0.5}))

	ext := slide.Elements[0].Extensions()
	if _, ok := ext["rotation"]; !ok {
		t.Error("unknown field rotation lost on merge")
	}
	if _, ok := ext["opacity"]; !ok {
		t.Error("unknown field opacity not added on merge")
	}
	if _, ok := ext["text"]; ok {
		t.Error("known text field reported as extension")
	}
}

func TestReplaceAndRemoveElements(t *testing.T) {
	slide := &domain.Slide{ID: "s"}
	UpsertElement(slide, mustElement(t, map[string]any{"id": "a", "type": "text"}))

	ReplaceElements(slide, []domain.Element{
		mustElement(t, map[string]any{"id": "b", "type": "text"}),
		mustElement(t, map[string]any{"id": "c", "type": "text"}),
	})
	if len(slide.Elements) != 2 || slide.Elements[0].ID() != "b" {
		t.Fatalf("replace: got %d elements", len(slide.Elements))
	}

	if RemoveElement(slide, "a") {
		t.Error("RemoveElement(a) should report false after replace")
	}
	if !RemoveElement(slide, "b") {
		t.Error("RemoveElement(b) should report true")
	}
	if len(slide.Elements) != 1 || slide.Elements[0].ID() != "c" {
		t.Errorf("remaining elements: %v", slide.Elements)
	}
}

func TestTargetSlideFallsBackToCurrent(t *testing.T) {
	room := domain.NewRoom("R")
	slide, i, ok := TargetSlide(room, domain.ByID("ghost"))
	if !ok || i != 0 || slide.ID != domain.DefaultSlideID {
		t.Errorf("TargetSlide fallback: got %v %d %v", slide, i, ok)
	}
}
