package core

import (
	"github.com/dkeye/Slideboard/internal/domain"
)

// TargetSlide resolves sel and falls back to the current slide when the
// selector does not match, the way element intents address slides.
func TargetSlide(room *domain.Room, sel domain.SlideSelector) (*domain.Slide, int, bool) {
	if slide, i, ok := room.Resolve(sel); ok {
		return slide, i, true
	}
	return room.Resolve(domain.SlideSelector{})
}

// UpsertElement appends el when its id is new (with type defaults filled) or
// merges it field by field into the stored element. The incoming value wins
// for every field it carries. Reports whether a new element was inserted.
func UpsertElement(slide *domain.Slide, el domain.Element) bool {
	id := el.ID()
	for i := range slide.Elements {
		if slide.Elements[i].ID() == id {
			slide.Elements[i].Merge(el)
			return false
		}
	}
	slide.Elements = append(slide.Elements, el.WithDefaults())
	return true
}

// ReplaceElements swaps the whole element sequence; no merge.
func ReplaceElements(slide *domain.Slide, els []domain.Element) {
	out := make([]domain.Element, len(els))
	for i, el := range els {
		out[i] = el.Clone()
	}
	slide.Elements = out
}

func RemoveElement(slide *domain.Slide, id string) bool {
	kept := slide.Elements[:0]
	removed := false
	for _, el := range slide.Elements {
		if el.ID() == id {
			removed = true
			continue
		}
		kept = append(kept, el)
	}
	slide.Elements = kept
	return removed
}
