package core

import (
	"fmt"

	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/segmentio/ksuid"
)

type ClearScope string

const (
	ClearCurrent ClearScope = "current"
	ClearAll     ClearScope = "all"
)

// NewSlideID generates slide ids. KSUIDs sort by creation time and carry
// enough randomness that two rooms never collide.
var NewSlideID = func() string { return "slide-" + ksuid.New().String() }

func freshSlideID(room *domain.Room) string {
	for {
		id := NewSlideID()
		if room.SlideIndex(id) < 0 {
			return id
		}
	}
}

// CreateSlide appends a slide and focuses it. An empty title becomes
// "Slide n" where n is the new slide count.
func CreateSlide(room *domain.Room, title string) domain.Slide {
	if title == "" {
		title = fmt.Sprintf("Slide %d", len(room.Slides)+1)
	}
	slide := &domain.Slide{ID: freshSlideID(room), Title: title, Elements: []domain.Element{}}
	room.Slides = append(room.Slides, slide)
	room.CurrentSlide = len(room.Slides) - 1
	return slide.Clone()
}

// AppendSlide adds a prepared slide, assigning an id when missing, and
// focuses it.
func AppendSlide(room *domain.Room, slide domain.Slide) domain.Slide {
	if slide.ID == "" || room.SlideIndex(slide.ID) >= 0 {
		slide.ID = freshSlideID(room)
	}
	if slide.Title == "" {
		slide.Title = fmt.Sprintf("Slide %d", len(room.Slides)+1)
	}
	if slide.Elements == nil {
		slide.Elements = []domain.Element{}
	}
	s := slide.Clone()
	room.Slides = append(room.Slides, &s)
	room.CurrentSlide = len(room.Slides) - 1
	return s.Clone()
}

// DeleteSlide removes the slide with id and clamps the current index. It may
// leave the room with zero slides; EnsureSlide restores the invariant.
func DeleteSlide(room *domain.Room, id string) bool {
	i := room.SlideIndex(id)
	if i < 0 {
		return false
	}
	room.Slides = append(room.Slides[:i], room.Slides[i+1:]...)
	if room.CurrentSlide >= len(room.Slides) {
		room.CurrentSlide = max(0, len(room.Slides)-1)
	}
	return true
}

// EnsureSlide recreates a default slide when the room has none.
func EnsureSlide(room *domain.Room) (domain.Slide, bool) {
	if len(room.Slides) > 0 {
		return domain.Slide{}, false
	}
	return CreateSlide(room, domain.DefaultSlideTitle), true
}

func RenameSlide(room *domain.Room, id, title string) error {
	i := room.SlideIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: slide %q", ErrNotFound, id)
	}
	room.Slides[i].Title = title
	return nil
}

// SwitchSlide moves focus to the addressed slide. An index takes precedence
// over an id; a target that does not resolve leaves focus unchanged.
func SwitchSlide(room *domain.Room, sel domain.SlideSelector) int {
	switch {
	case sel.Index != nil:
		if i := *sel.Index; i >= 0 && i < len(room.Slides) {
			room.CurrentSlide = i
		}
	case sel.ID != "":
		if i := room.SlideIndex(sel.ID); i >= 0 {
			room.CurrentSlide = i
		}
	}
	return room.CurrentSlide
}

// Clear empties the addressed slide, or every slide for ClearAll. The
// cleared slide id is returned for ClearCurrent.
func Clear(room *domain.Room, scope ClearScope, sel domain.SlideSelector) (string, error) {
	switch scope {
	case ClearAll:
		for _, s := range room.Slides {
			s.Elements = []domain.Element{}
		}
		return "", nil
	case ClearCurrent, "":
		slide, _, ok := room.Resolve(sel)
		if !ok {
			return "", fmt.Errorf("%w: slide %s", ErrNotFound, describe(sel))
		}
		slide.Elements = []domain.Element{}
		return slide.ID, nil
	default:
		return "", fmt.Errorf("%w: unknown clear scope %q", ErrValidation, scope)
	}
}
