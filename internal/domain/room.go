package domain

const (
	DefaultSlideID    = "slide-1"
	DefaultSlideTitle = "Slide 1"
)

type Slide struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

// Clone returns a deep copy safe to hand out of the store.
func (s *Slide) Clone() Slide {
	out := Slide{ID: s.ID, Title: s.Title, Elements: make([]Element, len(s.Elements))}
	for i, el := range s.Elements {
		out.Elements[i] = el.Clone()
	}
	return out
}

// SlideSelector addresses a slide by id or by index. With neither set the
// room's current slide is used.
type SlideSelector struct {
	ID    string
	Index *int
}

func ByID(id string) SlideSelector   { return SlideSelector{ID: id} }
func ByIndex(i int) SlideSelector    { return SlideSelector{Index: &i} }
func (s SlideSelector) IsZero() bool { return s.ID == "" && s.Index == nil }

// Room is the synchronization unit. It is only ever touched through the
// session store, which serializes access.
type Room struct {
	Key          RoomKey
	Slides       []*Slide
	CurrentSlide int
	Participants []Participant
}

// NewRoom returns a room with a single default slide focused.
func NewRoom(key RoomKey) *Room {
	return &Room{
		Key:    key,
		Slides: []*Slide{{ID: DefaultSlideID, Title: DefaultSlideTitle, Elements: []Element{}}},
	}
}

// SlideIndex returns the index of the slide with the given id or -1.
func (r *Room) SlideIndex(id string) int {
	for i, s := range r.Slides {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Resolve finds the slide addressed by sel: exact id first, then a
// bounds-checked index, then the current slide.
func (r *Room) Resolve(sel SlideSelector) (*Slide, int, bool) {
	switch {
	case sel.ID != "":
		if i := r.SlideIndex(sel.ID); i >= 0 {
			return r.Slides[i], i, true
		}
		return nil, -1, false
	case sel.Index != nil:
		i := *sel.Index
		if i >= 0 && i < len(r.Slides) {
			return r.Slides[i], i, true
		}
		return nil, -1, false
	default:
		if r.CurrentSlide >= 0 && r.CurrentSlide < len(r.Slides) {
			return r.Slides[r.CurrentSlide], r.CurrentSlide, true
		}
		return nil, -1, false
	}
}

// Users is the distinct set of user ids on the roster, in join order.
func (r *Room) Users() []UserID {
	seen := make(map[UserID]struct{}, len(r.Participants))
	out := make([]UserID, 0, len(r.Participants))
	for _, p := range r.Participants {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p.UserID)
	}
	return out
}

// HasUser reports whether any connection of uid is still on the roster.
func (r *Room) HasUser(uid UserID) bool {
	for _, p := range r.Participants {
		if p.UserID == uid {
			return true
		}
	}
	return false
}

// Snapshot is the full, detached state of a room as sent to a joining client
// and handed to persistence.
type Snapshot struct {
	Slides       []Slide  `json:"slides"`
	CurrentSlide int      `json:"currentSlide"`
	Users        []UserID `json:"users"`
}

func (r *Room) Snapshot() Snapshot {
	out := Snapshot{
		Slides:       make([]Slide, len(r.Slides)),
		CurrentSlide: r.CurrentSlide,
		Users:        r.Users(),
	}
	for i, s := range r.Slides {
		out.Slides[i] = s.Clone()
	}
	return out
}

// RoomFromSnapshot rebuilds room state from a persisted snapshot. The roster
// is never restored; participants are live connections only.
func RoomFromSnapshot(key RoomKey, snap Snapshot) *Room {
	room := &Room{Key: key, CurrentSlide: snap.CurrentSlide}
	for _, s := range snap.Slides {
		c := s.Clone()
		room.Slides = append(room.Slides, &c)
	}
	if len(room.Slides) == 0 {
		return NewRoom(key)
	}
	if room.CurrentSlide < 0 || room.CurrentSlide >= len(room.Slides) {
		room.CurrentSlide = 0
	}
	return room
}
