package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomStore is the only owner of room state. Callers get detached copies or
// run a callback while holding the room exclusively; no *domain.Room may be
// retained after the callback returns.
type RoomStore interface {
	// Ensure returns a snapshot of the room, creating it when absent.
	Ensure(key domain.RoomKey) domain.Snapshot
	// Get resolves a slide by id, then index, then the current slide.
	Get(key domain.RoomKey, sel domain.SlideSelector) (domain.Slide, error)
	// View runs fn on an existing room without creating it; false when absent.
	View(key domain.RoomKey, fn func(*domain.Room)) bool
	// Mutate ensures the room and runs fn with exclusive access.
	Mutate(key domain.RoomKey, fn func(*domain.Room) error) error
	// Seed installs a restored room only if none exists yet.
	Seed(key domain.RoomKey, snap domain.Snapshot) bool
	AddParticipant(key domain.RoomKey, p domain.Participant)
	RemoveParticipant(key domain.RoomKey, conn domain.ConnID) (domain.Participant, int, bool)
	Exists(key domain.RoomKey) bool
	Evict(key domain.RoomKey) bool
	// EvictIf removes the room only if pred holds under the room lock.
	EvictIf(key domain.RoomKey, pred func(*domain.Room) bool) bool
	Keys() []domain.RoomKey
}

type roomEntry struct {
	mu      sync.Mutex
	room    *domain.Room
	evicted bool
}

// MemoryStore is a process wide in-memory RoomStore. The map lock only
// guards lookup and creation; each room has its own lock, so intents for
// different rooms never contend.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]*roomEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.RoomKey]*roomEntry)}
}

func (s *MemoryStore) lookup(key domain.RoomKey) (*roomEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[key]
	return e, ok
}

func (s *MemoryStore) getOrCreate(key domain.RoomKey) *roomEntry {
	if e, ok := s.lookup(key); ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.rooms[key]; ok {
		return e
	}
	e := &roomEntry{room: domain.NewRoom(key)}
	s.rooms[key] = e
	log.Info().Str("module", "core.store").Str("room", string(key)).Msg("room created")
	return e
}

// lock returns the live entry for key with its lock held. An entry evicted
// between lookup and lock is skipped and the lookup retried.
func (s *MemoryStore) lock(key domain.RoomKey, create bool) (*roomEntry, bool) {
	for {
		var e *roomEntry
		if create {
			e = s.getOrCreate(key)
		} else {
			var ok bool
			if e, ok = s.lookup(key); !ok {
				return nil, false
			}
		}
		e.mu.Lock()
		if !e.evicted {
			return e, true
		}
		e.mu.Unlock()
	}
}

func (s *MemoryStore) Ensure(key domain.RoomKey) domain.Snapshot {
	e, _ := s.lock(key, true)
	defer e.mu.Unlock()
	return e.room.Snapshot()
}

func (s *MemoryStore) Get(key domain.RoomKey, sel domain.SlideSelector) (domain.Slide, error) {
	e, _ := s.lock(key, true)
	defer e.mu.Unlock()
	slide, _, ok := e.room.Resolve(sel)
	if !ok {
		return domain.Slide{}, fmt.Errorf("%w: slide %s", ErrNotFound, describe(sel))
	}
	return slide.Clone(), nil
}

func (s *MemoryStore) View(key domain.RoomKey, fn func(*domain.Room)) bool {
	e, ok := s.lock(key, false)
	if !ok {
		return false
	}
	defer e.mu.Unlock()
	fn(e.room)
	return true
}

func (s *MemoryStore) Mutate(key domain.RoomKey, fn func(*domain.Room) error) error {
	e, _ := s.lock(key, true)
	defer e.mu.Unlock()
	return fn(e.room)
}

func (s *MemoryStore) Seed(key domain.RoomKey, snap domain.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[key]; ok {
		return false
	}
	s.rooms[key] = &roomEntry{room: domain.RoomFromSnapshot(key, snap)}
	log.Info().Str("module", "core.store").Str("room", string(key)).Int("slides", len(snap.Slides)).Msg("room restored")
	return true
}

func (s *MemoryStore) AddParticipant(key domain.RoomKey, p domain.Participant) {
	_ = s.Mutate(key, func(room *domain.Room) error {
		AddParticipant(room, p)
		return nil
	})
}

func (s *MemoryStore) RemoveParticipant(key domain.RoomKey, conn domain.ConnID) (domain.Participant, int, bool) {
	var (
		removed domain.Participant
		left    int
		found   bool
	)
	s.View(key, func(room *domain.Room) {
		removed, found = RemoveParticipant(room, conn)
		left = len(room.Participants)
	})
	return removed, left, found
}

func (s *MemoryStore) Exists(key domain.RoomKey) bool {
	_, ok := s.lookup(key)
	return ok
}

func (s *MemoryStore) Evict(key domain.RoomKey) bool {
	return s.EvictIf(key, nil)
}

// EvictIf takes the map lock before the room lock; nothing else acquires
// them in the opposite order.
func (s *MemoryStore) EvictIf(key domain.RoomKey, pred func(*domain.Room) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[key]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if pred != nil && !pred(e.room) {
		return false
	}
	e.evicted = true
	delete(s.rooms, key)
	log.Info().Str("module", "core.store").Str("room", string(key)).Msg("room evicted")
	return true
}

func (s *MemoryStore) Keys() []domain.RoomKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomKey, 0, len(s.rooms))
	for k := range s.rooms {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddParticipant registers p, dropping any stale row with the same
// connection first so a reconnect never leaves two rows.
func AddParticipant(room *domain.Room, p domain.Participant) {
	RemoveParticipant(room, p.ConnID)
	room.Participants = append(room.Participants, p)
}

func RemoveParticipant(room *domain.Room, conn domain.ConnID) (domain.Participant, bool) {
	for i, p := range room.Participants {
		if p.ConnID == conn {
			room.Participants = append(room.Participants[:i], room.Participants[i+1:]...)
			return p, true
		}
	}
	return domain.Participant{}, false
}

func describe(sel domain.SlideSelector) string {
	switch {
	case sel.ID != "":
		return fmt.Sprintf("id %q", sel.ID)
	case sel.Index != nil:
		return fmt.Sprintf("index %d", *sel.Index)
	default:
		return "current"
	}
}
