package app

import (
	"context"
	"sync"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room   domain.RoomKey
	User   domain.UserID
	Signal core.SignalConnection
	Cancel context.CancelFunc
}

// Member is a point-in-time view of one bound connection.
type Member struct {
	Conn   domain.ConnID
	User   domain.UserID
	Signal core.SignalConnection
}

// Registry maps live connections to the room and user they joined as. It
// never calls into the room store, so it is safe to read while a room lock
// is held.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.ConnID]*sessionEntry)}
}

func (r *Registry) BindSignal(cid domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[cid] = &sessionEntry{Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("bound signal")
}

// BindRoom records which room and user a connection joined as.
func (r *Registry) BindRoom(cid domain.ConnID, room domain.RoomKey, uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[cid]
	if !ok {
		return false
	}
	e.Room, e.User = room, uid
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("room", string(room)).Str("user", string(uid)).Msg("bound room")
	return true
}

func (r *Registry) RemoveRoom(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[cid]; ok {
		e.Room = ""
	}
}

func (r *Registry) Signal(cid domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[cid]; ok {
		return e.Signal, true
	}
	return nil, false
}

// RoomOf returns the joined room and user; ok is false before join.
func (r *Registry) RoomOf(cid domain.ConnID) (domain.RoomKey, domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[cid]
	if !ok || e.Room == "" {
		return "", "", false
	}
	return e.Room, e.User, true
}

func (r *Registry) Unbind(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, cid)
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("unbind session")
}

func (r *Registry) MembersOfRoom(room domain.RoomKey) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, 0, len(r.sessions))
	for cid, e := range r.sessions {
		if e.Room == room {
			out = append(out, Member{Conn: cid, User: e.User, Signal: e.Signal})
		}
	}
	return out
}

// Cancel stops the connection's pumps. The transport observes the context
// and runs the disconnect path itself.
func (r *Registry) Cancel(cid domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("canceled session")
	return true
}
