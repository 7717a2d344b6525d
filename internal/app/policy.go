package app

import "github.com/dkeye/Slideboard/internal/domain"

type BackpressureAction int

const (
	// DropFrame loses the frame for that member and keeps the connection.
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomKey, member Member) BackpressureAction
}

// SimplePolicy disconnects slow clients. A rejoin gets a fresh snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomKey, Member) BackpressureAction {
	return KickMember
}
