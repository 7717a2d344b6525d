package app

import (
	"sort"
	"testing"

	"github.com/dkeye/Slideboard/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	var canceled bool
	sig := &fakeConn{}

	if r.BindRoom("c1", "R", "U") {
		t.Fatal("BindRoom must fail before BindSignal")
	}
	r.BindSignal("c1", sig, func() { canceled = true })
	if _, _, ok := r.RoomOf("c1"); ok {
		t.Error("fresh connection has no room")
	}
	if !r.BindRoom("c1", "R", "U") {
		t.Fatal("BindRoom after BindSignal")
	}
	room, uid, ok := r.RoomOf("c1")
	if !ok || room != "R" || uid != "U" {
		t.Errorf("RoomOf: %s %s %v", room, uid, ok)
	}

	r.RemoveRoom("c1")
	if _, _, ok := r.RoomOf("c1"); ok {
		t.Error("RemoveRoom should clear the room")
	}
	if _, ok := r.Signal("c1"); !ok {
		t.Error("RemoveRoom must keep the signal")
	}

	if !r.Cancel("c1") || !canceled {
		t.Error("Cancel should invoke the cancel func")
	}
	r.Unbind("c1")
	if r.Cancel("c1") {
		t.Error("Cancel after Unbind")
	}
}

func TestRegistryMembersOfRoom(t *testing.T) {
	r := NewRegistry()
	for _, b := range []struct {
		cid  domain.ConnID
		room domain.RoomKey
	}{{"a", "R1"}, {"b", "R1"}, {"c", "R2"}, {"d", ""}} {
		r.BindSignal(b.cid, &fakeConn{}, nil)
		if b.room != "" {
			r.BindRoom(b.cid, b.room, domain.UserID("u-"+b.cid))
		}
	}

	var got []string
	for _, m := range r.MembersOfRoom("R1") {
		got = append(got, string(m.Conn)+"/"+string(m.User))
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a/u-a" || got[1] != "b/u-b" {
		t.Errorf("members of R1: %v", got)
	}
	if len(r.MembersOfRoom("nowhere")) != 0 {
		t.Error("unknown room has members")
	}
}
