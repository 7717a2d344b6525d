package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Slideboard/internal/codec"
	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/dkeye/Slideboard/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) join(ctx context.Context, cid domain.ConnID, in protocol.Join) error {
	uid, err := domain.ParseUserID(in.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	key := in.Room()
	if prev, _, ok := o.Registry.RoomOf(cid); ok && prev != key {
		o.leave(cid)
		log.Info().Str("module", "app.dispatch").Str("conn", string(cid)).Str("room", string(prev)).Msg("left previous room on join")
	}
	o.restore(ctx, key)

	p := domain.Participant{UserID: uid, ConnID: cid}
	return o.mutate(key, func(room *domain.Room) error {
		core.AddParticipant(room, p)
		o.Registry.BindRoom(cid, key, uid)
		o.sendTo(cid, protocol.RoomSnapshot(room.Snapshot()))
		o.publish(key, cid, ToOthers, protocol.ParticipantJoined(p))
		log.Info().Str("module", "app.dispatch").Str("room", string(key)).Str("user", string(uid)).
			Int("slides", len(room.Slides)).Msg("join")
		return nil
	})
}

// restore seeds a room that is not in memory from persistence. Failures
// only cost the saved state; the join proceeds with a fresh room.
func (o *Orchestrator) restore(ctx context.Context, key domain.RoomKey) {
	if o.Persistence == nil || o.Rooms.Exists(key) {
		return
	}
	snap, err := o.Persistence.Load(ctx, key)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return
	case err != nil:
		log.Warn().Err(err).Str("module", "app.dispatch").Str("room", string(key)).Msg("load saved room")
		return
	}
	o.Rooms.Seed(key, snap)
}

func (o *Orchestrator) disconnect(cid domain.ConnID) {
	o.leave(cid)
	o.Registry.Unbind(cid)
	if o.Uploads != nil {
		o.Uploads.DropOwner(cid)
	}
	if o.Limiter != nil {
		o.Limiter.Forget(string(cid))
	}
}

// leave removes cid from its room and tells the others.
func (o *Orchestrator) leave(cid domain.ConnID) {
	key, _, ok := o.Registry.RoomOf(cid)
	if !ok {
		return
	}
	var left int
	o.Rooms.View(key, func(room *domain.Room) {
		p, found := core.RemoveParticipant(room, cid)
		o.Registry.RemoveRoom(cid)
		left = len(room.Participants)
		if !found {
			return
		}
		// another tab of the same user keeps the user present
		if room.HasUser(p.UserID) {
			return
		}
		o.publish(key, cid, ToOthers, protocol.ParticipantLeft(p.UserID))
		o.publish(key, cid, ToOthers, protocol.CursorRemoved(p.UserID))
	})
	log.Info().Str("module", "app.dispatch").Str("room", string(key)).Str("conn", string(cid)).Int("left", left).Msg("leave")

	if left == 0 && o.Options.EvictEmpty {
		o.Rooms.EvictIf(key, func(room *domain.Room) bool { return len(room.Participants) == 0 })
	}
}

func (o *Orchestrator) createSlide(cid domain.ConnID, in protocol.CreateSlide) error {
	return o.mutate(in.Room(), func(room *domain.Room) error {
		slide := core.CreateSlide(room, in.Title)
		o.publish(room.Key, cid, ToEveryone, protocol.SlideCreated(slide, room.CurrentSlide))
		return nil
	})
}

// deleteSlide never leaves a room without slides: removing the last one
// recreates the default slide and announces it right after the deletion.
func (o *Orchestrator) deleteSlide(cid domain.ConnID, in protocol.DeleteSlide) error {
	return o.mutate(in.Room(), func(room *domain.Room) error {
		if !core.DeleteSlide(room, in.SlideID) {
			return fmt.Errorf("%w: slide %q", core.ErrNotFound, in.SlideID)
		}
		recreated, ok := core.EnsureSlide(room)
		if ok {
			o.publish(room.Key, cid, ToEveryone, protocol.SlideDeleted(in.SlideID, 0))
			o.publish(room.Key, cid, ToEveryone, protocol.SlideCreated(recreated, room.CurrentSlide))
			return nil
		}
		o.publish(room.Key, cid, ToEveryone, protocol.SlideDeleted(in.SlideID, room.CurrentSlide))
		return nil
	})
}

func (o *Orchestrator) renameSlide(cid domain.ConnID, in protocol.RenameSlide) error {
	return o.mutate(in.Room(), func(room *domain.Room) error {
		if err := core.RenameSlide(room, in.SlideID, in.Title); err != nil {
			return err
		}
		o.publish(room.Key, cid, ToEveryone, protocol.SlideRenamed(in.SlideID, in.Title))
		return nil
	})
}

func (o *Orchestrator) switchSlide(cid domain.ConnID, in protocol.SwitchSlide) error {
	return o.mutate(in.Room(), func(room *domain.Room) error {
		cur := core.SwitchSlide(room, in.Selector())
		o.publish(room.Key, cid, ToEveryone, protocol.SlideSwitched(cur, room.Slides[cur].Clone()))
		return nil
	})
}

// upsertElement applies a single element update and echoes it to the other
// participants exactly as received. A compressed payload that cannot be
// decoded is still forwarded; only the server copy misses the update.
func (o *Orchestrator) upsertElement(cid domain.ConnID, in protocol.UpsertElement) error {
	el := in.ElementData
	if el == nil {
		var decoded domain.Element
		if err := codec.Decompress(in.Compressed, &decoded); err != nil {
			log.Warn().Err(fmt.Errorf("%w: %v", core.ErrDecode, err)).Str("module", "app.dispatch").
				Str("room", string(in.Room())).Msg("compressed element skipped, forwarding raw")
		} else if decoded.ID() == "" {
			log.Warn().Str("module", "app.dispatch").Str("room", string(in.Room())).Msg("compressed element without id skipped")
		} else {
			el = &decoded
		}
	}
	return o.mutate(in.Room(), func(room *domain.Room) error {
		if el != nil {
			slide, _, _ := core.TargetSlide(room, in.Selector())
			core.UpsertElement(slide, *el)
		}
		o.publish(room.Key, cid, ToOthers, protocol.ElementUpdated(in.ElementData, in.Compressed, in.Target))
		return nil
	})
}

func (o *Orchestrator) replaceElements(cid domain.ConnID, in protocol.ReplaceElements) error {
	elements := in.Elements
	decodeFailed := false
	if len(in.Compressed) > 0 {
		if err := codec.Decompress(in.Compressed, &elements); err != nil {
			log.Warn().Err(fmt.Errorf("%w: %v", core.ErrDecode, err)).Str("module", "app.dispatch").
				Str("room", string(in.Room())).Msg("compressed elements skipped, forwarding raw")
			decodeFailed = true
		}
	}
	return o.mutate(in.Room(), func(room *domain.Room) error {
		slide, _, _ := core.TargetSlide(room, in.Selector())
		if decodeFailed {
			o.publish(room.Key, cid, ToOthers, protocol.ElementsUpdated(in.Compressed, slide.ID))
			return nil
		}
		core.ReplaceElements(slide, elements)
		compressed, err := codec.Compress(slide.Elements)
		if err != nil {
			return fmt.Errorf("compress elements: %w", err)
		}
		o.publish(room.Key, cid, ToOthers, protocol.ElementsUpdated(compressed, slide.ID))
		return nil
	})
}

func (o *Orchestrator) removeElement(cid domain.ConnID, in protocol.RemoveElement) error {
	return o.mutate(in.Room(), func(room *domain.Room) error {
		slide, _, ok := room.Resolve(in.Selector())
		if !ok {
			return fmt.Errorf("%w: slide for element %q", core.ErrNotFound, in.ElementID)
		}
		if !core.RemoveElement(slide, string(in.ElementID)) {
			log.Debug().Str("module", "app.dispatch").Str("room", string(room.Key)).Str("element", string(in.ElementID)).Msg("element already gone")
			return nil
		}
		o.publish(room.Key, cid, ToEveryone, protocol.ElementRemoved(string(in.ElementID), in.Target))
		return nil
	})
}

func (o *Orchestrator) clear(cid domain.ConnID, in protocol.ClearBoard) error {
	scope := core.ClearScope(in.ScopeOrDefault())
	return o.mutate(in.Room(), func(room *domain.Room) error {
		id, err := core.Clear(room, scope, in.Selector())
		if err != nil {
			return err
		}
		o.publish(room.Key, cid, ToEveryone, protocol.Cleared(string(scope), id))
		return nil
	})
}
