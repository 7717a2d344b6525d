package app

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Slideboard/internal/app/ingest"
	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/dkeye/Slideboard/internal/protocol"
	"github.com/dkeye/Slideboard/internal/upload"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Audience selects who receives an outbound event.
type Audience int

const (
	ToSender Audience = iota
	ToOthers
	ToEveryone
)

func (a Audience) String() string {
	switch a {
	case ToSender:
		return "sender"
	case ToOthers:
		return "others"
	default:
		return "everyone"
	}
}

// Ingestor runs the asset pipeline for a completed upload.
type Ingestor interface {
	Run(ctx context.Context, asset upload.Asset) ingest.Report
}

type Options struct {
	// EvictEmpty drops a room from memory when its last participant leaves.
	EvictEmpty bool
	// AnswerTimeout bounds one get-definition round trip.
	AnswerTimeout time.Duration
}

// Orchestrator is the synchronization dispatcher: it applies one intent at
// a time per room and fans the resulting event out while still holding the
// room, so every peer observes events in mutation order.
type Orchestrator struct {
	Registry    *Registry
	Rooms       core.RoomStore
	Policy      Policy
	Uploads     *upload.Assembler
	Ingest      Ingestor
	Persistence core.Persistence
	Answerer    core.Answerer
	Limiter     *RateLimiter
	Options     Options

	tasks conc.WaitGroup
}

// HandleFrame decodes one inbound frame and dispatches it. Decoding errors
// are reported to the sender only.
func (o *Orchestrator) HandleFrame(ctx context.Context, cid domain.ConnID, data []byte) {
	in, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatch").Str("conn", string(cid)).Msg("rejected frame")
		o.sendTo(cid, protocol.Error(err, ""))
		return
	}
	o.Dispatch(ctx, cid, in)
}

// Dispatch applies one intent on behalf of connection cid.
func (o *Orchestrator) Dispatch(ctx context.Context, cid domain.ConnID, in protocol.Intent) {
	var err error
	switch v := in.(type) {
	case protocol.Join:
		err = o.join(ctx, cid, v)
	case protocol.CreateSlide:
		err = o.createSlide(cid, v)
	case protocol.DeleteSlide:
		err = o.deleteSlide(cid, v)
	case protocol.RenameSlide:
		err = o.renameSlide(cid, v)
	case protocol.SwitchSlide:
		err = o.switchSlide(cid, v)
	case protocol.UpsertElement:
		err = o.upsertElement(cid, v)
	case protocol.ReplaceElements:
		err = o.replaceElements(cid, v)
	case protocol.RemoveElement:
		err = o.removeElement(cid, v)
	case protocol.ClearBoard:
		err = o.clear(cid, v)
	case protocol.MoveCursor:
		o.moveCursor(cid, v)
	case protocol.RemoveCursor:
		o.removeCursor(cid, v)
	case protocol.UploadChunk:
		err = o.uploadChunk(ctx, cid, v)
	case protocol.Save:
		o.save(ctx, cid, v)
	case protocol.ShareFile:
		o.shareFile(cid, v)
	case protocol.ShareWebsite:
		o.shareWebsite(cid, v)
	case protocol.CloseWebsite:
		o.closeWebsite(cid, v)
	case protocol.SendMessage:
		o.publish(v.Room(), cid, ToOthers, protocol.Message(v.CompressedMessage))
	case protocol.PostQuiz:
		o.publish(v.Room(), cid, ToOthers, protocol.Quiz(v))
	case protocol.GetDefinition:
		err = o.getDefinition(ctx, cid, v)
	case protocol.Ping:
		o.sendTo(cid, protocol.Pong())
	case protocol.Disconnect:
		o.disconnect(cid)
	default:
		err = errors.New("unhandled intent")
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatch").Str("conn", string(cid)).
			Str("room", string(in.Room())).Str("intent", in.Kind()).Msg("intent rejected")
		o.sendTo(cid, protocol.Error(err, in.Kind()))
	}
}

// OnDisconnect runs the disconnect intent for a closed transport.
func (o *Orchestrator) OnDisconnect(cid domain.ConnID) {
	o.Dispatch(context.Background(), cid, protocol.Disconnect{})
}

// Wait blocks until background work (ingestion, answers) has finished.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

// publish encodes ev once and enqueues it for the audience. It never
// blocks: a full queue is handed to the backpressure policy.
func (o *Orchestrator) publish(room domain.RoomKey, from domain.ConnID, aud Audience, ev protocol.Event) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatch").Str("event", ev.Kind()).Msg("encode event")
		return
	}
	var targets []Member
	if aud == ToSender {
		if sig, ok := o.Registry.Signal(from); ok {
			targets = []Member{{Conn: from, Signal: sig}}
		}
	} else {
		for _, m := range o.Registry.MembersOfRoom(room) {
			if aud == ToOthers && m.Conn == from {
				continue
			}
			targets = append(targets, m)
		}
	}
	for _, m := range targets {
		if err := m.Signal.TrySend(frame); err != nil {
			o.onSendFailure(room, m, err)
		}
	}
	log.Debug().Str("module", "app.dispatch").Str("room", string(room)).Str("event", ev.Kind()).
		Str("audience", aud.String()).Int("targets", len(targets)).Msg("published")
}

func (o *Orchestrator) sendTo(cid domain.ConnID, ev protocol.Event) {
	o.publish("", cid, ToSender, ev)
}

func (o *Orchestrator) onSendFailure(room domain.RoomKey, m Member, err error) {
	log.Warn().Err(err).Str("module", "app.dispatch").Str("room", string(room)).Str("conn", string(m.Conn)).Msg("send failed")
	if o.Policy == nil {
		return
	}
	if o.Policy.OnBackPressure(room, m) == KickMember {
		o.Registry.Cancel(m.Conn)
	}
}

// mutate runs fn against the intent's room under its lock.
func (o *Orchestrator) mutate(room domain.RoomKey, fn func(*domain.Room) error) error {
	return o.Rooms.Mutate(room, fn)
}

// userOf returns the user the connection joined as, if any.
func (o *Orchestrator) userOf(cid domain.ConnID) domain.UserID {
	_, uid, _ := o.Registry.RoomOf(cid)
	return uid
}

// background runs fn detached from the intent that started it.
func (o *Orchestrator) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	o.tasks.Go(func() { fn(ctx) })
}
