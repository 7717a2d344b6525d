package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Dispatcher consumes inbound frames. It is implemented by app.Orchestrator.
type Dispatcher interface {
	HandleFrame(ctx context.Context, cid domain.ConnID, data []byte)
	OnDisconnect(cid domain.ConnID)
}

// Binder makes a connection reachable for outbound events.
type Binder interface {
	BindSignal(cid domain.ConnID, sig core.SignalConnection, cancel context.CancelFunc)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

var DefaultOptions = Options{
	ReadLimit:  1 << 20,
	PingPeriod: 54 * time.Second,
	SendBuffer: 256,
}

type SignalWSController struct {
	Dispatcher Dispatcher
	Sessions   Binder
	Options    Options
}

func NewSignalWSController(d Dispatcher, sessions Binder, opts Options) *SignalWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultOptions.ReadLimit
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = DefaultOptions.PingPeriod
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions.SendBuffer
	}
	return &SignalWSController{Dispatcher: d, Sessions: sessions, Options: opts}
}

// WsSignalConn is the outbound half of one websocket. TrySend never blocks;
// the write pump drains the queue.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the connection until either
// side closes it or ctx is canceled. The disconnect intent runs exactly once,
// after both pumps have stopped.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(cid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Options.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Options.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctl.Sessions.BindSignal(cid, conn, cancel)

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, cid, conn) })
	wg.Go(func() {
		ctl.readPump(ctx, cid, conn)
		cancel()
	})
	wg.Go(func() {
		<-ctx.Done()
		// unblocks a reader parked in ReadMessage
		conn.Close()
	})
	wg.Wait()

	ctl.Dispatcher.OnDisconnect(cid)
	log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("WS connection closed")
}
