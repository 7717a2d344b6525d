package signal

import (
	"context"
	"time"

	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.Options.PingPeriod * 10 / 9
}

func (ctl *SignalWSController) writePump(ctx context.Context, cid domain.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Options.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cid domain.ConnID, c *WsSignalConn) {
	defer log.Debug().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				}
				return
			}
			if mt != websocket.TextMessage {
				log.Warn().Str("module", "signal").Str("conn", string(cid)).Int("messageType", mt).Msg("ignoring non-text frame")
				continue
			}
			ctl.Dispatcher.HandleFrame(ctx, cid, data)
		}
	}
}
