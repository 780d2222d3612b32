package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, pid domain.PeerID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		// unblocks the read pump
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.opts.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, pid domain.PeerID, token string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Disconnect(pid)
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait)) }
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		res := ctl.handleMessage(ctx, pid, token, data)
		if err := ctl.reply(c, res); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("dropping connection")
			return
		}
		if err := extend(); err != nil {
			return
		}
	}
}

// handleMessage decodes, runs and answers one request. Requests of a
// connection run one at a time, in arrival order.
func (ctl *SignalWSController) handleMessage(ctx context.Context, pid domain.PeerID, token string, data []byte) response {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return errResponse(0, badRequest("malformed message", err))
	}
	req, err := ctl.decode(in)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("peer", string(pid)).Str("type", in.Type).Msg("rejected request")
		return errResponse(in.ID, err)
	}
	if in.Type == orch.OpJoinRoom && !ctl.Limiter.Allow(token) {
		log.Warn().Str("module", "signal").Str("peer", string(pid)).Str("client", token).Msg("join rate limited")
		return errResponse(in.ID, domain.ErrRateLimited)
	}
	res, err := ctl.Orch.Handle(ctx, pid, req)
	if err != nil {
		return errResponse(in.ID, err)
	}
	return okResponse(in.ID, res)
}

// reply queues a response. A full queue means the client stopped reading.
func (ctl *SignalWSController) reply(c *WsSignalConn, res response) error {
	b, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Uint64("id", res.ID).Msg("marshal response")
		if b, err = json.Marshal(errResponse(res.ID, err)); err != nil {
			return err
		}
	}
	return c.trySend(b)
}
