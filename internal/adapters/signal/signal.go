// Package signal serves the websocket signaling protocol on top of the
// orchestrator.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Options tune one signaling connection.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendQueue  int
	// AllowedOrigin restricts the websocket Origin header; empty or "*"
	// accepts any origin.
	AllowedOrigin string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	return o
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *JoinRateLimiter

	opts     Options
	upgrader websocket.Upgrader
	validate *validator.Validate
}

func NewSignalWSController(o *orch.Orchestrator, limiter *JoinRateLimiter, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	return &SignalWSController{
		Orch:     o,
		Limiter:  limiter,
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigin)},
		validate: newValidator(),
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// WsSignalConn is the outbound side of one websocket. Everything written to
// the socket goes through send and the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, queue int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan []byte, queue)}
}

func (c *WsSignalConn) trySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

// Notify queues a server push.
func (c *WsSignalConn) Notify(event string, payload any) error {
	b, err := json.Marshal(push{Type: event, Data: payload})
	if err != nil {
		return err
	}
	return c.trySend(b)
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal upgrades the request and serves the connection until either
// side goes away. ctx is the server lifetime.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	pid := domain.NewPeerID()
	log.Info().Str("module", "signal").Str("peer", string(pid)).Str("client", token).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.opts.SendQueue)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(pid, token, conn, cancel)

	go ctl.writePump(ctx, pid, conn)
	go ctl.readPump(ctx, cancel, pid, token, conn)
}
