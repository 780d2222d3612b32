// Package mediatest provides an in-memory media engine for tests. It follows
// the engine contract: transports close their producers and consumers,
// closing a producer closes its consumers, and consumers start paused.
package mediatest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
)

var ErrClosed = errors.New("mediatest: handle closed")

// Engine implements core.MediaWorker. Exported knobs must be set before the
// engine is shared between goroutines.
type Engine struct {
	// RouterGate, when non-nil, blocks CreateRouter until closed.
	RouterGate chan struct{}
	// TransportGate, when non-nil, blocks CreateTransport until closed.
	TransportGate chan struct{}
	// BeforeTransport runs at the start of every CreateTransport.
	BeforeTransport func()
	// ProduceGate and ConsumeGate block Produce and Consume the same way;
	// BeforeProduce and BeforeConsume run first.
	ProduceGate   chan struct{}
	ConsumeGate   chan struct{}
	BeforeProduce func()
	BeforeConsume func()

	FailRouter      error
	FailRouterClose error
	FailTransport   error
	FailConnect     error
	FailProduce     error
	FailConsume     error

	routersCreated atomic.Int64
	routersClosed  atomic.Int64
	transports     atomic.Int64
	producers      atomic.Int64
	consumers      atomic.Int64

	dieOnce sync.Once
	died    chan error
}

func New() *Engine {
	return &Engine{died: make(chan error, 1)}
}

func (e *Engine) RoutersCreated() int { return int(e.routersCreated.Load()) }
func (e *Engine) RoutersClosed() int  { return int(e.routersClosed.Load()) }

// OpenTransports counts transports created and not yet closed.
func (e *Engine) OpenTransports() int { return int(e.transports.Load()) }

func (e *Engine) OpenProducers() int { return int(e.producers.Load()) }
func (e *Engine) OpenConsumers() int { return int(e.consumers.Load()) }

// Kill simulates the engine process dying.
func (e *Engine) Kill(err error) {
	e.dieOnce.Do(func() {
		e.died <- err
		close(e.died)
	})
}

func (e *Engine) Died() <-chan error { return e.died }

func (e *Engine) Close() { e.Kill(nil) }

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) CreateRouter(ctx context.Context, codecs []domain.RtpCodecCapability) (core.MediaRouter, error) {
	e.routersCreated.Add(1)
	if err := wait(ctx, e.RouterGate); err != nil {
		return nil, err
	}
	if e.FailRouter != nil {
		return nil, e.FailRouter
	}
	return &Router{
		engine:    e,
		id:        uuid.NewString(),
		caps:      domain.RtpCapabilities{Codecs: append([]domain.RtpCodecCapability(nil), codecs...)},
		producers: make(map[string]*Producer),
	}, nil
}

// closer carries the close-once and OnClose bookkeeping shared by all handles.
type closer struct {
	mu     sync.Mutex
	closed bool
	hooks  []func()
}

func (c *closer) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// markClosed reports whether this call closed the handle.
func (c *closer) markClosed() ([]func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	hooks := c.hooks
	c.hooks = nil
	return hooks, true
}

func (c *closer) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type Router struct {
	engine *Engine
	id     string
	caps   domain.RtpCapabilities

	mu         sync.Mutex
	closed     bool
	producers  map[string]*Producer
	transports []*Transport
}

func (r *Router) ID() string                              { return r.id }
func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps }

func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	r.mu.Lock()
	pr, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	codec, ok := pr.rtp.PrimaryCodec()
	return ok && caps.Supports(codec)
}

func (r *Router) CreateTransport(ctx context.Context, dir domain.Direction) (core.MediaTransport, error) {
	if r.engine.BeforeTransport != nil {
		r.engine.BeforeTransport()
	}
	if err := wait(ctx, r.engine.TransportGate); err != nil {
		return nil, err
	}
	if r.engine.FailTransport != nil {
		return nil, r.engine.FailTransport
	}
	t := &Transport{router: r, id: uuid.NewString(), dir: dir}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	r.engine.transports.Add(1)
	return t, nil
}

func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	transports := r.transports
	r.transports = nil
	r.mu.Unlock()

	r.engine.routersClosed.Add(1)
	for _, t := range transports {
		t.Close()
	}
	return r.engine.FailRouterClose
}

type Transport struct {
	closer
	router *Router
	id     string
	dir    domain.Direction

	mu        sync.Mutex
	connected bool
	producers []*Producer
	consumers []*Consumer
}

func (t *Transport) ID() string                  { return t.id }
func (t *Transport) Direction() domain.Direction { return t.dir }

func (t *Transport) Params() domain.TransportParams {
	return domain.TransportParams{
		ID:             t.id,
		IceParameters:  []byte(`{"usernameFragment":"test","password":"test"}`),
		IceCandidates:  []byte(`[]`),
		DtlsParameters: []byte(`{"role":"auto","fingerprints":[]}`),
	}
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Connect(ctx context.Context, _ domain.ConnectParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.router.engine.FailConnect != nil {
		return t.router.engine.FailConnect
	}
	if t.IsClosed() {
		return ErrClosed
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) Produce(ctx context.Context, kind domain.MediaKind, rtp domain.RtpParameters) (core.MediaProducer, error) {
	if t.router.engine.BeforeProduce != nil {
		t.router.engine.BeforeProduce()
	}
	if err := wait(ctx, t.router.engine.ProduceGate); err != nil {
		return nil, err
	}
	if t.router.engine.FailProduce != nil {
		return nil, t.router.engine.FailProduce
	}
	pr := &Producer{router: t.router, id: uuid.NewString(), kind: kind, rtp: rtp}
	// checked under t.mu so that a concurrent Close sees the new producer
	t.mu.Lock()
	if t.IsClosed() {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.producers = append(t.producers, pr)
	t.router.engine.producers.Add(1)
	t.router.mu.Lock()
	t.router.producers[pr.id] = pr
	t.router.mu.Unlock()
	t.mu.Unlock()
	return pr, nil
}

func (t *Transport) Consume(ctx context.Context, producerID string, caps domain.RtpCapabilities) (core.MediaConsumer, error) {
	if t.router.engine.BeforeConsume != nil {
		t.router.engine.BeforeConsume()
	}
	if err := wait(ctx, t.router.engine.ConsumeGate); err != nil {
		return nil, err
	}
	if t.router.engine.FailConsume != nil {
		return nil, t.router.engine.FailConsume
	}
	t.router.mu.Lock()
	pr, ok := t.router.producers[producerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, domain.ErrProducerNotFound
	}
	c := &Consumer{id: uuid.NewString(), producer: pr, paused: true}
	t.mu.Lock()
	if t.IsClosed() {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.consumers = append(t.consumers, c)
	t.router.engine.consumers.Add(1)
	t.mu.Unlock()
	pr.attach(c)
	return c, nil
}

func (t *Transport) Close() {
	hooks, ok := t.markClosed()
	if !ok {
		return
	}
	t.mu.Lock()
	producers, consumers := t.producers, t.consumers
	t.producers, t.consumers = nil, nil
	t.mu.Unlock()
	for _, c := range consumers {
		c.Close()
	}
	for _, pr := range producers {
		pr.Close()
	}
	t.router.engine.transports.Add(-1)
	for _, fn := range hooks {
		fn()
	}
}

type Producer struct {
	closer
	router *Router
	id     string
	kind   domain.MediaKind
	rtp    domain.RtpParameters

	mu        sync.Mutex
	consumers []*Consumer
}

func (p *Producer) ID() string             { return p.id }
func (p *Producer) Kind() domain.MediaKind { return p.kind }

func (p *Producer) attach(c *Consumer) {
	p.mu.Lock()
	closed := p.IsClosed()
	if !closed {
		p.consumers = append(p.consumers, c)
	}
	p.mu.Unlock()
	if closed {
		c.Close()
	}
}

func (p *Producer) Close() {
	hooks, ok := p.markClosed()
	if !ok {
		return
	}
	p.router.engine.producers.Add(-1)
	p.router.mu.Lock()
	delete(p.router.producers, p.id)
	p.router.mu.Unlock()
	p.mu.Lock()
	consumers := p.consumers
	p.consumers = nil
	p.mu.Unlock()
	for _, c := range consumers {
		c.Close()
	}
	for _, fn := range hooks {
		fn()
	}
}

type Consumer struct {
	closer
	id       string
	producer *Producer

	mu     sync.Mutex
	paused bool
}

func (c *Consumer) ID() string             { return c.id }
func (c *Consumer) ProducerID() string     { return c.producer.id }
func (c *Consumer) Kind() domain.MediaKind { return c.producer.kind }
func (c *Consumer) ProducerPaused() bool   { return false }

func (c *Consumer) RtpParameters() domain.RtpParameters { return c.producer.rtp }

func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Consumer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.IsClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return nil
}

func (c *Consumer) Close() {
	hooks, ok := c.markClosed()
	if !ok {
		return
	}
	c.producer.router.engine.consumers.Add(-1)
	for _, fn := range hooks {
		fn()
	}
}
