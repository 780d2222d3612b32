package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrRouterClosed = errors.New("rtc: router closed")

// Router owns one pion API (codec set, interceptors, network settings) and
// every transport created from it.
type Router struct {
	worker *Worker
	id     string
	api    *webrtc.API
	caps   domain.RtpCapabilities

	mu         sync.Mutex
	closed     bool
	transports []*Transport
	producers  map[string]*Producer
	// consumers by producer id, then consumer id
	consumers map[string]map[string]*Consumer
}

func (r *Router) ID() string                              { return r.id }
func (r *Router) RtpCapabilities() domain.RtpCapabilities { return r.caps }

func (r *Router) producer(id string) (*Producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *Router) CanConsume(producerID string, caps domain.RtpCapabilities) bool {
	p, ok := r.producer(producerID)
	if !ok {
		return false
	}
	return caps.Supports(p.codec)
}

func (r *Router) CreateTransport(ctx context.Context, dir domain.Direction) (core.MediaTransport, error) {
	if !dir.Valid() {
		return nil, domain.ErrWrongDirection
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRouterClosed
	}

	t, err := newTransport(ctx, r, dir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.Close()
		return nil, ErrRouterClosed
	}
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	return t, nil
}

func (r *Router) addProducer(p *Producer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.producers[p.id] = p
	return true
}

// removeProducer forgets p and hands back its consumers for closing.
func (r *Router) removeProducer(p *Producer) []*Consumer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.producers[p.id]; ok && cur == p {
		delete(r.producers, p.id)
	}
	byID := r.consumers[p.id]
	delete(r.consumers, p.id)
	out := make([]*Consumer, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out
}

func (r *Router) addConsumer(c *Consumer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.producers[c.producer.id]; !ok {
		return false
	}
	byID, ok := r.consumers[c.producer.id]
	if !ok {
		byID = make(map[string]*Consumer)
		r.consumers[c.producer.id] = byID
	}
	byID[c.id] = c
	return true
}

func (r *Router) removeConsumer(c *Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byID, ok := r.consumers[c.producer.id]; ok {
		delete(byID, c.id)
	}
}

func (r *Router) removeTransport(t *Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.transports {
		if cur == t {
			r.transports = append(r.transports[:i], r.transports[i+1:]...)
			return
		}
	}
}

// Close closes every transport, which closes their producers and consumers.
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

	for _, t := range transports {
		t.Close()
	}
	r.worker.forget(r)
	log.Info().Str("module", "rtc").Str("router", r.id).Int("transports", len(transports)).Msg("router closed")
	return nil
}
