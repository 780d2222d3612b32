package core

import (
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Peer is one connection's session state inside a room. It exclusively owns
// its transports, producers and consumers.
type Peer struct {
	id          domain.PeerID
	clientToken string

	mu       sync.RWMutex
	name     string
	role     domain.Role
	state    domain.PeerState
	approved bool
	released bool
	micOn    bool
	cameraOn bool

	transports map[string]MediaTransport
	producers  map[string]MediaProducer
	consumers  map[string]MediaConsumer
}

func NewPeer(id domain.PeerID, clientToken string) *Peer {
	return &Peer{
		id:          id,
		clientToken: clientToken,
		name:        domain.DefaultDisplayName,
		micOn:       true,
		cameraOn:    true,
		transports:  make(map[string]MediaTransport),
		producers:   make(map[string]MediaProducer),
		consumers:   make(map[string]MediaConsumer),
	}
}

func (p *Peer) ID() domain.PeerID   { return p.id }
func (p *Peer) ClientToken() string { return p.clientToken }

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *Peer) State() domain.PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Peer) Role() domain.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.role
}

func (p *Peer) Active() bool { return p.State() == domain.StateActive }

func (p *Peer) AdminActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == domain.StateActive && p.role == domain.RoleAdmin
}

func (p *Peer) Approved() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.approved
}

// Activate admits the peer with role. Removed peers stay removed.
func (p *Peer) Activate(role domain.Role) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.StateRemoved {
		return false
	}
	p.state = domain.StateActive
	p.role = role
	if role == domain.RoleGuest {
		p.approved = true
	}
	return true
}

// Hold parks a connecting peer in the waiting room.
func (p *Peer) Hold() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateConnecting {
		return false
	}
	p.state = domain.StateWaiting
	return true
}

// Approve moves a waiting peer to guest-active.
func (p *Peer) Approve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != domain.StateWaiting {
		return false
	}
	p.state = domain.StateActive
	p.role = domain.RoleGuest
	p.approved = true
	return true
}

// MarkRemoved moves the peer to removed. Only the first caller gets ok and
// the state the peer was in, so exactly one party announces the departure.
func (p *Peer) MarkRemoved() (prev domain.PeerState, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.StateRemoved {
		return p.state, false
	}
	prev = p.state
	p.state = domain.StateRemoved
	return prev, true
}

func (p *Peer) SetMic(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.micOn = on
}

func (p *Peer) SetCamera(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cameraOn = on
}

func (p *Peer) Info() PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PeerInfo{
		ID:       p.id,
		Name:     p.name,
		MicOn:    p.micOn,
		CameraOn: p.cameraOn,
		IsAdmin:  p.role == domain.RoleAdmin,
	}
}

// RegisterTransport records an owned transport. It returns false when the
// peer is already gone; the caller must close t.
func (p *Peer) RegisterTransport(t MediaTransport) bool {
	id := t.ID()
	p.mu.Lock()
	if p.released || p.state == domain.StateRemoved {
		p.mu.Unlock()
		return false
	}
	p.transports[id] = t
	p.mu.Unlock()

	t.OnClose(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if cur, ok := p.transports[id]; ok && cur == t {
			delete(p.transports, id)
		}
	})
	return true
}

func (p *Peer) RegisterProducer(pr MediaProducer) bool {
	id := pr.ID()
	p.mu.Lock()
	if p.released || p.state == domain.StateRemoved {
		p.mu.Unlock()
		return false
	}
	p.producers[id] = pr
	p.mu.Unlock()

	pr.OnClose(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if cur, ok := p.producers[id]; ok && cur == pr {
			delete(p.producers, id)
		}
	})
	return true
}

func (p *Peer) RegisterConsumer(c MediaConsumer) bool {
	id := c.ID()
	p.mu.Lock()
	if p.released || p.state == domain.StateRemoved {
		p.mu.Unlock()
		return false
	}
	p.consumers[id] = c
	p.mu.Unlock()

	c.OnClose(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if cur, ok := p.consumers[id]; ok && cur == c {
			delete(p.consumers, id)
		}
	})
	return true
}

func (p *Peer) Transport(id string) (MediaTransport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.transports[id]
	return t, ok
}

func (p *Peer) Producer(id string) (MediaProducer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pr, ok := p.producers[id]
	return pr, ok
}

func (p *Peer) Consumer(id string) (MediaConsumer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.consumers[id]
	return c, ok
}

// TakeConsumersOf detaches every consumer rendering producerID.
func (p *Peer) TakeConsumersOf(producerID string) []MediaConsumer {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []MediaConsumer
	for id, c := range p.consumers {
		if c.ProducerID() == producerID {
			out = append(out, c)
			delete(p.consumers, id)
		}
	}
	return out
}

func (p *Peer) Producers() []ProducerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ProducerInfo, 0, len(p.producers))
	for id, pr := range p.producers {
		out = append(out, ProducerInfo{ProducerID: id, PeerID: p.id, Kind: pr.Kind()})
	}
	return out
}

// Counts returns the number of owned transports, producers and consumers.
func (p *Peer) Counts() (transports, producers, consumers int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.transports), len(p.producers), len(p.consumers)
}

// ReleaseAll closes every owned resource and returns the ids of the closed
// producers. Only the first call does anything; the peer accepts no new
// resources afterwards.
func (p *Peer) ReleaseAll() []string {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	consumers := slices.Collect(maps.Values(p.consumers))
	producers := slices.Collect(maps.Values(p.producers))
	transports := slices.Collect(maps.Values(p.transports))
	p.consumers = make(map[string]MediaConsumer)
	p.producers = make(map[string]MediaProducer)
	p.transports = make(map[string]MediaTransport)
	p.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	closed := make([]string, 0, len(producers))
	for _, pr := range producers {
		closed = append(closed, pr.ID())
		pr.Close()
	}
	for _, t := range transports {
		t.Close()
	}
	log.Debug().
		Str("module", "core.peer").
		Str("peer", string(p.id)).
		Int("transports", len(transports)).
		Int("producers", len(producers)).
		Int("consumers", len(consumers)).
		Msg("released resources")
	return closed
}
