package core

import (
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
)

// Room is an isolated call session: a set of peers sharing one media router.
type Room struct {
	id         domain.RoomID
	generation uint64

	mu       sync.RWMutex
	router   MediaRouter
	peers    map[domain.PeerID]*Peer
	approved map[string]struct{}
	closed   bool
}

func NewRoom(id domain.RoomID, generation uint64) *Room {
	return &Room{
		id:         id,
		generation: generation,
		peers:      make(map[domain.PeerID]*Peer),
		approved:   make(map[string]struct{}),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

// Key identifies this incarnation of the room; a room recreated under the
// same id gets a different key.
func (r *Room) Key() string { return fmt.Sprintf("%s#%d", r.id, r.generation) }

func (r *Room) Router() MediaRouter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.router
}

// SetRouter attaches mr unless the room already has one or was closed.
func (r *Room) SetRouter(mr MediaRouter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.router != nil {
		return false
	}
	r.router = mr
	return true
}

// DetachRouter hands the router to the caller; later calls return nil.
func (r *Room) DetachRouter() MediaRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	mr := r.router
	r.router = nil
	return mr
}

func (r *Room) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// GetOrAddPeer returns the room's record for id, creating it when absent.
func (r *Room) GetOrAddPeer(id domain.PeerID, clientToken string) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	if p, ok := r.peers[id]; ok {
		return p, nil
	}
	p := NewPeer(id, clientToken)
	r.peers[id] = p
	return p, nil
}

func (r *Room) Peer(id domain.PeerID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// RemovePeer deletes p if it is still the record stored under its id.
func (r *Room) RemovePeer(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.peers[p.ID()]; ok && cur == p {
		delete(r.peers, p.ID())
		return true
	}
	return false
}

func (r *Room) snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

func (r *Room) Peers() []*Peer { return r.snapshot() }

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Room) ActivePeers() []*Peer {
	var out []*Peer
	for _, p := range r.snapshot() {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) WaitingPeers() []*Peer {
	var out []*Peer
	for _, p := range r.snapshot() {
		if p.State() == domain.StateWaiting {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) Admins() []*Peer {
	var out []*Peer
	for _, p := range r.snapshot() {
		if p.AdminActive() {
			out = append(out, p)
		}
	}
	return out
}

// HasAdminExcept reports whether a peer other than id is Admin-Active.
func (r *Room) HasAdminExcept(id domain.PeerID) bool {
	for _, p := range r.snapshot() {
		if p.ID() != id && p.AdminActive() {
			return true
		}
	}
	return false
}

// FindProducer looks a producer up among the active peers.
func (r *Room) FindProducer(producerID string) (MediaProducer, *Peer, bool) {
	for _, p := range r.snapshot() {
		if !p.Active() {
			continue
		}
		if pr, ok := p.Producer(producerID); ok {
			return pr, p, true
		}
	}
	return nil, nil, false
}

// ProducersExcept lists the producers of every active peer other than id.
func (r *Room) ProducersExcept(id domain.PeerID) []ProducerInfo {
	var out []ProducerInfo
	for _, p := range r.snapshot() {
		if p.ID() == id || !p.Active() {
			continue
		}
		out = append(out, p.Producers()...)
	}
	return out
}

// PeerInfos lists the active peers.
func (r *Room) PeerInfos() []PeerInfo {
	active := r.ActivePeers()
	out := make([]PeerInfo, 0, len(active))
	for _, p := range active {
		out = append(out, p.Info())
	}
	return out
}

// CloseIfEmpty marks an empty room closed. A closed room accepts no peers.
func (r *Room) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if len(r.peers) > 0 {
		return false
	}
	r.closed = true
	return true
}

// ApproveClient remembers a client token admitted by an admin so that a
// reconnect of the same client skips the waiting room.
func (r *Room) ApproveClient(token string) {
	if token == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[token] = struct{}{}
}

// RevokeClient forgets an approval; the client waits again on its next join.
func (r *Room) RevokeClient(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.approved, token)
}

func (r *Room) ClientApproved(token string) bool {
	if token == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.approved[token]
	return ok
}

func (r *Room) Info() RoomInfo {
	info := RoomInfo{ID: r.id, HasRouter: r.Router() != nil}
	for _, p := range r.snapshot() {
		switch p.State() {
		case domain.StateActive:
			info.Peers++
		case domain.StateWaiting:
			info.Waiting++
		}
	}
	return info
}
