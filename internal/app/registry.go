package app

import (
	"context"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	ClientToken string
	RoomID      domain.RoomID
	Signal      core.SignalConnection
	Cancel      context.CancelFunc
}

// Registry tracks live signaling connections and the one room each of them
// is currently in.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.PeerID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.PeerID]*sessionEntry)}
}

func (r *Registry) Bind(pid domain.PeerID, clientToken string, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[pid] = &sessionEntry{ClientToken: clientToken, Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("bound signal")
}

func (r *Registry) Signal(pid domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[pid]; ok {
		return e.Signal, true
	}
	return nil, false
}

func (r *Registry) ClientToken(pid domain.PeerID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[pid]; ok {
		return e.ClientToken
	}
	return ""
}

// Unbind forgets the connection and returns the room it was in.
func (r *Registry) Unbind(pid domain.PeerID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[pid]
	if !ok {
		return "", false
	}
	delete(r.sessions, pid)
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("unbind signal")
	return e.RoomID, true
}

func (r *Registry) RoomOf(pid domain.PeerID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[pid]
	if !ok || entry.RoomID == "" {
		return "", false
	}
	return entry.RoomID, true
}

func (r *Registry) UpdateRoom(pid domain.PeerID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[pid]
	if !ok {
		return false
	}
	entry.RoomID = room
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("room", string(room)).Msg("updated room")
	return true
}

// ClearRoom drops the room association if it still points at room.
func (r *Registry) ClearRoom(pid domain.PeerID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[pid]; ok && entry.RoomID == room {
		entry.RoomID = ""
		log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("room", string(room)).Msg("removed room association")
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel closes the connection's context, which makes its adapter disconnect.
func (r *Registry) Cancel(pid domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.sessions[pid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Msg("canceled session")
	return true
}
