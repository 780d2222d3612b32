package app

import (
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinOutcome int

const (
	// JoinAdmitted: the peer became active by this call.
	JoinAdmitted JoinOutcome = iota
	// JoinRejoined: the peer was already active; nothing changed.
	JoinRejoined
	// JoinWaiting: the peer is held until an admin decides.
	JoinWaiting
	// JoinRemoved: the peer was removed concurrently.
	JoinRemoved
)

func (o JoinOutcome) String() string {
	switch o {
	case JoinAdmitted:
		return "admitted"
	case JoinRejoined:
		return "rejoined"
	case JoinWaiting:
		return "waiting"
	case JoinRemoved:
		return "removed"
	}
	return "unknown"
}

// AdmissionController is the waiting-room gate. Transitions of one room are
// serialised; no engine call happens while the room lock is held.
type AdmissionController struct {
	policy domain.AdminPolicy

	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewAdmissionController(policy domain.AdminPolicy) *AdmissionController {
	if policy == "" {
		policy = domain.AdminPolicyMulti
	}
	return &AdmissionController{policy: policy, locks: make(map[string]*roomLock)}
}

func (ac *AdmissionController) Policy() domain.AdminPolicy { return ac.policy }

func (ac *AdmissionController) lock(room *core.Room) func() {
	key := room.Key()
	ac.mu.Lock()
	l, ok := ac.locks[key]
	if !ok {
		l = &roomLock{}
		ac.locks[key] = l
	}
	l.refs++
	ac.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ac.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ac.locks, key)
		}
		ac.mu.Unlock()
	}
}

// Join applies the admission rules to a peer that asked to join room.
func (ac *AdmissionController) Join(room *core.Room, peer *core.Peer, isCreator bool) JoinOutcome {
	unlock := ac.lock(room)
	defer unlock()

	switch peer.State() {
	case domain.StateRemoved:
		return JoinRemoved
	case domain.StateActive:
		return JoinRejoined
	case domain.StateWaiting:
		return JoinWaiting
	}

	logger := log.With().
		Str("module", "app.admission").
		Str("room", string(room.ID())).
		Str("peer", string(peer.ID())).
		Logger()

	if isCreator {
		if ac.policy == domain.AdminPolicyFirst && room.HasAdminExcept(peer.ID()) {
			logger.Info().Msg("room already has an admin, joining as guest")
		} else {
			peer.Activate(domain.RoleAdmin)
			logger.Info().Msg("admitted as admin")
			return JoinAdmitted
		}
	}

	if peer.Approved() || room.ClientApproved(peer.ClientToken()) {
		peer.Activate(domain.RoleGuest)
		logger.Info().Msg("admitted as previously approved guest")
		return JoinAdmitted
	}
	if room.HasAdminExcept(peer.ID()) {
		peer.Hold()
		logger.Info().Msg("holding in waiting room")
		return JoinWaiting
	}
	peer.Activate(domain.RoleGuest)
	logger.Info().Msg("admitted as guest")
	return JoinAdmitted
}

func (ac *AdmissionController) adminTarget(room *core.Room, callerID, targetID domain.PeerID) (*core.Peer, bool) {
	caller, ok := room.Peer(callerID)
	if !ok || !caller.AdminActive() {
		log.Warn().
			Str("module", "app.admission").
			Str("room", string(room.ID())).
			Str("peer", string(callerID)).
			Msg("ignoring admin action from non-admin")
		return nil, false
	}
	return room.Peer(targetID)
}

// Approve admits a waiting peer as a guest. Anything else is a no-op.
func (ac *AdmissionController) Approve(room *core.Room, callerID, targetID domain.PeerID) (*core.Peer, bool) {
	unlock := ac.lock(room)
	defer unlock()

	target, ok := ac.adminTarget(room, callerID, targetID)
	if !ok || !target.Approve() {
		return nil, false
	}
	room.ApproveClient(target.ClientToken())
	log.Info().
		Str("module", "app.admission").
		Str("room", string(room.ID())).
		Str("peer", string(targetID)).
		Str("by", string(callerID)).
		Msg("approved")
	return target, true
}

// Reject removes a waiting peer. The caller releases and unlinks it.
func (ac *AdmissionController) Reject(room *core.Room, callerID, targetID domain.PeerID) (*core.Peer, bool) {
	unlock := ac.lock(room)
	defer unlock()

	target, ok := ac.adminTarget(room, callerID, targetID)
	if !ok || target.State() != domain.StateWaiting {
		return nil, false
	}
	if _, ok := target.MarkRemoved(); !ok {
		return nil, false
	}
	room.RevokeClient(target.ClientToken())
	log.Info().
		Str("module", "app.admission").
		Str("room", string(room.ID())).
		Str("peer", string(targetID)).
		Str("by", string(callerID)).
		Msg("rejected")
	return target, true
}

// Kick removes another active peer and revokes its client's approval. The
// caller releases and unlinks it.
func (ac *AdmissionController) Kick(room *core.Room, callerID, targetID domain.PeerID) (*core.Peer, bool) {
	unlock := ac.lock(room)
	defer unlock()

	if callerID == targetID {
		return nil, false
	}
	target, ok := ac.adminTarget(room, callerID, targetID)
	if !ok || !target.Active() {
		return nil, false
	}
	if _, ok := target.MarkRemoved(); !ok {
		return nil, false
	}
	room.RevokeClient(target.ClientToken())
	log.Info().
		Str("module", "app.admission").
		Str("room", string(room.ID())).
		Str("peer", string(targetID)).
		Str("by", string(callerID)).
		Msg("kicked")
	return target, true
}

// Leave marks a departing peer removed. Only the first caller gets ok.
func (ac *AdmissionController) Leave(room *core.Room, peer *core.Peer) (domain.PeerState, bool) {
	unlock := ac.lock(room)
	defer unlock()
	return peer.MarkRemoved()
}
