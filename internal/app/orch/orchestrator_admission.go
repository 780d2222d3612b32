package orch

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Admin actions from non-admins, and actions on peers in the wrong state,
// are ignored: the caller gets the same Ack either way.

func (o *Orchestrator) approveUser(pid domain.PeerID, r *ApproveUserRequest) (any, error) {
	room, ok := o.Rooms.Get(r.RoomID)
	if !ok {
		return Ack{OK: true}, nil
	}
	target, ok := o.Admission.Approve(room, pid, r.UserID)
	if !ok {
		return Ack{OK: true}, nil
	}
	o.notify(room, target.ID(), EventUserApproved, RoomEvent{RoomID: room.ID()})
	o.broadcast(room, target.ID(), EventPeerJoined, target.Info())
	return Ack{OK: true}, nil
}

func (o *Orchestrator) rejectUser(pid domain.PeerID, r *RejectUserRequest) (any, error) {
	room, ok := o.Rooms.Get(r.RoomID)
	if !ok {
		return Ack{OK: true}, nil
	}
	target, ok := o.Admission.Reject(room, pid, r.UserID)
	if !ok {
		return Ack{OK: true}, nil
	}
	o.evict(room, target, EventUserRejected)
	o.notifyAdmins(room, EventPeerLeft, PeerLeftEvent{ID: target.ID()})
	return Ack{OK: true}, nil
}

func (o *Orchestrator) kickUser(pid domain.PeerID, r *KickUserRequest) (any, error) {
	room, ok := o.Rooms.Get(r.RoomID)
	if !ok {
		return Ack{OK: true}, nil
	}
	target, ok := o.Admission.Kick(room, pid, r.UserID)
	if !ok {
		return Ack{OK: true}, nil
	}
	o.evict(room, target, EventUserKicked)
	o.broadcast(room, target.ID(), EventPeerLeft, PeerLeftEvent{ID: target.ID()})
	return Ack{OK: true}, nil
}

// evict finishes removing a peer the admission controller already marked
// removed: resources first, then the room entry, then the target is told.
func (o *Orchestrator) evict(room *core.Room, target *core.Peer, event string) {
	o.removePeer(room, target)
	o.notify(room, target.ID(), event, RoomEvent{RoomID: room.ID()})
	o.Registry.ClearRoom(target.ID(), room.ID())
	o.Rooms.RemoveRoomIfEmpty(room)
}
