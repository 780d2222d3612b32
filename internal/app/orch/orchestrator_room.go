package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// joinAttempts bounds retries when the room is garbage collected between
// lookup and insert.
const joinAttempts = 3

func (o *Orchestrator) createRoom(pid domain.PeerID) (any, error) {
	room := o.Rooms.CreateRoom()
	log.Info().Str("module", "orch").Str("peer", string(pid)).Str("room", string(room.ID())).Msg("room created")
	return CreateRoomResponse{RoomID: room.ID()}, nil
}

func (o *Orchestrator) joinRoom(ctx context.Context, pid domain.PeerID, r *JoinRoomRequest) (any, error) {
	name, err := domain.NormalizeDisplayName(r.Name, o.DefaultName)
	if err != nil {
		return nil, err
	}
	if cur, ok := o.Registry.RoomOf(pid); ok && cur != r.RoomID {
		log.Info().Str("module", "orch").Str("peer", string(pid)).Str("from_room", string(cur)).Msg("leaving previous room")
		o.leave(pid, cur)
	}

	var (
		room  *core.Room
		peer  *core.Peer
		fresh bool
	)
	token := o.Registry.ClientToken(pid)
	for range joinAttempts {
		room = o.Rooms.GetOrCreate(r.RoomID)
		_, existed := room.Peer(pid)
		peer, err = room.GetOrAddPeer(pid, token)
		if errors.Is(err, domain.ErrRoomClosed) {
			continue
		}
		fresh = !existed
		break
	}
	if err != nil {
		return nil, err
	}
	if peer.State() == domain.StateRemoved {
		return nil, domain.ErrPeerNotFound
	}
	if !o.Registry.UpdateRoom(pid, room.ID()) {
		// connection already gone
		o.abandonJoin(room, peer, fresh)
		return nil, domain.ErrPeerNotFound
	}
	peer.SetName(name)

	// The router is attached before the admission decision so that a failing
	// engine leaves no admitted peer behind.
	ectx, cancel := o.engineContext(ctx)
	router, err := o.Rooms.AttachRouter(ectx, room)
	cancel()
	if err != nil {
		o.abandonJoin(room, peer, fresh)
		return nil, err
	}

	switch o.Admission.Join(room, peer, r.IsCreator) {
	case app.JoinRemoved:
		return nil, domain.ErrPeerNotFound
	case app.JoinWaiting:
		o.notifyAdmins(room, EventUserWaiting, UserWaitingEvent{ID: pid, Name: name})
		return JoinRoomResponse{Status: StatusWaiting, RoomID: room.ID(), PeerID: pid}, nil
	case app.JoinAdmitted:
		o.broadcast(room, pid, EventPeerJoined, peer.Info())
	case app.JoinRejoined:
	}

	caps := router.RtpCapabilities()
	return JoinRoomResponse{
		Status:          StatusJoined,
		RoomID:          room.ID(),
		PeerID:          pid,
		IsAdmin:         peer.Role() == domain.RoleAdmin,
		RtpCapabilities: &caps,
		Peers:           room.PeerInfos(),
		Producers:       room.ProducersExcept(pid),
	}, nil
}

// abandonJoin undoes a join that failed before admission.
func (o *Orchestrator) abandonJoin(room *core.Room, peer *core.Peer, fresh bool) {
	if !fresh || peer.State() != domain.StateConnecting {
		return
	}
	if _, ok := o.Admission.Leave(room, peer); !ok {
		return
	}
	room.RemovePeer(peer)
	o.Registry.ClearRoom(peer.ID(), room.ID())
	o.Rooms.RemoveRoomIfEmpty(room)
}

func (o *Orchestrator) leaveRoom(pid domain.PeerID, r *LeaveRoomRequest) (any, error) {
	if _, _, err := o.peerIn(pid, r.RoomID); err != nil {
		return nil, err
	}
	o.leave(pid, r.RoomID)
	return Ack{OK: true}, nil
}

// leave removes pid from roomID as if it disconnected.
func (o *Orchestrator) leave(pid domain.PeerID, roomID domain.RoomID) {
	defer o.Registry.ClearRoom(pid, roomID)
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	peer, ok := room.Peer(pid)
	if !ok {
		o.Rooms.RemoveRoomIfEmpty(room)
		return
	}
	prev, ok := o.Admission.Leave(room, peer)
	if !ok {
		// someone else is removing it
		return
	}
	o.removePeer(room, peer)
	switch prev {
	case domain.StateActive:
		o.broadcast(room, pid, EventPeerLeft, PeerLeftEvent{ID: pid})
	case domain.StateWaiting:
		o.notifyAdmins(room, EventPeerLeft, PeerLeftEvent{ID: pid})
	}
	log.Info().
		Str("module", "orch").
		Str("room", string(roomID)).
		Str("peer", string(pid)).
		Str("was", prev.String()).
		Msg("peer left")
	o.Rooms.RemoveRoomIfEmpty(room)
}

// removePeer releases a peer already marked removed and unlinks it from room.
func (o *Orchestrator) removePeer(room *core.Room, peer *core.Peer) {
	for _, producerID := range peer.ReleaseAll() {
		o.dropProducer(room, peer.ID(), producerID)
	}
	room.RemovePeer(peer)
}

func (o *Orchestrator) routerCapabilities(ctx context.Context, r *GetRouterRtpCapabilitiesRequest) (any, error) {
	room, ok := o.Rooms.Get(r.RoomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	router, err := o.Rooms.AttachRouter(ectx, room)
	if err != nil {
		return nil, err
	}
	return RouterCapabilitiesResponse{RtpCapabilities: router.RtpCapabilities()}, nil
}

func (o *Orchestrator) updateMic(pid domain.PeerID, r *UpdateMicStatusRequest) (any, error) {
	if r.PeerID != "" && r.PeerID != pid {
		return nil, domain.ErrNotOwnPeer
	}
	room, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	peer.SetMic(r.MicOn)
	ev := PeerMicEvent{PeerID: pid, MicOn: r.MicOn}
	o.broadcast(room, pid, EventPeerMicUpdate, ev)
	return ev, nil
}

func (o *Orchestrator) updateCamera(pid domain.PeerID, r *UpdateCameraStatusRequest) (any, error) {
	if r.PeerID != "" && r.PeerID != pid {
		return nil, domain.ErrNotOwnPeer
	}
	room, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	peer.SetCamera(r.CameraOn)
	ev := PeerCameraEvent{PeerID: pid, CameraOn: r.CameraOn}
	o.broadcast(room, pid, EventPeerCameraUpdate, ev)
	return ev, nil
}
