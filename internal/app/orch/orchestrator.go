package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the signaling dispatcher. Every operation mutates state
// first and then emits notifications; delivery is best effort and at most
// once per recipient.
type Orchestrator struct {
	Registry  *app.Registry
	Rooms     *app.RoomRegistry
	Admission *app.AdmissionController
	Policy    app.Policy

	// EngineTimeout bounds every media engine call; zero means no bound.
	EngineTimeout time.Duration
	DefaultName   string
}

// Connect binds a new signaling connection. cancel tears the connection down.
func (o *Orchestrator) Connect(pid domain.PeerID, clientToken string, sig core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(pid, clientToken, sig, cancel)
}

// Disconnect removes the connection's peer from its room, releasing all of
// its media resources.
func (o *Orchestrator) Disconnect(pid domain.PeerID) {
	roomID, ok := o.Registry.Unbind(pid)
	if !ok || roomID == "" {
		return
	}
	o.leave(pid, roomID)
}

// Handle runs one request for the connection pid and returns its result.
func (o *Orchestrator) Handle(ctx context.Context, pid domain.PeerID, req Request) (any, error) {
	var (
		res any
		err error
	)
	switch r := req.(type) {
	case *CreateRoomRequest:
		res, err = o.createRoom(pid)
	case *JoinRoomRequest:
		res, err = o.joinRoom(ctx, pid, r)
	case *LeaveRoomRequest:
		res, err = o.leaveRoom(pid, r)
	case *CreateTransportRequest:
		res, err = o.createTransport(ctx, pid, r)
	case *ConnectTransportRequest:
		res, err = o.connectTransport(ctx, pid, r)
	case *ProduceRequest:
		res, err = o.produce(ctx, pid, r)
	case *CloseProducerRequest:
		res, err = o.closeProducer(pid, r)
	case *ConsumeRequest:
		res, err = o.consume(ctx, pid, r)
	case *ResumeConsumerRequest:
		res, err = o.resumeConsumer(ctx, pid, r)
	case *UpdateMicStatusRequest:
		res, err = o.updateMic(pid, r)
	case *UpdateCameraStatusRequest:
		res, err = o.updateCamera(pid, r)
	case *ApproveUserRequest:
		res, err = o.approveUser(pid, r)
	case *RejectUserRequest:
		res, err = o.rejectUser(pid, r)
	case *KickUserRequest:
		res, err = o.kickUser(pid, r)
	case *GetRouterRtpCapabilitiesRequest:
		res, err = o.routerCapabilities(ctx, r)
	case *PingRequest:
		res, err = o.ping(pid, r)
	default:
		err = fmt.Errorf("unknown request %T: %w", req, domain.ErrBadRequest)
	}
	if err != nil {
		log.Info().
			Err(err).
			Str("module", "orch").
			Str("peer", string(pid)).
			Str("op", req.Op()).
			Str("code", domain.ErrorCode(err)).
			Msg("request failed")
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) engineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.EngineTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.EngineTimeout)
}

// peerIn resolves the caller's record in roomID.
func (o *Orchestrator) peerIn(pid domain.PeerID, roomID domain.RoomID) (*core.Room, *core.Peer, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	peer, ok := room.Peer(pid)
	if !ok || peer.State() == domain.StateRemoved {
		return nil, nil, domain.ErrPeerNotFound
	}
	return room, peer, nil
}

// activePeerIn is peerIn for operations that need an admitted peer.
func (o *Orchestrator) activePeerIn(pid domain.PeerID, roomID domain.RoomID) (*core.Room, *core.Peer, error) {
	room, peer, err := o.peerIn(pid, roomID)
	if err != nil {
		return nil, nil, err
	}
	if !peer.Active() {
		return nil, nil, domain.ErrNotAdmitted
	}
	return room, peer, nil
}

// notify pushes an event to one connection and applies the back-pressure
// policy when its queue is full.
func (o *Orchestrator) notify(room *core.Room, pid domain.PeerID, event string, payload any) {
	sig, ok := o.Registry.Signal(pid)
	if !ok {
		return
	}
	err := sig.Notify(event, payload)
	if err == nil {
		return
	}
	logger := log.With().
		Str("module", "orch").
		Str("peer", string(pid)).
		Str("event", event).
		Logger()
	if o.Policy == nil {
		logger.Warn().Err(err).Msg("notify failed, event dropped")
		return
	}
	switch o.Policy.OnBackPressure(room, pid, event) {
	case app.KickPeer:
		logger.Warn().Err(err).Msg("slow peer, disconnecting")
		o.Registry.Cancel(pid)
	case app.DropEvent, app.NoAction:
		logger.Warn().Err(err).Msg("notify failed, event dropped")
	}
}

// broadcast pushes to every active peer in room except one.
func (o *Orchestrator) broadcast(room *core.Room, except domain.PeerID, event string, payload any) {
	for _, p := range room.ActivePeers() {
		if p.ID() == except {
			continue
		}
		o.notify(room, p.ID(), event, payload)
	}
}

func (o *Orchestrator) notifyAdmins(room *core.Room, event string, payload any) {
	for _, p := range room.Admins() {
		o.notify(room, p.ID(), event, payload)
	}
}

func (o *Orchestrator) ping(pid domain.PeerID, r *PingRequest) (any, error) {
	msg := r.Message
	if msg == "" {
		msg = "pong"
	}
	pong := PongEvent{Message: msg, Time: time.Now().UnixMilli()}
	o.notify(nil, pid, EventPong, pong)
	return pong, nil
}
