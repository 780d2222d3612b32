package orch

import (
	"context"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) createTransport(ctx context.Context, pid domain.PeerID, r *CreateTransportRequest) (any, error) {
	room, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	router, err := o.Rooms.AttachRouter(ectx, room)
	if err != nil {
		return nil, err
	}
	t, err := router.CreateTransport(ectx, r.Direction)
	if err != nil {
		return nil, o.engineFailure(peer, "create transport", err)
	}
	// the peer may have left while the engine was busy
	if !peer.RegisterTransport(t) {
		t.Close()
		return nil, domain.ErrPeerNotFound
	}
	log.Info().
		Str("module", "orch").
		Str("room", string(room.ID())).
		Str("peer", string(pid)).
		Str("transport", t.ID()).
		Str("direction", string(r.Direction)).
		Msg("transport created")
	return t.Params(), nil
}

// engineFailure reports a failed engine call. A peer removed while the call
// was pending gets ErrPeerNotFound, whatever the engine said about its
// already closed transport.
func (o *Orchestrator) engineFailure(peer *core.Peer, op string, err error) error {
	if peer.State() == domain.StateRemoved {
		return domain.ErrPeerNotFound
	}
	return domain.EngineError(op, err)
}

func (o *Orchestrator) connectTransport(ctx context.Context, pid domain.PeerID, r *ConnectTransportRequest) (any, error) {
	_, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	t, ok := peer.Transport(r.TransportID)
	if !ok {
		return nil, domain.ErrTransportNotFound
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	err = t.Connect(ectx, domain.ConnectParams{
		DtlsParameters: r.DtlsParameters,
		IceParameters:  r.IceParameters,
		IceCandidates:  r.IceCandidates,
	})
	if err != nil {
		return nil, domain.EngineError("connect transport", err)
	}
	return ConnectTransportResponse{Connected: true}, nil
}

func (o *Orchestrator) produce(ctx context.Context, pid domain.PeerID, r *ProduceRequest) (any, error) {
	room, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	t, ok := peer.Transport(r.TransportID)
	if !ok {
		return nil, domain.ErrTransportNotFound
	}
	if t.Direction() != domain.DirectionSend {
		return nil, domain.ErrWrongDirection
	}
	if err := r.RtpParameters.Validate(r.Kind); err != nil {
		return nil, err
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	pr, err := t.Produce(ectx, r.Kind, r.RtpParameters)
	if err != nil {
		return nil, o.engineFailure(peer, "produce", err)
	}
	if !peer.RegisterProducer(pr) || !peer.Active() {
		pr.Close()
		return nil, domain.ErrPeerNotFound
	}
	// Producers also die with their transport; consumers of it go with them.
	pr.OnClose(func() {
		if peer.State() != domain.StateRemoved {
			o.dropProducer(room, pid, pr.ID())
		}
	})

	info := core.ProducerInfo{ProducerID: pr.ID(), PeerID: pid, Kind: r.Kind}
	o.broadcast(room, pid, EventNewProducer, info)
	log.Info().
		Str("module", "orch").
		Str("room", string(room.ID())).
		Str("peer", string(pid)).
		Str("producer", pr.ID()).
		Str("kind", string(r.Kind)).
		Msg("producer created")
	return ProduceResponse{ID: pr.ID()}, nil
}

func (o *Orchestrator) closeProducer(pid domain.PeerID, r *CloseProducerRequest) (any, error) {
	_, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	pr, ok := peer.Producer(r.ProducerID)
	if !ok {
		return nil, domain.ErrProducerNotFound
	}
	pr.Close()
	return Ack{OK: true}, nil
}

// dropProducer closes every consumer of producerID in room and tells the
// room the producer is gone. Consumer owners learn through consumerClosed.
func (o *Orchestrator) dropProducer(room *core.Room, owner domain.PeerID, producerID string) {
	for _, p := range room.Peers() {
		for _, c := range p.TakeConsumersOf(producerID) {
			c.Close()
		}
	}
	o.broadcast(room, owner, EventProducerClosed, ProducerClosedEvent{ProducerID: producerID, PeerID: owner})
}

func (o *Orchestrator) consume(ctx context.Context, pid domain.PeerID, r *ConsumeRequest) (any, error) {
	room, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	t, ok := peer.Transport(r.TransportID)
	if !ok {
		return nil, domain.ErrTransportNotFound
	}
	if t.Direction() != domain.DirectionRecv {
		return nil, domain.ErrWrongDirection
	}
	if _, _, ok := room.FindProducer(r.ProducerID); !ok {
		return nil, domain.ErrProducerNotFound
	}
	router := room.Router()
	if router == nil || !router.CanConsume(r.ProducerID, r.RtpCapabilities) {
		return nil, domain.ErrCannotConsume
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	c, err := t.Consume(ectx, r.ProducerID, r.RtpCapabilities)
	if err != nil {
		return nil, o.engineFailure(peer, "consume", err)
	}
	if !peer.RegisterConsumer(c) || !peer.Active() {
		c.Close()
		return nil, domain.ErrPeerNotFound
	}
	if _, _, ok := room.FindProducer(r.ProducerID); !ok {
		c.Close()
		return nil, domain.ErrProducerNotFound
	}
	c.OnClose(func() {
		if peer.State() != domain.StateRemoved {
			o.notify(room, pid, EventConsumerClosed, ConsumerClosedEvent{ConsumerID: c.ID(), ProducerID: c.ProducerID()})
		}
	})
	return ConsumeResponse{
		ID:             c.ID(),
		ProducerID:     c.ProducerID(),
		Kind:           c.Kind(),
		RtpParameters:  c.RtpParameters(),
		Type:           "simple",
		ProducerPaused: c.ProducerPaused(),
	}, nil
}

func (o *Orchestrator) resumeConsumer(ctx context.Context, pid domain.PeerID, r *ResumeConsumerRequest) (any, error) {
	_, peer, err := o.activePeerIn(pid, r.RoomID)
	if err != nil {
		return nil, err
	}
	c, ok := peer.Consumer(r.ConsumerID)
	if !ok {
		return nil, domain.ErrConsumerNotFound
	}
	ectx, cancel := o.engineContext(ctx)
	defer cancel()
	if err := c.Resume(ectx); err != nil {
		return nil, domain.EngineError("resume consumer", err)
	}
	return ResumeConsumerResponse{Resumed: true}, nil
}
