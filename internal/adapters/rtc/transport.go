package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransportClosed   = errors.New("rtc: transport closed")
	ErrAlreadyConnected  = fmt.Errorf("transport already connected: %w", domain.ErrBadRequest)
	ErrMissingParameters = fmt.Errorf("dtlsParameters and iceParameters are required: %w", domain.ErrBadRequest)
)

// Transport is one ORTC ICE+DTLS stack. The server side is ICE-controlled;
// the DTLS role follows the remote parameters.
type Transport struct {
	closer
	router *Router
	id     string
	dir    domain.Direction
	logger zerolog.Logger

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	params   domain.TransportParams

	connectOnce sync.Once
	ready       chan struct{}
	// done is closed when the transport closes.
	done chan struct{}

	mu        sync.Mutex
	producers []*Producer
	consumers []*Consumer
}

func newTransport(ctx context.Context, r *Router, dir domain.Direction) (*Transport, error) {
	id := uuid.NewString()
	t := &Transport{
		router: r,
		id:     id,
		dir:    dir,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		logger: log.With().
			Str("module", "rtc").
			Str("router", r.id).
			Str("transport", id).
			Str("direction", string(dir)).
			Logger(),
	}

	var err error
	t.gatherer, err = r.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: r.worker.iceServers()})
	if err != nil {
		return nil, err
	}
	t.ice = r.api.NewICETransport(t.gatherer)
	t.dtls, err = r.api.NewDTLSTransport(t.ice, nil)
	if err != nil {
		t.teardown()
		return nil, err
	}
	t.dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		t.logger.Debug().Str("dtls_state", s.String()).Msg("DTLS state")
		if s == webrtc.DTLSTransportStateFailed || s == webrtc.DTLSTransportStateClosed {
			go t.Close()
		}
	})

	gathered := make(chan struct{})
	var gatherOnce sync.Once
	t.gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			gatherOnce.Do(func() { close(gathered) })
		}
	})
	if err = t.gatherer.Gather(); err != nil {
		t.teardown()
		return nil, err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		t.teardown()
		return nil, ctx.Err()
	}

	if err = t.buildParams(); err != nil {
		t.teardown()
		return nil, err
	}
	t.logger.Info().Msg("transport created")
	return t, nil
}

func (t *Transport) buildParams() error {
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return err
	}
	candidates, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return err
	}
	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return err
	}
	t.params.ID = t.id
	if t.params.IceParameters, err = json.Marshal(iceParams); err != nil {
		return err
	}
	if t.params.IceCandidates, err = json.Marshal(candidates); err != nil {
		return err
	}
	t.params.DtlsParameters, err = json.Marshal(dtlsParams)
	return err
}

func (t *Transport) ID() string                     { return t.id }
func (t *Transport) Direction() domain.Direction    { return t.dir }
func (t *Transport) Params() domain.TransportParams { return t.params }

// Connect applies the remote parameters and starts ICE and DTLS in the
// background. A failed handshake closes the transport.
func (t *Transport) Connect(ctx context.Context, params domain.ConnectParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.isClosed() {
		return ErrTransportClosed
	}
	if len(params.DtlsParameters) == 0 || len(params.IceParameters) == 0 {
		return ErrMissingParameters
	}
	var (
		dtlsParams webrtc.DTLSParameters
		iceParams  webrtc.ICEParameters
		candidates []webrtc.ICECandidate
	)
	if err := json.Unmarshal(params.DtlsParameters, &dtlsParams); err != nil {
		return fmt.Errorf("dtlsParameters: %w: %w", domain.ErrBadRequest, err)
	}
	if err := json.Unmarshal(params.IceParameters, &iceParams); err != nil {
		return fmt.Errorf("iceParameters: %w: %w", domain.ErrBadRequest, err)
	}
	if len(params.IceCandidates) > 0 {
		if err := json.Unmarshal(params.IceCandidates, &candidates); err != nil {
			return fmt.Errorf("iceCandidates: %w: %w", domain.ErrBadRequest, err)
		}
	}

	started := false
	t.connectOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyConnected
	}
	if len(candidates) > 0 {
		if err := t.ice.SetRemoteCandidates(candidates); err != nil {
			return err
		}
	}

	go func() {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, iceParams, &role); err != nil {
			t.logger.Warn().Err(err).Msg("ICE start failed")
			t.Close()
			return
		}
		if err := t.dtls.Start(dtlsParams); err != nil {
			t.logger.Warn().Err(err).Msg("DTLS start failed")
			t.Close()
			return
		}
		t.logger.Info().Msg("transport connected")
		close(t.ready)
	}()
	return nil
}

// waitReady blocks until DTLS is up, the transport closes or ctx ends.
func (t *Transport) waitReady(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	default:
	}
	select {
	case <-t.ready:
		return nil
	case <-t.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) Produce(ctx context.Context, kind domain.MediaKind, rtp domain.RtpParameters) (core.MediaProducer, error) {
	if t.dir != domain.DirectionSend {
		return nil, domain.ErrWrongDirection
	}
	if err := rtp.Validate(kind); err != nil {
		return nil, err
	}
	return newProducer(ctx, t, kind, rtp)
}

func (t *Transport) Consume(ctx context.Context, producerID string, caps domain.RtpCapabilities) (core.MediaConsumer, error) {
	if t.dir != domain.DirectionRecv {
		return nil, domain.ErrWrongDirection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.isClosed() {
		return nil, ErrTransportClosed
	}
	producer, ok := t.router.producer(producerID)
	if !ok {
		return nil, domain.ErrProducerNotFound
	}
	if !caps.Supports(producer.codec) {
		return nil, domain.ErrCannotConsume
	}
	return newConsumer(t, producer)
}

func (t *Transport) addProducer(p *Producer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed() {
		return false
	}
	t.producers = append(t.producers, p)
	return true
}

func (t *Transport) addConsumer(c *Consumer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed() {
		return false
	}
	t.consumers = append(t.consumers, c)
	return true
}

func (t *Transport) teardown() {
	if t.dtls != nil {
		if err := t.dtls.Stop(); err != nil {
			t.logger.Debug().Err(err).Msg("DTLS stop")
		}
	}
	if t.ice != nil {
		if err := t.ice.Stop(); err != nil {
			t.logger.Debug().Err(err).Msg("ICE stop")
		}
	}
	if err := t.gatherer.Close(); err != nil {
		t.logger.Debug().Err(err).Msg("gatherer close")
	}
}

// Close closes the transport's consumers and producers, then the ICE/DTLS stack.
func (t *Transport) Close() {
	hooks, ok := t.markClosed()
	if !ok {
		return
	}
	close(t.done)
	t.mu.Lock()
	producers, consumers := t.producers, t.consumers
	t.producers, t.consumers = nil, nil
	t.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
	for _, p := range producers {
		p.Close()
	}
	t.teardown()
	t.router.removeTransport(t)
	t.logger.Info().Msg("transport closed")
	runHooks(hooks)
}
