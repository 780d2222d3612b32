package rtc

import (
	"context"
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Producer receives one client stream on a send transport and feeds the
// relay that fans it out to consumers.
type Producer struct {
	closer
	transport *Transport
	id        string
	kind      domain.MediaKind
	rtp       domain.RtpParameters
	codec     domain.RtpCodecParameters
	ssrc      uint32
	receiver  *webrtc.RTPReceiver
	logger    zerolog.Logger
}

func newProducer(ctx context.Context, t *Transport, kind domain.MediaKind, params domain.RtpParameters) (*Producer, error) {
	codec, _ := params.PrimaryCodec()
	if !t.router.caps.Supports(codec) {
		return nil, fmt.Errorf("codec %s not routed: %w", codec.MimeType, domain.ErrBadRequest)
	}
	receiver, err := t.router.api.NewRTPReceiver(codecType(kind), t.dtls)
	if err != nil {
		return nil, err
	}
	if err := t.waitReady(ctx); err != nil {
		_ = receiver.Stop()
		return nil, err
	}
	ssrc := params.Encodings[0].SSRC
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC:        webrtc.SSRC(ssrc),
				PayloadType: webrtc.PayloadType(codec.PayloadType),
			},
		}},
	})
	if err != nil {
		_ = receiver.Stop()
		return nil, err
	}

	id := uuid.NewString()
	p := &Producer{
		transport: t,
		id:        id,
		kind:      kind,
		rtp:       params,
		codec:     codec,
		ssrc:      ssrc,
		receiver:  receiver,
		logger:    t.logger.With().Str("producer", id).Str("kind", string(kind)).Logger(),
	}
	if !t.addProducer(p) {
		p.Close()
		return nil, ErrTransportClosed
	}
	t.router.worker.relays.StartRelay(context.Background(), id, receiver.Track(), func(err error) {
		p.logger.Info().Err(err).Msg("producer track ended")
		p.Close()
	})
	if !t.router.addProducer(p) {
		p.Close()
		return nil, ErrRouterClosed
	}
	go p.readRTCP()
	p.logger.Info().Uint32("ssrc", ssrc).Str("codec", codec.MimeType).Msg("producer created")
	return p, nil
}

func (p *Producer) ID() string             { return p.id }
func (p *Producer) Kind() domain.MediaKind { return p.kind }

// readRTCP drains incoming RTCP so the interceptors see sender reports.
func (p *Producer) readRTCP() {
	for {
		if _, _, err := p.receiver.ReadRTCP(); err != nil {
			return
		}
	}
}

// RequestKeyFrame asks the sending client for a key frame.
func (p *Producer) RequestKeyFrame() {
	if p.kind != domain.KindVideo || p.isClosed() {
		return
	}
	_, err := p.transport.dtls.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: p.ssrc},
	})
	if err != nil {
		p.logger.Debug().Err(err).Msg("PLI write failed")
	}
}

// Close stops the relay and closes every consumer of this producer.
func (p *Producer) Close() {
	hooks, ok := p.markClosed()
	if !ok {
		return
	}
	relays := p.transport.router.worker.relays
	relays.StopRelay(p.id)
	for _, c := range p.transport.router.removeProducer(p) {
		c.Close()
	}
	if err := p.receiver.Stop(); err != nil {
		p.logger.Debug().Err(err).Msg("receiver stop")
	}
	p.logger.Info().Msg("producer closed")
	runHooks(hooks)
}
