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

var ErrConsumerClosed = fmt.Errorf("consumer closed: %w", domain.ErrNotFound)

// Consumer sends one producer's stream to a client on a recv transport. It
// starts paused: the relay keeps its out track muted until Resume.
type Consumer struct {
	closer
	transport *Transport
	producer  *Producer
	id        string
	rtp       domain.RtpParameters
	sender    *webrtc.RTPSender
	logger    zerolog.Logger
}

func newConsumer(t *Transport, p *Producer) (*Consumer, error) {
	rc, ok := t.router.caps.Find(p.codec)
	if !ok {
		return nil, domain.ErrCannotConsume
	}
	track, err := webrtc.NewTrackLocalStaticRTP(codecCapability(rc), string(p.kind), p.id)
	if err != nil {
		return nil, err
	}
	sender, err := t.router.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, err
	}
	sendParams := sender.GetParameters()
	if err := sender.Send(sendParams); err != nil {
		_ = sender.Stop()
		return nil, err
	}

	id := uuid.NewString()
	c := &Consumer{
		transport: t,
		producer:  p,
		id:        id,
		sender:    sender,
		logger:    t.logger.With().Str("consumer", id).Str("producer", p.id).Logger(),
		rtp: domain.RtpParameters{
			Mid: id,
			Codecs: []domain.RtpCodecParameters{{
				MimeType:     rc.MimeType,
				PayloadType:  rc.PreferredPayloadType,
				ClockRate:    rc.ClockRate,
				Channels:     rc.Channels,
				Parameters:   rc.Parameters,
				RtcpFeedback: rc.RtcpFeedback,
			}},
			Encodings: []domain.RtpEncodingParameters{{SSRC: uint32(sendParams.Encodings[0].SSRC)}},
		},
	}
	if !t.addConsumer(c) {
		c.Close()
		return nil, ErrTransportClosed
	}
	if !t.router.addConsumer(c) {
		c.Close()
		return nil, domain.ErrProducerNotFound
	}
	if _, ok := t.router.worker.relays.AddSubscriber(p.id, id, track); !ok {
		c.Close()
		return nil, domain.ErrProducerNotFound
	}
	go c.readRTCP()
	c.logger.Info().Msg("consumer created")
	return c, nil
}

func (c *Consumer) ID() string                          { return c.id }
func (c *Consumer) ProducerID() string                  { return c.producer.id }
func (c *Consumer) Kind() domain.MediaKind              { return c.producer.kind }
func (c *Consumer) RtpParameters() domain.RtpParameters { return c.rtp }
func (c *Consumer) ProducerPaused() bool                { return false }

// readRTCP forwards key frame requests from the receiving client to the producer.
func (c *Consumer) readRTCP() {
	for {
		pkts, _, err := c.sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				c.producer.RequestKeyFrame()
			}
		}
	}
}

func (c *Consumer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() || !c.transport.router.worker.relays.Resume(c.producer.id, c.id) {
		return ErrConsumerClosed
	}
	c.producer.RequestKeyFrame()
	c.logger.Debug().Msg("consumer resumed")
	return nil
}

func (c *Consumer) Close() {
	hooks, ok := c.markClosed()
	if !ok {
		return
	}
	c.transport.router.worker.relays.MarkSubscriberDelete(c.producer.id, c.id)
	c.transport.router.removeConsumer(c)
	if err := c.sender.Stop(); err != nil {
		c.logger.Debug().Err(err).Msg("sender stop")
	}
	c.logger.Info().Msg("consumer closed")
	runHooks(hooks)
}
