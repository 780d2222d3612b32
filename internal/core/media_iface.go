package core

import (
	"context"

	"github.com/dkeye/Huddle/internal/domain"
)

// Closable is implemented by every engine handle. OnClose callbacks run once
// when the handle closes for any reason; registering on an already closed
// handle runs the callback immediately.
type Closable interface {
	OnClose(func())
	Close()
}

// MediaWorker is the root of the media engine.
type MediaWorker interface {
	CreateRouter(ctx context.Context, codecs []domain.RtpCodecCapability) (MediaRouter, error)
	// Died is closed (after delivering the cause) when the engine can no longer work.
	Died() <-chan error
	Close()
}

type MediaRouter interface {
	ID() string
	RtpCapabilities() domain.RtpCapabilities
	CanConsume(producerID string, caps domain.RtpCapabilities) bool
	CreateTransport(ctx context.Context, dir domain.Direction) (MediaTransport, error)
	Close() error
}

type MediaTransport interface {
	Closable
	ID() string
	Direction() domain.Direction
	Params() domain.TransportParams
	Connect(ctx context.Context, params domain.ConnectParams) error
	Produce(ctx context.Context, kind domain.MediaKind, rtp domain.RtpParameters) (MediaProducer, error)
	// Consume creates a paused consumer of producerID.
	Consume(ctx context.Context, producerID string, caps domain.RtpCapabilities) (MediaConsumer, error)
}

type MediaProducer interface {
	Closable
	ID() string
	Kind() domain.MediaKind
}

type MediaConsumer interface {
	Closable
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	RtpParameters() domain.RtpParameters
	ProducerPaused() bool
	Resume(ctx context.Context) error
}
