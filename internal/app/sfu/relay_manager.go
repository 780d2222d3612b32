package sfu

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// RelayManager owns one relay per producer.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[string]*Relay

	// onPanic is told about a panic in any relay loop.
	onPanic func(error)
}

func NewRelayManager(onPanic func(error)) *RelayManager {
	return &RelayManager{
		relays:  make(map[string]*Relay),
		onPanic: onPanic,
	}
}

// StartRelay creates a new Relay for producerID and starts its loop. onEnd
// runs once the loop stops on its own (source ended or failed).
func (m *RelayManager) StartRelay(ctx context.Context, producerID string, src PacketSource, onEnd func(error)) {
	logger := log.With().
		Str("module", "relay").
		Str("producer", producerID).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)

	m.mu.Lock()
	if old, ok := m.relays[producerID]; ok {
		logger.Info().Msg("replacing existing relay for producer")
		old.markAllDelete()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[producerID] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go func() {
		err := relay.loop(relayCtx, &logger)
		m.remove(producerID, relay)
		var pe *PanicError
		if errors.As(err, &pe) {
			logger.Error().Err(err).Msg("relay panicked")
			if m.onPanic != nil {
				m.onPanic(err)
			}
		}
		if onEnd != nil && relayCtx.Err() == nil {
			onEnd(err)
		}
		cancel()
	}()
}

func (m *RelayManager) remove(producerID string, relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.relays[producerID]; ok && cur == relay {
		delete(m.relays, producerID)
	}
}

func (m *RelayManager) relay(producerID string) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[producerID]
	return r, ok
}

// AddSubscriber attaches a muted OutTrack for consumerID to the relay of producerID.
func (m *RelayManager) AddSubscriber(producerID, consumerID string, sink PacketSink) (*OutTrack, bool) {
	relay, ok := m.relay(producerID)
	if !ok {
		return nil, false
	}
	ot := NewOutTrack(sink)
	relay.AddOutTrack(consumerID, ot)
	return ot, true
}

// Resume starts forwarding to a consumer's OutTrack.
func (m *RelayManager) Resume(producerID, consumerID string) bool {
	relay, ok := m.relay(producerID)
	if !ok {
		return false
	}
	ot, ok := relay.outTrack(consumerID)
	if !ok {
		return false
	}
	return ot.MarkOk()
}

// MarkSubscriberDelete marks the consumer's OutTrack as TrackStateDelete.
func (m *RelayManager) MarkSubscriberDelete(producerID, consumerID string) {
	relay, ok := m.relay(producerID)
	if !ok {
		return
	}
	if ot, ok := relay.outTrack(consumerID); ok {
		ot.MarkDelete()
	}
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(producerID string) {
	m.mu.Lock()
	relay, ok := m.relays[producerID]
	if ok {
		delete(m.relays, producerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	if relay.cancel != nil {
		relay.cancel()
	}
}

// HasRelay reports whether a relay exists for producerID.
func (m *RelayManager) HasRelay(producerID string) bool {
	_, ok := m.relay(producerID)
	return ok
}

// StopAll stops every relay.
func (m *RelayManager) StopAll() {
	m.mu.Lock()
	relays := m.relays
	m.relays = make(map[string]*Relay)
	m.mu.Unlock()
	for _, r := range relays {
		r.markAllDelete()
		if r.cancel != nil {
			r.cancel()
		}
	}
}
