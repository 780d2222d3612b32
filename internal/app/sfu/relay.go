package sfu

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// PacketSource is a producer's incoming track. *webrtc.TrackRemote implements it.
type PacketSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

type Relay struct {
	Src PacketSource

	mu        sync.RWMutex
	outTracks map[string]*OutTrack

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src PacketSource, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		outTracks: make(map[string]*OutTrack),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// loop reads RTP packets from the source track and forwards them to all
// OutTracks. It returns the error that ended it, nil on cancellation.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) (err error) {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			r.markAllDelete()
			err = &PanicError{Value: p}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return nil
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			if ctx.Err() != nil {
				r.markAllDelete()
				return nil
			}
			logger.Info().Err(err).Msg("relay read RTP ended, stopping")
			r.markAllDelete()
			return err
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	var dirty []string
	for consumerID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, consumerID)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Sink.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("consumer", consumerID).
					Msg("relay write RTP error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, consumerID)
			}
		}
	}

	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		if ot, ok := r.outTracks[id]; ok && ot.GetState() == TrackStateDelete {
			delete(r.outTracks, id)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) AddOutTrack(consumerID string, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[consumerID] = ot
}

func (r *Relay) outTrack(consumerID string) (*OutTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ot, ok := r.outTracks[consumerID]
	return ot, ok
}

// PanicError carries a panic recovered inside the media plane.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("media relay panic: %v", e.Value)
}
