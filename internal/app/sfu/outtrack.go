package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

// PacketSink is where a relay writes packets for one consumer.
// *webrtc.TrackLocalStaticRTP implements it.
type PacketSink interface {
	WriteRTP(p *rtp.Packet) error
}

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

func (s TrackState) String() string {
	switch s {
	case TrackStateOk:
		return "ok"
	case TrackStateMuted:
		return "muted"
	case TrackStateDelete:
		return "delete"
	}
	return "unknown"
}

// OutTrack represents a single outgoing track to a consumer.
type OutTrack struct {
	Sink  PacketSink
	state atomic.Int32
}

// NewOutTrack returns a muted out track; consumers start paused.
func NewOutTrack(sink PacketSink) *OutTrack {
	ot := &OutTrack{Sink: sink}
	ot.MarkMuted()
	return ot
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

// MarkOk unmutes the track unless it is already marked for deletion.
func (ot *OutTrack) MarkOk() bool {
	return ot.state.CompareAndSwap(int32(TrackStateMuted), int32(TrackStateOk)) ||
		ot.GetState() == TrackStateOk
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
