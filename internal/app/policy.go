package app

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	KickPeer
)

// Policy decides what happens to a peer whose signaling queue is full.
type Policy interface {
	OnBackPressure(room *core.Room, peer domain.PeerID, event string) BackpressureAction
}

// SimplePolicy disconnects slow peers; the client reconnects and rejoins
// with a fresh snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Room, domain.PeerID, string) BackpressureAction {
	return KickPeer
}

// LenientPolicy drops the event and keeps the peer.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(*core.Room, domain.PeerID, string) BackpressureAction {
	return DropEvent
}
