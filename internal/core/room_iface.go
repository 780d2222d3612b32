package core

import "github.com/dkeye/Huddle/internal/domain"

// PeerInfo is a read-only view of a peer for the wire (no engine handles).
type PeerInfo struct {
	ID       domain.PeerID `json:"id"`
	Name     string        `json:"name"`
	MicOn    bool          `json:"micOn"`
	CameraOn bool          `json:"cameraOn"`
	IsAdmin  bool          `json:"isAdmin"`
}

type ProducerInfo struct {
	ProducerID string           `json:"producerId"`
	PeerID     domain.PeerID    `json:"peerId"`
	Kind       domain.MediaKind `json:"kind"`
}

type RoomInfo struct {
	ID        domain.RoomID `json:"id"`
	Peers     int           `json:"peers"`
	Waiting   int           `json:"waiting"`
	HasRouter bool          `json:"hasRouter"`
}
