package orch

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Server push events.
const (
	EventPeerJoined       = "peerJoined"
	EventPeerLeft         = "peerLeft"
	EventNewProducer      = "newProducer"
	EventProducerClosed   = "producerClosed"
	EventConsumerClosed   = "consumerClosed"
	EventPeerMicUpdate    = "peerMicUpdate"
	EventPeerCameraUpdate = "peerCameraUpdate"
	EventUserWaiting      = "userWaiting"
	EventUserApproved     = "userApproved"
	EventUserRejected     = "userRejected"
	EventUserKicked       = "userKicked"
	EventPong             = "pong"
)

const (
	StatusJoined  = "joined"
	StatusWaiting = "waiting"
)

type CreateRoomResponse struct {
	RoomID domain.RoomID `json:"roomId"`
}

type JoinRoomResponse struct {
	Status          string                  `json:"status"`
	RoomID          domain.RoomID           `json:"roomId"`
	PeerID          domain.PeerID           `json:"peerId"`
	IsAdmin         bool                    `json:"isAdmin"`
	RtpCapabilities *domain.RtpCapabilities `json:"rtpCapabilities,omitempty"`
	Peers           []core.PeerInfo         `json:"peers,omitempty"`
	Producers       []core.ProducerInfo     `json:"producers,omitempty"`
}

type ConnectTransportResponse struct {
	Connected bool `json:"connected"`
}

type ProduceResponse struct {
	ID string `json:"id"`
}

type ConsumeResponse struct {
	ID             string               `json:"id"`
	ProducerID     string               `json:"producerId"`
	Kind           domain.MediaKind     `json:"kind"`
	RtpParameters  domain.RtpParameters `json:"rtpParameters"`
	Type           string               `json:"type"`
	ProducerPaused bool                 `json:"producerPaused"`
}

type ResumeConsumerResponse struct {
	Resumed bool `json:"resumed"`
}

type RouterCapabilitiesResponse struct {
	RtpCapabilities domain.RtpCapabilities `json:"rtpCapabilities"`
}

// Ack answers requests that have no result. Admin actions always get it,
// applied or not.
type Ack struct {
	OK bool `json:"ok"`
}

type PeerLeftEvent struct {
	ID domain.PeerID `json:"id"`
}

type ProducerClosedEvent struct {
	ProducerID string        `json:"producerId"`
	PeerID     domain.PeerID `json:"peerId"`
}

type ConsumerClosedEvent struct {
	ConsumerID string `json:"consumerId"`
	ProducerID string `json:"producerId"`
}

type PeerMicEvent struct {
	PeerID domain.PeerID `json:"peerId"`
	MicOn  bool          `json:"micOn"`
}

type PeerCameraEvent struct {
	PeerID   domain.PeerID `json:"peerId"`
	CameraOn bool          `json:"cameraOn"`
}

type UserWaitingEvent struct {
	ID   domain.PeerID `json:"id"`
	Name string        `json:"name"`
}

type RoomEvent struct {
	RoomID domain.RoomID `json:"roomId"`
}

type PongEvent struct {
	Message string `json:"message,omitempty"`
	Time    int64  `json:"time"`
}
