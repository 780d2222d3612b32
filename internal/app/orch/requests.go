package orch

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

// Request is one signaling operation. Op names its wire type.
type Request interface {
	Op() string
}

const (
	OpCreateRoom               = "createRoom"
	OpJoinRoom                 = "joinRoom"
	OpLeaveRoom                = "leaveRoom"
	OpCreateWebRtcTransport    = "createWebRtcTransport"
	OpConnectTransport         = "connectTransport"
	OpProduce                  = "produce"
	OpCloseProducer            = "closeProducer"
	OpConsume                  = "consume"
	OpResumeConsumer           = "resumeConsumer"
	OpUpdateMicStatus          = "updateMicStatus"
	OpUpdateCameraStatus       = "updateCameraStatus"
	OpApproveUser              = "approveUser"
	OpRejectUser               = "rejectUser"
	OpKickUser                 = "kickUser"
	OpGetRouterRtpCapabilities = "getRouterRtpCapabilities"
	OpPing                     = "ping"
)

type CreateRoomRequest struct{}

type JoinRoomRequest struct {
	RoomID    domain.RoomID `json:"roomId" validate:"required,max=128"`
	Name      string        `json:"name"`
	IsCreator bool          `json:"isCreator"`
}

type LeaveRoomRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
}

type CreateTransportRequest struct {
	RoomID    domain.RoomID    `json:"roomId" validate:"required"`
	Direction domain.Direction `json:"direction" validate:"required,oneof=send recv"`
}

type ConnectTransportRequest struct {
	RoomID         domain.RoomID   `json:"roomId" validate:"required"`
	TransportID    string          `json:"transportId" validate:"required"`
	DtlsParameters json.RawMessage `json:"dtlsParameters" validate:"required"`
	IceParameters  json.RawMessage `json:"iceParameters,omitempty"`
	IceCandidates  json.RawMessage `json:"iceCandidates,omitempty"`
}

type ProduceRequest struct {
	RoomID        domain.RoomID        `json:"roomId" validate:"required"`
	TransportID   string               `json:"transportId" validate:"required"`
	Kind          domain.MediaKind     `json:"kind" validate:"required,oneof=audio video"`
	RtpParameters domain.RtpParameters `json:"rtpParameters"`
}

type CloseProducerRequest struct {
	RoomID     domain.RoomID `json:"roomId" validate:"required"`
	ProducerID string        `json:"producerId" validate:"required"`
}

type ConsumeRequest struct {
	RoomID          domain.RoomID          `json:"roomId" validate:"required"`
	ProducerID      string                 `json:"producerId" validate:"required"`
	TransportID     string                 `json:"transportId" validate:"required"`
	RtpCapabilities domain.RtpCapabilities `json:"rtpCapabilities"`
}

type ResumeConsumerRequest struct {
	RoomID     domain.RoomID `json:"roomId" validate:"required"`
	ConsumerID string        `json:"consumerId" validate:"required"`
}

type UpdateMicStatusRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	PeerID domain.PeerID `json:"peerId"`
	MicOn  bool          `json:"micOn"`
}

type UpdateCameraStatusRequest struct {
	RoomID   domain.RoomID `json:"roomId" validate:"required"`
	PeerID   domain.PeerID `json:"peerId"`
	CameraOn bool          `json:"cameraOn"`
}

type ApproveUserRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	UserID domain.PeerID `json:"userId" validate:"required"`
}

type RejectUserRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	UserID domain.PeerID `json:"userId" validate:"required"`
}

type KickUserRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
	UserID domain.PeerID `json:"userId" validate:"required"`
}

type GetRouterRtpCapabilitiesRequest struct {
	RoomID domain.RoomID `json:"roomId" validate:"required"`
}

type PingRequest struct {
	Message string `json:"message,omitempty" validate:"max=256"`
}

func (*CreateRoomRequest) Op() string               { return OpCreateRoom }
func (*JoinRoomRequest) Op() string                 { return OpJoinRoom }
func (*LeaveRoomRequest) Op() string                { return OpLeaveRoom }
func (*CreateTransportRequest) Op() string          { return OpCreateWebRtcTransport }
func (*ConnectTransportRequest) Op() string         { return OpConnectTransport }
func (*ProduceRequest) Op() string                  { return OpProduce }
func (*CloseProducerRequest) Op() string            { return OpCloseProducer }
func (*ConsumeRequest) Op() string                  { return OpConsume }
func (*ResumeConsumerRequest) Op() string           { return OpResumeConsumer }
func (*UpdateMicStatusRequest) Op() string          { return OpUpdateMicStatus }
func (*UpdateCameraStatusRequest) Op() string       { return OpUpdateCameraStatus }
func (*ApproveUserRequest) Op() string              { return OpApproveUser }
func (*RejectUserRequest) Op() string               { return OpRejectUser }
func (*KickUserRequest) Op() string                 { return OpKickUser }
func (*GetRouterRtpCapabilitiesRequest) Op() string { return OpGetRouterRtpCapabilities }
func (*PingRequest) Op() string                     { return OpPing }

var requestTypes = map[string]func() Request{
	OpCreateRoom:               func() Request { return &CreateRoomRequest{} },
	OpJoinRoom:                 func() Request { return &JoinRoomRequest{} },
	OpLeaveRoom:                func() Request { return &LeaveRoomRequest{} },
	OpCreateWebRtcTransport:    func() Request { return &CreateTransportRequest{} },
	OpConnectTransport:         func() Request { return &ConnectTransportRequest{} },
	OpProduce:                  func() Request { return &ProduceRequest{} },
	OpCloseProducer:            func() Request { return &CloseProducerRequest{} },
	OpConsume:                  func() Request { return &ConsumeRequest{} },
	OpResumeConsumer:           func() Request { return &ResumeConsumerRequest{} },
	OpUpdateMicStatus:          func() Request { return &UpdateMicStatusRequest{} },
	OpUpdateCameraStatus:       func() Request { return &UpdateCameraStatusRequest{} },
	OpApproveUser:              func() Request { return &ApproveUserRequest{} },
	OpRejectUser:               func() Request { return &RejectUserRequest{} },
	OpKickUser:                 func() Request { return &KickUserRequest{} },
	OpGetRouterRtpCapabilities: func() Request { return &GetRouterRtpCapabilitiesRequest{} },
	OpPing:                     func() Request { return &PingRequest{} },
}

// NewRequest returns an empty request for op, ready to be decoded into.
func NewRequest(op string) (Request, bool) {
	mk, ok := requestTypes[op]
	if !ok {
		return nil, false
	}
	return mk(), true
}
