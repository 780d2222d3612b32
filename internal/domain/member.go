package domain

type Role int

const (
	RoleGuest Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "guest"
}

// PeerState is the admission state of a peer inside a room.
//
//	connecting -> {active | waiting} -> removed
//
// An active peer with RoleAdmin is what the waiting room treats as Admin-Active.
type PeerState int

const (
	StateConnecting PeerState = iota
	StateWaiting
	StateActive
	StateRemoved
)

func (s PeerState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateRemoved:
		return "removed"
	}
	return "unknown"
}

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool { return k == KindAudio || k == KindVideo }

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func (d Direction) Valid() bool { return d == DirectionSend || d == DirectionRecv }
