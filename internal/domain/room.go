package domain

import "github.com/google/uuid"

type RoomID string

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// AdminPolicy decides what happens when a second creator joins a room that
// already has an active admin.
type AdminPolicy string

const (
	// AdminPolicyMulti lets every creator become an admin.
	AdminPolicyMulti AdminPolicy = "multi"
	// AdminPolicyFirst keeps the first active admin; later creators join as guests.
	AdminPolicyFirst AdminPolicy = "first"
)

func ParseAdminPolicy(s string) (AdminPolicy, error) {
	switch AdminPolicy(s) {
	case "", AdminPolicyMulti:
		return AdminPolicyMulti, nil
	case AdminPolicyFirst:
		return AdminPolicyFirst, nil
	}
	return "", ErrUnknownAdminPolicy
}
