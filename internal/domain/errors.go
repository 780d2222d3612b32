package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error categories. Every error surfaced to a client wraps one of them.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEngineFailure      = errors.New("engine failure")
	ErrEngineTimeout      = errors.New("engine timeout")
	ErrCapabilityMismatch = errors.New("capability mismatch")
	ErrBadRequest         = errors.New("bad request")
	ErrRateLimited        = errors.New("rate limited")
)

var (
	ErrRoomNotFound      = fmt.Errorf("room %w", ErrNotFound)
	ErrPeerNotFound      = fmt.Errorf("peer %w", ErrNotFound)
	ErrTransportNotFound = fmt.Errorf("transport %w", ErrNotFound)
	ErrProducerNotFound  = fmt.Errorf("producer %w", ErrNotFound)
	ErrConsumerNotFound  = fmt.Errorf("consumer %w", ErrNotFound)

	// ErrRoomClosed is returned when a room was garbage collected between lookup and use.
	ErrRoomClosed = fmt.Errorf("room closed: %w", ErrNotFound)

	ErrNotAdmitted   = fmt.Errorf("not admitted: %w", ErrUnauthorized)
	ErrNotOwnPeer    = fmt.Errorf("cannot update another peer: %w", ErrUnauthorized)
	ErrCannotConsume = fmt.Errorf("cannot consume: %w", ErrCapabilityMismatch)

	ErrDisplayNameTooLong = fmt.Errorf("display name too long: %w", ErrBadRequest)
	ErrWrongDirection     = fmt.Errorf("transport direction mismatch: %w", ErrBadRequest)
	ErrUnknownAdminPolicy = errors.New("unknown admin policy")
)

// ErrorCode maps an error to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrCapabilityMismatch):
		return "capability_mismatch"
	case errors.Is(err, ErrEngineTimeout):
		return "timeout"
	case errors.Is(err, ErrEngineFailure):
		return "engine_failure"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	}
	return "internal"
}

// EngineError wraps a media engine failure for operation op. Deadline errors
// become ErrEngineTimeout so clients can tell a hung engine from a failing one.
// Errors that already carry a category keep it.
func EngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	if categorised(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrEngineTimeout)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrEngineFailure, err)
}

func categorised(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrUnauthorized, ErrEngineFailure, ErrEngineTimeout,
		ErrCapabilityMismatch, ErrBadRequest, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
