package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{ErrRoomNotFound, "not_found"},
		{ErrRoomClosed, "not_found"},
		{fmt.Errorf("consume: %w", ErrProducerNotFound), "not_found"},
		{ErrNotAdmitted, "unauthorized"},
		{ErrCannotConsume, "capability_mismatch"},
		{ErrDisplayNameTooLong, "bad_request"},
		{ErrRateLimited, "rate_limited"},
		{EngineError("create router", errors.New("boom")), "engine_failure"},
		{EngineError("create transport", context.DeadlineExceeded), "timeout"},
		{errors.New("something else"), "internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
	assert.Empty(t, ErrorCode(nil))
}

func TestEngineErrorKeepsCause(t *testing.T) {
	cause := errors.New("worker closed")
	err := EngineError("produce", cause)
	assert.ErrorIs(t, err, ErrEngineFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "produce: engine failure: worker closed", err.Error())
	assert.NoError(t, EngineError("produce", nil))

	kept := EngineError("connect", ErrWrongDirection)
	assert.Equal(t, "bad_request", ErrorCode(kept))
	assert.NotErrorIs(t, kept, ErrEngineFailure)
}

func TestNormalizeDisplayName(t *testing.T) {
	name, err := NormalizeDisplayName("  Ann  ", "Guest")
	assert.NoError(t, err)
	assert.Equal(t, "Ann", name)

	name, err = NormalizeDisplayName("   ", "")
	assert.NoError(t, err)
	assert.Equal(t, DefaultDisplayName, name)

	_, err = NormalizeDisplayName("a very long display name that keeps on going", "Guest")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestParseAdminPolicy(t *testing.T) {
	p, err := ParseAdminPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, AdminPolicyMulti, p)

	p, err = ParseAdminPolicy("first")
	assert.NoError(t, err)
	assert.Equal(t, AdminPolicyFirst, p)

	_, err = ParseAdminPolicy("none")
	assert.ErrorIs(t, err, ErrUnknownAdminPolicy)
}
