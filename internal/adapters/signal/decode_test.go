package signal

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	ctl := NewSignalWSController(nil, nil, Options{})

	tests := []struct {
		name    string
		in      inbound
		wantErr bool
		check   func(t *testing.T, req orch.Request)
	}{
		{
			name: "create room without data",
			in:   inbound{ID: 1, Type: orch.OpCreateRoom},
			check: func(t *testing.T, req orch.Request) {
				assert.IsType(t, &orch.CreateRoomRequest{}, req)
			},
		},
		{
			name: "null data",
			in:   inbound{ID: 1, Type: orch.OpPing, Data: json.RawMessage(`null`)},
		},
		{
			name: "join",
			in:   inbound{ID: 2, Type: orch.OpJoinRoom, Data: json.RawMessage(`{"roomId":"r1","name":"ann","isCreator":true}`)},
			check: func(t *testing.T, req orch.Request) {
				join := req.(*orch.JoinRoomRequest)
				assert.Equal(t, domain.RoomID("r1"), join.RoomID)
				assert.Equal(t, "ann", join.Name)
				assert.True(t, join.IsCreator)
			},
		},
		{
			name:    "unknown type",
			in:      inbound{ID: 3, Type: "explode"},
			wantErr: true,
		},
		{
			name:    "missing room",
			in:      inbound{ID: 4, Type: orch.OpJoinRoom, Data: json.RawMessage(`{"name":"ann"}`)},
			wantErr: true,
		},
		{
			name:    "bad direction",
			in:      inbound{ID: 5, Type: orch.OpCreateWebRtcTransport, Data: json.RawMessage(`{"roomId":"r1","direction":"both"}`)},
			wantErr: true,
		},
		{
			name:    "wrong field type",
			in:      inbound{ID: 6, Type: orch.OpJoinRoom, Data: json.RawMessage(`{"roomId":7}`)},
			wantErr: true,
		},
		{
			name:    "connect without dtls",
			in:      inbound{ID: 7, Type: orch.OpConnectTransport, Data: json.RawMessage(`{"roomId":"r1","transportId":"t"}`)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ctl.decode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in.Type, req.Op())
			if tt.check != nil {
				tt.check(t, req)
			}
		})
	}
}

func TestValidationErrorNamesWireFields(t *testing.T) {
	ctl := NewSignalWSController(nil, nil, Options{})
	_, err := ctl.decode(inbound{Type: orch.OpKickUser, Data: json.RawMessage(`{"roomId":"r1"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userId")
}
