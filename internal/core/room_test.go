package core_test

import (
	"context"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/core/mediatest"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomPeers(t *testing.T) {
	room := core.NewRoom("r1", 1)

	a, err := room.GetOrAddPeer("a", "")
	require.NoError(t, err)
	again, err := room.GetOrAddPeer("a", "")
	require.NoError(t, err)
	assert.Same(t, a, again)

	g, err := room.GetOrAddPeer("g", "")
	require.NoError(t, err)

	a.Activate(domain.RoleAdmin)
	g.Hold()

	assert.Len(t, room.ActivePeers(), 1)
	assert.Len(t, room.WaitingPeers(), 1)
	assert.True(t, room.HasAdminExcept("g"))
	assert.False(t, room.HasAdminExcept("a"))
	assert.Equal(t, core.RoomInfo{ID: "r1", Peers: 1, Waiting: 1}, room.Info())

	infos := room.PeerInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, domain.PeerID("a"), infos[0].ID)
}

func TestRoomRemovePeerChecksIdentity(t *testing.T) {
	room := core.NewRoom("r1", 1)
	p, err := room.GetOrAddPeer("a", "")
	require.NoError(t, err)

	stale := core.NewPeer("a", "")
	assert.False(t, room.RemovePeer(stale))
	assert.True(t, room.RemovePeer(p))
	assert.False(t, room.RemovePeer(p))
}

func TestRoomCloseIfEmpty(t *testing.T) {
	room := core.NewRoom("r1", 1)
	p, err := room.GetOrAddPeer("a", "")
	require.NoError(t, err)
	assert.False(t, room.CloseIfEmpty())

	room.RemovePeer(p)
	assert.True(t, room.CloseIfEmpty())
	assert.False(t, room.CloseIfEmpty())

	_, err = room.GetOrAddPeer("b", "")
	assert.ErrorIs(t, err, domain.ErrRoomClosed)
	assert.False(t, room.SetRouter(newRouter(t)))
}

func TestRoomRouterDetachOnce(t *testing.T) {
	room := core.NewRoom("r1", 1)
	router := newRouter(t)
	require.True(t, room.SetRouter(router))
	assert.False(t, room.SetRouter(newRouter(t)))

	assert.Same(t, router, room.DetachRouter())
	assert.Nil(t, room.DetachRouter())
}

func TestRoomFindProducerSkipsWaiting(t *testing.T) {
	ctx := context.Background()
	router := newRouter(t)
	room := core.NewRoom("r1", 1)

	active, _ := room.GetOrAddPeer("a", "")
	active.Activate(domain.RoleGuest)
	waiting, _ := room.GetOrAddPeer("w", "")
	waiting.Hold()

	for _, p := range []*core.Peer{active, waiting} {
		tr, err := router.CreateTransport(ctx, domain.DirectionSend)
		require.NoError(t, err)
		pr, err := tr.Produce(ctx, domain.KindAudio, mediatest.AudioParams())
		require.NoError(t, err)
		// registration is gated by state only after removal
		require.True(t, p.RegisterTransport(tr))
		require.True(t, p.RegisterProducer(pr))
	}

	producers := room.ProducersExcept("nobody")
	require.Len(t, producers, 1)
	assert.Equal(t, domain.PeerID("a"), producers[0].PeerID)

	_, owner, ok := room.FindProducer(producers[0].ProducerID)
	require.True(t, ok)
	assert.Same(t, active, owner)
	assert.Empty(t, room.ProducersExcept("a"))
}

func TestRoomApprovedClients(t *testing.T) {
	room := core.NewRoom("r1", 1)
	assert.False(t, room.ClientApproved("tok"))
	room.ApproveClient("tok")
	assert.True(t, room.ClientApproved("tok"))
	room.ApproveClient("")
	assert.False(t, room.ClientApproved(""))
	room.RevokeClient("tok")
	assert.False(t, room.ClientApproved("tok"))
}
