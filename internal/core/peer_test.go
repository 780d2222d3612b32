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

func newRouter(t *testing.T) core.MediaRouter {
	t.Helper()
	r, err := mediatest.New().CreateRouter(context.Background(), domain.DefaultMediaCodecs())
	require.NoError(t, err)
	return r
}

func TestPeerReleaseAllEmptiesMaps(t *testing.T) {
	ctx := context.Background()
	router := newRouter(t)
	p := core.NewPeer("p1", "")
	require.True(t, p.Activate(domain.RoleGuest))

	send, err := router.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	recv, err := router.CreateTransport(ctx, domain.DirectionRecv)
	require.NoError(t, err)
	require.True(t, p.RegisterTransport(send))
	require.True(t, p.RegisterTransport(recv))

	pr, err := send.Produce(ctx, domain.KindAudio, mediatest.AudioParams())
	require.NoError(t, err)
	require.True(t, p.RegisterProducer(pr))
	c, err := recv.Consume(ctx, pr.ID(), mediatest.Caps())
	require.NoError(t, err)
	require.True(t, p.RegisterConsumer(c))

	tr, prs, cs := p.Counts()
	assert.Equal(t, [3]int{2, 1, 1}, [3]int{tr, prs, cs})

	closed := p.ReleaseAll()
	assert.Equal(t, []string{pr.ID()}, closed)
	tr, prs, cs = p.Counts()
	assert.Zero(t, tr+prs+cs)
	assert.True(t, send.(*mediatest.Transport).IsClosed())
	assert.True(t, recv.(*mediatest.Transport).IsClosed())

	assert.Nil(t, p.ReleaseAll(), "second release is a no-op")
}

func TestPeerRegisterAfterRelease(t *testing.T) {
	router := newRouter(t)
	p := core.NewPeer("p1", "")
	p.ReleaseAll()

	tr, err := router.CreateTransport(context.Background(), domain.DirectionSend)
	require.NoError(t, err)
	assert.False(t, p.RegisterTransport(tr))
	_, ok := p.Transport(tr.ID())
	assert.False(t, ok)
}

func TestPeerCloseHookPrunesMap(t *testing.T) {
	ctx := context.Background()
	router := newRouter(t)
	p := core.NewPeer("p1", "")
	p.Activate(domain.RoleGuest)

	send, err := router.CreateTransport(ctx, domain.DirectionSend)
	require.NoError(t, err)
	require.True(t, p.RegisterTransport(send))
	pr, err := send.Produce(ctx, domain.KindVideo, mediatest.VideoParams())
	require.NoError(t, err)
	require.True(t, p.RegisterProducer(pr))

	send.Close()

	_, ok := p.Transport(send.ID())
	assert.False(t, ok)
	_, ok = p.Producer(pr.ID())
	assert.False(t, ok)
}

func TestPeerMarkRemovedOnce(t *testing.T) {
	p := core.NewPeer("p1", "")
	require.True(t, p.Hold())

	prev, ok := p.MarkRemoved()
	assert.True(t, ok)
	assert.Equal(t, domain.StateWaiting, prev)

	_, ok = p.MarkRemoved()
	assert.False(t, ok)
	assert.False(t, p.Approve())
	assert.False(t, p.Activate(domain.RoleAdmin))
}

func TestPeerTransitions(t *testing.T) {
	p := core.NewPeer("p1", "tok")
	info := p.Info()
	assert.True(t, info.MicOn)
	assert.True(t, info.CameraOn)
	assert.Equal(t, domain.DefaultDisplayName, info.Name)

	assert.False(t, p.Approve(), "only waiting peers can be approved")
	require.True(t, p.Hold())
	assert.False(t, p.Hold())
	require.True(t, p.Approve())
	assert.True(t, p.Active())
	assert.True(t, p.Approved())
	assert.False(t, p.AdminActive())

	admin := core.NewPeer("p2", "")
	require.True(t, admin.Activate(domain.RoleAdmin))
	assert.True(t, admin.AdminActive())
	assert.True(t, admin.Info().IsAdmin)
}
