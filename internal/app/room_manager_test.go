package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/core/mediatest"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachRouterOnceUnderConcurrency(t *testing.T) {
	engine := mediatest.New()
	engine.RouterGate = make(chan struct{})
	rooms := app.NewRoomRegistry(engine, nil, time.Second)
	room := rooms.GetOrCreate("r1")

	const callers = 16
	var wg sync.WaitGroup
	routers := make([]core.MediaRouter, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			routers[i], errs[i] = rooms.AttachRouter(context.Background(), rooms.GetOrCreate("r1"))
		}()
	}
	require.Eventually(t, func() bool { return engine.RoutersCreated() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(engine.RouterGate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, room.Router(), routers[i])
	}
	assert.Equal(t, 1, engine.RoutersCreated())
}

func TestAttachRouterFailureIsEngineFailure(t *testing.T) {
	engine := mediatest.New()
	engine.FailRouter = errors.New("boom")
	rooms := app.NewRoomRegistry(engine, nil, time.Second)

	_, err := rooms.AttachRouter(context.Background(), rooms.GetOrCreate("r1"))
	require.ErrorIs(t, err, domain.ErrEngineFailure)
	assert.Equal(t, "engine_failure", domain.ErrorCode(err))

	engine.FailRouter = nil
	mr, err := rooms.AttachRouter(context.Background(), rooms.GetOrCreate("r1"))
	require.NoError(t, err)
	assert.NotNil(t, mr)
}

func TestAttachRouterTimeout(t *testing.T) {
	engine := mediatest.New()
	engine.RouterGate = make(chan struct{})
	defer close(engine.RouterGate)
	rooms := app.NewRoomRegistry(engine, nil, 20*time.Millisecond)

	_, err := rooms.AttachRouter(context.Background(), rooms.GetOrCreate("r1"))
	require.ErrorIs(t, err, domain.ErrEngineTimeout)
	assert.Equal(t, "timeout", domain.ErrorCode(err))
}

func TestRemoveRoomIfEmptyReleasesOnce(t *testing.T) {
	engine := mediatest.New()
	engine.FailRouterClose = errors.New("release failed")
	rooms := app.NewRoomRegistry(engine, nil, time.Second)
	room := rooms.GetOrCreate("r1")
	_, err := rooms.AttachRouter(context.Background(), room)
	require.NoError(t, err)

	p, err := room.GetOrAddPeer("a", "")
	require.NoError(t, err)
	assert.False(t, rooms.RemoveRoomIfEmpty(room))

	room.RemovePeer(p)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms.RemoveRoomIfEmpty(room)
		}()
	}
	wg.Wait()

	_, ok := rooms.Get("r1")
	assert.False(t, ok)
	assert.Zero(t, rooms.Len())
	assert.Equal(t, 1, engine.RoutersClosed())

	fresh := rooms.GetOrCreate("r1")
	assert.NotSame(t, room, fresh)
	assert.NotEqual(t, room.Key(), fresh.Key())
}

func TestAttachRouterToRoomClosedMidFlight(t *testing.T) {
	engine := mediatest.New()
	engine.RouterGate = make(chan struct{})
	rooms := app.NewRoomRegistry(engine, nil, time.Second)
	room := rooms.GetOrCreate("r1")

	done := make(chan error, 1)
	go func() {
		_, err := rooms.AttachRouter(context.Background(), room)
		done <- err
	}()
	require.Eventually(t, func() bool { return engine.RoutersCreated() == 1 }, time.Second, time.Millisecond)
	require.True(t, rooms.RemoveRoomIfEmpty(room))
	close(engine.RouterGate)

	require.ErrorIs(t, <-done, domain.ErrRoomClosed)
	assert.Equal(t, 1, engine.RoutersCreated())
	assert.Equal(t, 1, engine.RoutersClosed())
}

func TestListRooms(t *testing.T) {
	rooms := app.NewRoomRegistry(mediatest.New(), nil, time.Second)
	created := rooms.CreateRoom()
	assert.NotEmpty(t, created.ID())

	infos := rooms.List()
	require.Len(t, infos, 1)
	assert.Equal(t, created.ID(), infos[0].ID)
	assert.False(t, infos[0].HasRouter)
}
