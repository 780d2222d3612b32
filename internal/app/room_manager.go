package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RoomRegistry owns every live room and its lazily created media router.
type RoomRegistry struct {
	worker        core.MediaWorker
	codecs        []domain.RtpCodecCapability
	engineTimeout time.Duration

	mu         sync.RWMutex
	rooms      map[domain.RoomID]*core.Room
	generation uint64

	routers singleflight.Group
}

func NewRoomRegistry(worker core.MediaWorker, codecs []domain.RtpCodecCapability, engineTimeout time.Duration) *RoomRegistry {
	if len(codecs) == 0 {
		codecs = domain.DefaultMediaCodecs()
	}
	return &RoomRegistry{
		worker:        worker,
		codecs:        codecs,
		engineTimeout: engineTimeout,
		rooms:         make(map[domain.RoomID]*core.Room),
	}
}

func (rr *RoomRegistry) GetOrCreate(id domain.RoomID) *core.Room {
	rr.mu.RLock()
	room, ok := rr.rooms[id]
	rr.mu.RUnlock()
	if ok && !room.Closed() {
		return room
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok = rr.rooms[id]; ok && !room.Closed() {
		return room
	}
	rr.generation++
	room = core.NewRoom(id, rr.generation)
	rr.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("created room")
	return room
}

// CreateRoom registers a room under a fresh id. The router is deferred.
func (rr *RoomRegistry) CreateRoom() *core.Room {
	return rr.GetOrCreate(domain.NewRoomID())
}

func (rr *RoomRegistry) Get(id domain.RoomID) (*core.Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.rooms[id]
	if !ok || room.Closed() {
		return nil, false
	}
	return room, true
}

func (rr *RoomRegistry) List() []core.RoomInfo {
	rr.mu.RLock()
	rooms := make([]*core.Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	rr.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	return out
}

func (rr *RoomRegistry) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

// AttachRouter returns the room's router, creating it on first use. Concurrent
// callers for the same room share one engine call. The call runs detached from
// ctx so that one caller giving up does not fail the others; ctx only bounds
// how long this caller waits.
func (rr *RoomRegistry) AttachRouter(ctx context.Context, room *core.Room) (core.MediaRouter, error) {
	if mr := room.Router(); mr != nil {
		return mr, nil
	}
	ch := rr.routers.DoChan(room.Key(), func() (any, error) {
		if mr := room.Router(); mr != nil {
			return mr, nil
		}
		if room.Closed() {
			return nil, domain.ErrRoomClosed
		}
		cctx, cancel := rr.engineContext()
		defer cancel()
		mr, err := rr.worker.CreateRouter(cctx, rr.codecs)
		if err != nil {
			return nil, domain.EngineError("create router", err)
		}
		if !room.SetRouter(mr) {
			// closed while the engine was busy
			rr.closeRouter(room.ID(), mr)
			if cur := room.Router(); cur != nil {
				return cur, nil
			}
			return nil, domain.ErrRoomClosed
		}
		log.Info().
			Str("module", "app.rooms").
			Str("room", string(room.ID())).
			Str("router", mr.ID()).
			Msg("attached router")
		return mr, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(core.MediaRouter), nil
	case <-ctx.Done():
		return nil, domain.EngineError("create router", ctx.Err())
	}
}

func (rr *RoomRegistry) engineContext() (context.Context, context.CancelFunc) {
	if rr.engineTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), rr.engineTimeout)
}

// RemoveRoomIfEmpty deletes an empty room and releases its router exactly
// once. A failing release is logged; the entry goes away regardless.
func (rr *RoomRegistry) RemoveRoomIfEmpty(room *core.Room) bool {
	if !room.CloseIfEmpty() {
		return false
	}
	rr.mu.Lock()
	if cur, ok := rr.rooms[room.ID()]; ok && cur == room {
		delete(rr.rooms, room.ID())
	}
	rr.mu.Unlock()

	if mr := room.DetachRouter(); mr != nil {
		rr.closeRouter(room.ID(), mr)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID())).Msg("removed empty room")
	return true
}

func (rr *RoomRegistry) closeRouter(id domain.RoomID, mr core.MediaRouter) {
	if err := mr.Close(); err != nil {
		log.Warn().
			Err(err).
			Str("module", "app.rooms").
			Str("room", string(id)).
			Str("router", mr.ID()).
			Msg("router release failed")
	}
}
