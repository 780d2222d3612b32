package orch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/core/mediatest"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/require"
)

var errQueueFull = errors.New("queue full")

type event struct {
	name    string
	payload any
}

// recorder is a signal connection that keeps every pushed event.
type recorder struct {
	mu       sync.Mutex
	events   []event
	full     atomic.Bool
	canceled atomic.Bool
}

func (r *recorder) Notify(name string, payload any) error {
	if r.full.Load() {
		return errQueueFull
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name: name, payload: payload})
	return nil
}

func (r *recorder) Close() {}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].name == name {
			return r.events[i].payload, true
		}
	}
	return nil, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	t      *testing.T
	engine *mediatest.Engine
	o      *orch.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine := mediatest.New()
	return &harness{
		t:      t,
		engine: engine,
		o: &orch.Orchestrator{
			Registry:      app.NewRegistry(),
			Rooms:         app.NewRoomRegistry(engine, nil, time.Second),
			Admission:     app.NewAdmissionController(domain.AdminPolicyMulti),
			Policy:        app.SimplePolicy{},
			EngineTimeout: time.Second,
			DefaultName:   domain.DefaultDisplayName,
		},
	}
}

func (h *harness) connect(pid domain.PeerID) *recorder {
	rec := &recorder{}
	h.o.Connect(pid, "tok-"+string(pid), rec, func() { rec.canceled.Store(true) })
	return rec
}

func (h *harness) do(pid domain.PeerID, req orch.Request) (any, error) {
	return h.o.Handle(context.Background(), pid, req)
}

func (h *harness) join(pid domain.PeerID, room domain.RoomID, creator bool) orch.JoinRoomResponse {
	h.t.Helper()
	res, err := h.do(pid, &orch.JoinRoomRequest{RoomID: room, Name: string(pid), IsCreator: creator})
	require.NoError(h.t, err)
	return res.(orch.JoinRoomResponse)
}

func (h *harness) transport(pid domain.PeerID, room domain.RoomID, dir domain.Direction) string {
	h.t.Helper()
	res, err := h.do(pid, &orch.CreateTransportRequest{RoomID: room, Direction: dir})
	require.NoError(h.t, err)
	return res.(domain.TransportParams).ID
}

func (h *harness) produce(pid domain.PeerID, room domain.RoomID, transportID string, kind domain.MediaKind) string {
	h.t.Helper()
	params := mediatest.AudioParams()
	if kind == domain.KindVideo {
		params = mediatest.VideoParams()
	}
	res, err := h.do(pid, &orch.ProduceRequest{RoomID: room, TransportID: transportID, Kind: kind, RtpParameters: params})
	require.NoError(h.t, err)
	return res.(orch.ProduceResponse).ID
}

func (h *harness) consume(pid domain.PeerID, room domain.RoomID, transportID, producerID string) orch.ConsumeResponse {
	h.t.Helper()
	res, err := h.do(pid, &orch.ConsumeRequest{
		RoomID:          room,
		ProducerID:      producerID,
		TransportID:     transportID,
		RtpCapabilities: mediatest.Caps(),
	})
	require.NoError(h.t, err)
	return res.(orch.ConsumeResponse)
}
