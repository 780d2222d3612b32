package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/core/mediatest"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireMsg struct {
	ID    uint64          `json:"id"`
	Type  string          `json:"type"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	next uint64
}

func (c *client) request(op string, data any) wireMsg {
	c.t.Helper()
	c.next++
	id := c.next
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(inbound{ID: id, Type: op, Data: raw}))
	for {
		msg := c.read()
		if msg.Type == typeResponse {
			require.Equal(c.t, id, msg.ID)
			return msg
		}
	}
}

func (c *client) read() wireMsg {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wireMsg
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

func newServer(t *testing.T, limiter *JoinRateLimiter) (*orch.Orchestrator, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := mediatest.New()
	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Rooms:         app.NewRoomRegistry(engine, nil, time.Second),
		Admission:     app.NewAdmissionController(domain.AdminPolicyMulti),
		Policy:        app.SimplePolicy{},
		EngineTimeout: time.Second,
		DefaultName:   domain.DefaultDisplayName,
	}
	ctl := NewSignalWSController(o, limiter, Options{PongWait: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", c.Query("ct"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return o, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, token string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?ct="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func TestSignalRoundTrip(t *testing.T) {
	o, url := newServer(t, nil)
	c := dial(t, url, "tok")

	res := c.request(orch.OpCreateRoom, nil)
	require.True(t, res.OK)
	var created orch.CreateRoomResponse
	require.NoError(t, json.Unmarshal(res.Data, &created))
	require.NotEmpty(t, created.RoomID)

	res = c.request(orch.OpJoinRoom, orch.JoinRoomRequest{RoomID: created.RoomID, Name: "ann", IsCreator: true})
	require.True(t, res.OK, "%+v", res.Error)
	var joined orch.JoinRoomResponse
	require.NoError(t, json.Unmarshal(res.Data, &joined))
	assert.Equal(t, orch.StatusJoined, joined.Status)
	assert.True(t, joined.IsAdmin)
	assert.NotNil(t, joined.RtpCapabilities)

	res = c.request(orch.OpCreateWebRtcTransport, orch.CreateTransportRequest{RoomID: created.RoomID, Direction: domain.DirectionSend})
	require.True(t, res.OK)
	var params domain.TransportParams
	require.NoError(t, json.Unmarshal(res.Data, &params))
	assert.NotEmpty(t, params.ID)

	_ = c.conn.Close()
	require.Eventually(t, func() bool {
		_, ok := o.Rooms.Get(created.RoomID)
		return !ok && o.Registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalErrors(t *testing.T) {
	_, url := newServer(t, nil)
	c := dial(t, url, "tok")

	res := c.request("explode", nil)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "bad_request", res.Error.Code)

	res = c.request(orch.OpCreateWebRtcTransport, orch.CreateTransportRequest{RoomID: "nowhere", Direction: domain.DirectionRecv})
	require.NotNil(t, res.Error)
	assert.Equal(t, "not_found", res.Error.Code)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := c.read()
	assert.Equal(t, typeResponse, msg.Type)
	assert.Equal(t, uint64(0), msg.ID)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "bad_request", msg.Error.Code)
}

func TestSignalPing(t *testing.T) {
	_, url := newServer(t, nil)
	c := dial(t, url, "tok")

	require.NoError(t, c.conn.WriteJSON(inbound{ID: 9, Type: orch.OpPing}))
	var gotPush, gotResponse bool
	for !(gotPush && gotResponse) {
		msg := c.read()
		switch msg.Type {
		case orch.EventPong:
			gotPush = true
		case typeResponse:
			assert.True(t, msg.OK)
			assert.Equal(t, uint64(9), msg.ID)
			gotResponse = true
		}
	}
}

func TestSignalPushes(t *testing.T) {
	_, url := newServer(t, nil)
	a := dial(t, url, "tok-a")
	b := dial(t, url, "tok-b")

	require.True(t, a.request(orch.OpJoinRoom, orch.JoinRoomRequest{RoomID: "r1", IsCreator: true}).OK)
	require.True(t, b.request(orch.OpJoinRoom, orch.JoinRoomRequest{RoomID: "r1", IsCreator: true}).OK)

	msg := a.read()
	assert.Equal(t, orch.EventPeerJoined, msg.Type)
	var info struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &info))
	assert.Equal(t, domain.DefaultDisplayName, info.Name)
}

func TestSignalJoinRateLimit(t *testing.T) {
	_, url := newServer(t, NewJoinRateLimiter(1, time.Minute))
	c := dial(t, url, "tok")

	require.True(t, c.request(orch.OpJoinRoom, orch.JoinRoomRequest{RoomID: "r1"}).OK)
	res := c.request(orch.OpJoinRoom, orch.JoinRoomRequest{RoomID: "r1"})
	require.NotNil(t, res.Error)
	assert.Equal(t, "rate_limited", res.Error.Code)
}
