package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"
	"github.com/cwrk-planet/whiteboard-service/internal/session"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv   *httptest.Server
	hub   *Hub
	coord *session.Coordinator
	store *drawlog.MemoryStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	log := logger.Discard()
	store := drawlog.NewMemoryStore()
	hub := NewHub(log)
	coord := session.NewCoordinator(store, log, session.WithSink(hub))
	ws := NewServer(hub, coord, log, opts)

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWS))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &testEnv{srv: srv, hub: hub, coord: coord, store: store}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (e *testEnv) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}
	f := c.expect(session.EventWelcome)
	var w session.Welcome
	require.NoError(t, json.Unmarshal(f.Data, &w))
	require.NotEmpty(t, w.ParticipantID)
	c.id = w.ParticipantID
	return c
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	b, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Frame{Event: event, Data: b}))
}

func (c *testClient) next() Frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

func (c *testClient) expect(event string) Frame {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, event, f.Event, "data: %s", string(f.Data))
	return f
}

func (c *testClient) expectCount(n int) {
	c.t.Helper()
	f := c.expect(session.EventUserCount)
	require.JSONEq(c.t, jsonInt(n), string(f.Data))
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestServer_DrawingSession(t *testing.T) {
	env := newTestEnv(t, Options{})

	a := env.dial(t)
	a.send(session.EventJoinRoom, "ab12cd")
	a.expectCount(1)
	require.JSONEq(t, `[]`, string(a.expect(session.EventDrawingData).Data))

	b := env.dial(t)
	b.send(session.EventJoinRoom, "AB12CD")
	b.expectCount(2)
	b.expect(session.EventDrawingData)
	a.expectCount(2)

	a.send(session.EventDrawStart, map[string]any{"roomId": "AB12CD", "x": 1, "y": 2, "color": "#ff0000", "strokeWidth": 3})
	require.JSONEq(t, `{"x":1,"y":2,"color":"#ff0000","strokeWidth":3}`, string(b.expect(session.EventDrawStart).Data))

	a.send(session.EventDrawEnd, map[string]any{
		"roomId":     "AB12CD",
		"strokeData": map[string]any{"points": []map[string]float64{{"x": 1, "y": 2}, {"x": 3, "y": 4}}, "color": "#ff0000", "strokeWidth": 3},
	})
	b.expect(session.EventDrawEnd)

	cmds, err := env.store.ReadAll(context.Background(), "AB12CD")
	require.NoError(t, err)
	require.Len(t, cmds, 1)

	// a late joiner gets the stored stroke
	c := env.dial(t)
	c.send(session.EventJoinRoom, "AB12CD")
	c.expectCount(3)
	var replay []json.RawMessage
	require.NoError(t, json.Unmarshal(c.expect(session.EventDrawingData).Data, &replay))
	require.Len(t, replay, 1)
	a.expectCount(3)
	b.expectCount(3)

	b.send(session.EventClearCanvas, "AB12CD")
	a.expect(session.EventClearCanvas)
	b.expect(session.EventClearCanvas)
	c.expect(session.EventClearCanvas)

	require.NoError(t, c.conn.Close())
	a.expectCount(2)
	require.JSONEq(t, `"`+c.id+`"`, string(a.expect(session.EventUserLeft).Data))
}

func TestServer_InvalidRoomAndBadFrames(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	a.send("erase", "AB12CD")
	a.send(session.EventJoinRoom, "ab")
	require.JSONEq(t, `"invalid room code"`, string(a.expect(session.EventError).Data))
}

func TestServer_DisconnectRemovesMembership(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.dial(t)
	a.send(session.EventJoinRoom, "AB12CD")
	a.expectCount(1)
	a.expect(session.EventDrawingData)
	require.Equal(t, 1, env.coord.MemberCount("AB12CD"))

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		return env.coord.MemberCount("AB12CD") == 0 && env.hub.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_CheckOrigin(t *testing.T) {
	hub := NewHub(logger.Discard())
	s := NewServer(hub, nil, logger.Discard(), Options{AllowedOrigins: []string{"http://localhost:5173"}})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	require.True(t, s.checkOrigin(r))
	r.Header.Set("Origin", "http://localhost:5173")
	require.True(t, s.checkOrigin(r))
	r.Header.Set("Origin", "http://evil.example")
	require.False(t, s.checkOrigin(r))

	open := NewServer(hub, nil, logger.Discard(), Options{AllowedOrigins: []string{"*"}})
	require.True(t, open.checkOrigin(r))
}

func TestHub_SlowConsumerIsDisconnected(t *testing.T) {
	hub := NewHub(logger.Discard())
	registered := make(chan *client, 1)
	// no write loop: nothing drains the queue
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := newClient("slow", conn, 1)
		hub.add(c)
		registered <- c
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	c := <-registered

	hub.Deliver([]session.Outbound{
		{To: []string{"slow"}, Event: session.UserCount{Count: 1}},
		{To: []string{"slow"}, Event: session.UserCount{Count: 2}},
	})

	select {
	case <-c.done:
	default:
		t.Fatal("slow consumer still connected")
	}
	require.Len(t, c.send, 1)
}
