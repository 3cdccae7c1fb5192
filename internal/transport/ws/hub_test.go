package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodieqa/internal/config"
	"foodieqa/internal/service"
)

func TestHub_BroadcastAndClose(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Stop()

	watcher := &Connection{RunID: "r1", Send: make(chan []byte, 8), Hub: h}
	other := &Connection{RunID: "r2", Send: make(chan []byte, 8), Hub: h}
	h.Register(watcher)
	h.Register(other)
	require.Eventually(t, func() bool { return h.Subscribers("r1") == 1 && h.Subscribers("r2") == 1 }, time.Second, 5*time.Millisecond)

	h.BroadcastToRun("r1", string(MsgAnswerRecorded), map[string]int{"index": 0})
	h.CloseRun("r1")

	select {
	case data := <-watcher.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MsgAnswerRecorded, msg.Type)
		assert.JSONEq(t, `{"index":0}`, string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case _, ok := <-watcher.Send:
		assert.False(t, ok, "channel should be closed after CloseRun")
	case <-time.After(time.Second):
		t.Fatal("run was not closed")
	}
	assert.Equal(t, 0, h.Subscribers("r1"))
	assert.Empty(t, other.Send)

	// unregistering a closed connection is a no-op
	h.Unregister(watcher)
}

func TestHub_StopUnblocksSenders(t *testing.T) {
	h := NewHub(nil)
	h.Stop()
	h.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.BroadcastToRun("r", "x", i)
		}
		h.CloseRun("r")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stopped hub")
	}
}

func TestHandler_RunWS(t *testing.T) {
	auth := service.NewAuthService(config.ServerConfig{Username: "admin", Password: "pw", JWTSecret: "secret"})
	hub := NewHub(zap.NewNop())
	defer hub.Stop()

	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/runs/{runId}", NewHandler(hub, auth, nil).RunWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/runs/run-7"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=bogus", nil)
	require.Error(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	login, err := auth.Login("admin", "pw")
	require.NoError(t, err)
	c, _, err := websocket.DefaultDialer.Dial(base+"?token="+login.Token, nil)
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("run-7") == 1 }, time.Second, 5*time.Millisecond)
	hub.BroadcastToRun("run-7", string(MsgRunFinished), map[string]string{"status": "finished"})
	hub.CloseRun("run-7")

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, c.ReadJSON(&msg))
	assert.Equal(t, MsgRunFinished, msg.Type)

	_, _, err = c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
