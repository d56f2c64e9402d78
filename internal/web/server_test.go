package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livp123/pktstream/internal/broadcast"
	"github.com/livp123/pktstream/internal/capture"
	"github.com/livp123/pktstream/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type doneProcess struct{}

func (doneProcess) Pid() int    { return 1 }
func (doneProcess) Wait() error { return nil }

type silentLauncher struct{}

func (silentLauncher) Launch(ctx context.Context, duration int, output string) (capture.Process, error) {
	return doneProcess{}, nil
}

type testEnv struct {
	srv     *httptest.Server
	manager *capture.Manager
	hub     *broadcast.Broadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Capture.MaxDuration = 60

	log := zap.NewNop().Sugar()
	hub := broadcast.New(cfg.Viewers.QueueSize, log)
	opts := capture.Options{
		Output:       filepath.Join(t.TempDir(), "capture.txt"),
		PollInterval: 20 * time.Millisecond,
		GracePeriod:  10 * time.Millisecond,
		DrainBuffer:  50 * time.Millisecond,
		MaxDuration:  cfg.Capture.MaxDuration,
	}
	manager := capture.NewManager(context.Background(), opts, silentLauncher{}, nil, hub, log)
	srv := httptest.NewServer(NewServer(cfg, manager, hub, log).Handler())
	t.Cleanup(func() {
		srv.Close()
		manager.Wait()
		hub.Close()
	})
	return &testEnv{srv: srv, manager: manager, hub: hub}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.hub.Count() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func (e *testEnv) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+"/api/capture", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readUntil reads status messages until want arrives and returns everything read.
func readUntil(t *testing.T, conn *websocket.Conn, want string) []string {
	t.Helper()
	var got []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		text, _ := msg["message"].(string)
		got = append(got, text)
		if text == want {
			return got
		}
	}
}

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
		ok   bool
	}{
		{"explicit duration", `{"action":"start_capture","duration":10}`, 10, true},
		{"default duration", `{"action":"start_capture"}`, 30, true},
		{"unknown action", `{"action":"stop_capture"}`, 0, false},
		{"zero duration", `{"action":"start_capture","duration":0}`, 0, false},
		{"negative duration", `{"action":"start_capture","duration":-3}`, 0, false},
		{"string duration", `{"action":"start_capture","duration":"10"}`, 0, false},
		{"not json", `start please`, 0, false},
		{"empty", ``, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeControl([]byte(tt.data), 30)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestWebsocket_Capture tests a full session driven from a viewer
// TestWebsocket_Capture 测试由观察端触发的完整会话
func TestWebsocket_Capture(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, conn.WriteJSON(ControlMessage{Action: ActionStartCapture, Duration: intPtr(1)}))

	got := readUntil(t, conn, "Packet capture completed. Ready for next capture.")
	assert.Equal(t, "Starting packet capture for 1 seconds...", got[0])
}

// TestWebsocket_AlreadyRunning tests that the rejection reaches only the requester
// TestWebsocket_AlreadyRunning 测试拒绝消息只发给请求者
func TestWebsocket_AlreadyRunning(t *testing.T) {
	env := newTestEnv(t)
	first := env.dial(t)

	_, err := env.manager.RequestStart(1)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return env.hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, second.WriteJSON(ControlMessage{Action: ActionStartCapture, Duration: intPtr(5)}))
	readUntil(t, second, capture.MsgAlreadyRunning)

	got := readUntil(t, first, "Packet capture completed. Ready for next capture.")
	assert.NotContains(t, got, capture.MsgAlreadyRunning)
	assert.Equal(t, 1, env.manager.Current().Duration())
}

func TestAPI_Capture(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, `{"duration":1}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body captureResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Duration)
	assert.NotEmpty(t, body.ID)

	resp = env.post(t, `{"duration":1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env.manager.Wait()
	assert.Equal(t, capture.StateCompleted, env.manager.Current().State())
}

func TestAPI_CaptureBadRequest(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{"duration":0}`, `{"duration":61}`, `{"duration":`, `[1,2]`} {
		resp := env.post(t, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Nil(t, env.manager.Current())
}

func TestAPI_Status(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.NotContains(t, st, "session")
	assert.Equal(t, float64(0), st["records"])
	assert.Equal(t, float64(0), st["viewers"])

	_, err = env.manager.RequestStart(1)
	require.NoError(t, err)

	resp2, err := http.Get(env.srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&st))
	session, ok := st["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), session["duration"])
}

func TestIndexAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "/ws")
	assert.Contains(t, string(page), ActionStartCapture)

	resp2, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	metricsBody, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "pktstream_")
}

func intPtr(v int) *int { return &v }
