package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"resumeBuilder/internal/session"
	"resumeBuilder/internal/tasks"
)

func dialWs(t *testing.T, srv *httptest.Server, deviceID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-Device-ID", deviceID)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func waitSubscribed(t *testing.T, n *fakeNotifier) string {
	t.Helper()
	select {
	case channel := <-n.subscribed:
		return channel
	case <-time.After(5 * time.Second):
		t.Fatal("websocket never subscribed")
		return ""
	}
}

func TestWsForwardsNoticesAndSessionEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	conn := dialWs(t, srv, deviceA)
	if err := conn.WriteJSON(map[string]string{"type": "hello", "device_id": deviceA}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	if channel := waitSubscribed(t, s.notifier); channel != tasks.NotifyChannel(deviceA) {
		t.Fatalf("subscribed to %q", channel)
	}

	notice := `{"type":"export","status":"completed","export_id":"e1"}`
	if !s.notifier.publish(tasks.NotifyChannel(deviceA), notice) {
		t.Fatal("notice channel missing")
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read notice: %v", err)
	}
	if string(data) != notice {
		t.Fatalf("notice not forwarded verbatim: %s", data)
	}

	s.register(t, deviceA, "ada@example.com")
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read session event: %v", err)
	}
	var msg wsSessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode session event: %v", err)
	}
	if msg.Type != "session" || msg.Event.Kind != session.EventSignedIn || msg.Event.Identity == nil {
		t.Fatalf("unexpected session message %+v", msg)
	}
}

func TestWsRejectsMismatchedHello(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	conn := dialWs(t, srv, deviceA)
	if err := conn.WriteJSON(map[string]string{"type": "hello", "device_id": deviceB}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWsClosesWhenWorkspaceEvicted(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	conn := dialWs(t, srv, deviceA)
	if err := conn.WriteJSON(map[string]string{"type": "hello", "device_id": deviceA}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	waitSubscribed(t, s.notifier)
	// 通过一条通知确认会话订阅已经建立。
	s.notifier.publish(tasks.NotifyChannel(deviceA), `{"type":"export"}`)
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read notice: %v", err)
	}

	s.registry.EvictIdle(-time.Minute)
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseGoingAway {
		t.Fatalf("expected going away close, got %v", err)
	}
}

func TestWsCheckOrigin(t *testing.T) {
	h := NewWsHandler(nil, nil, []string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)

	req.Header.Set("Origin", "https://app.example.com")
	if !h.checkOrigin(req) {
		t.Fatal("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if h.checkOrigin(req) {
		t.Fatal("foreign origin accepted")
	}

	same := NewWsHandler(nil, nil, nil)
	req = httptest.NewRequest(http.MethodGet, "http://api.example.com/v1/ws", nil)
	req.Header.Set("Origin", "http://api.example.com")
	if !same.checkOrigin(req) {
		t.Fatal("same host origin should be accepted by default")
	}
}
