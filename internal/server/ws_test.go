package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestHubDeliversOnlyToOwner(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	mine := hub.Subscribe(1)
	defer hub.Unsubscribe(1, mine)
	theirs := hub.Subscribe(2)
	defer hub.Unsubscribe(2, theirs)

	hub.BroadcastTurnRecorded(1, "conv_1", "materials", 40)

	select {
	case msg := <-mine:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "turn_recorded" {
			t.Fatalf("expected event type turn_recorded, got %#v", payload["type"])
		}
		if payload["progress"] != float64(40) {
			t.Fatalf("expected progress 40, got %#v", payload["progress"])
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for broadcast")
	}

	select {
	case msg := <-theirs:
		t.Fatalf("other user received event: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ch := hub.Subscribe(1)
	defer hub.Unsubscribe(1, ch)

	for i := 0; i < 100; i++ {
		hub.BroadcastSessionStarted(1, "conv_1")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func dialEvents(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return payload
}

func TestWebsocketStreamsOwnEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := dialEvents(t, srv, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if got := readEvent(t, conn)["type"]; got != "connection" {
		t.Fatalf("expected connection hello, got %#v", got)
	}

	id := env.startSession(t)
	started := readEvent(t, conn)
	if started["type"] != "session_started" || started["session_id"] != id {
		t.Fatalf("unexpected session_started event: %#v", started)
	}

	rec, _ := env.answer(t, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("respond status %d: %s", rec.Code, rec.Body.String())
	}
	turn := readEvent(t, conn)
	if turn["type"] != "turn_recorded" {
		t.Fatalf("expected turn_recorded, got %#v", turn["type"])
	}
	if turn["step"] != "product_name" {
		t.Fatalf("expected step product_name, got %#v", turn["step"])
	}
	if turn["progress"] != float64(20) {
		t.Fatalf("expected progress 20, got %#v", turn["progress"])
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.CORSOrigins = []string{"http://app.test"} })
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	_, resp, err := dialEvents(t, srv, http.Header{"Origin": {"http://evil.test"}})
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %#v", resp)
	}

	conn, _, err := dialEvents(t, srv, http.Header{"Origin": {"http://app.test"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.Close()
}

func TestWebsocketRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Fallback = nil })
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	_, resp, err := dialEvents(t, srv, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("expected bad handshake, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %#v", resp)
	}

	token, err := env.issuer.Issue(env.demoID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	conn, _, err := dialEvents(t, srv, http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	_ = conn.Close()
}
