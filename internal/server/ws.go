package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

// newUpgrader accepts the same origins as CORS. Requests without an Origin
// header come from non-browser clients and are allowed.
func newUpgrader(origins []string) websocket.Upgrader {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || slices.Contains(origins, strings.TrimRight(origin, "/"))
		},
	}
}

func (a *api) websocket(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// Subscribe before the hello so nothing published after it is missed.
	ch := a.Hub.Subscribe(userID)
	defer a.Hub.Unsubscribe(userID, ch)

	hello, err := json.Marshal(ConnectionEvent{Event: newEvent("connection", a.Now()), Connected: true})
	if err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, hello)
	}

	// Clients never send; reading only detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
