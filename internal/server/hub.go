package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[chan []byte]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[chan []byte]struct{}),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Subscribe(userID int64) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan []byte]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(userID int64, ch chan []byte) {
	h.mu.Lock()
	delete(h.clients[userID], ch)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
	h.mu.Unlock()
	close(ch)
}

// Publish drops the message for subscribers whose buffer is full.
func (h *Hub) Publish(userID int64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients[userID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastSessionStarted(userID int64, sessionID string) {
	h.publishEvent(userID, SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastTurnRecorded(userID int64, sessionID, stepID string, progress int) {
	h.publishEvent(userID, TurnRecordedEvent{
		Event:     newEvent("turn_recorded", time.Now().UTC()),
		SessionID: sessionID,
		Step:      stepID,
		Progress:  progress,
	})
}

func (h *Hub) BroadcastSessionCompleted(userID int64, sessionID string) {
	h.publishEvent(userID, SessionCompletedEvent{
		Event:     newEvent("session_completed", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastContentReady(userID int64, sessionID string, platforms []string) {
	h.publishEvent(userID, ContentReadyEvent{
		Event:     newEvent("content_ready", time.Now().UTC()),
		SessionID: sessionID,
		Platforms: platforms,
	})
}

func (h *Hub) BroadcastImagesReady(userID int64, sessionID, kind string, count int) {
	h.publishEvent(userID, ImagesReadyEvent{
		Event:     newEvent("images_ready", time.Now().UTC()),
		SessionID: sessionID,
		Kind:      kind,
		Count:     count,
	})
}

func (h *Hub) publishEvent(userID int64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("event marshal failed")
		return
	}
	h.Publish(userID, payload)
}
