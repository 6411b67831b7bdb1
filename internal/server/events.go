package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type TurnRecordedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Step      string `json:"step"`
	Progress  int    `json:"progress"`
}

type SessionCompletedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type ContentReadyEvent struct {
	Event
	SessionID string   `json:"session_id"`
	Platforms []string `json:"platforms"`
}

type ImagesReadyEvent struct {
	Event
	SessionID string `json:"session_id,omitempty"`
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
