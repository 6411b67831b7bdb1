package session

import (
	"context"
	"time"

	"github.com/sjawhar/kalakaar/internal/flow"
	"github.com/sjawhar/kalakaar/internal/transcribe"
)

// Answer is a bilingual answer. Either side may be nil: the reference side
// is nil when translation failed.
type Answer struct {
	Native    *string `json:"native"`
	Reference *string `json:"reference"`
}

type Turn struct {
	StepID          string  `json:"step_id"`
	NativeAnswer    string  `json:"native_answer"`
	ReferenceAnswer *string `json:"reference_answer"`
}

type Session struct {
	ID               string            `json:"session_id"`
	OwnerUserID      int64             `json:"owner_user_id"`
	CurrentStepID    string            `json:"current_step"`
	CollectedAnswers map[string]Answer `json:"collected_answers"`
	TurnLog          []Turn            `json:"turn_log"`
	IsComplete       bool              `json:"is_complete"`
	Version          int64             `json:"-"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers can derive a new state without
// touching the original.
func (s Session) Clone() Session {
	out := s
	out.CollectedAnswers = make(map[string]Answer, len(s.CollectedAnswers)+1)
	for k, v := range s.CollectedAnswers {
		out.CollectedAnswers[k] = Answer{Native: cloneString(v.Native), Reference: cloneString(v.Reference)}
	}
	out.TurnLog = make([]Turn, len(s.TurnLog), len(s.TurnLog)+1)
	for i, t := range s.TurnLog {
		out.TurnLog[i] = Turn{StepID: t.StepID, NativeAnswer: t.NativeAnswer, ReferenceAnswer: cloneString(t.ReferenceAnswer)}
	}
	return out
}

type Store interface {
	CreateSession(ctx context.Context, ownerUserID int64, firstStepID string) (Session, error)
	GetSession(ctx context.Context, id string, ownerUserID int64) (Session, error)
	UpdateSession(ctx context.Context, sess Session) error
}

type Transcriber interface {
	Recognize(ctx context.Context, audio []byte, opts transcribe.Options) ([]transcribe.Segment, error)
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type PromptVoice interface {
	Render(ctx context.Context, sessionID string, step flow.Step) (string, error)
}

type EventBroadcaster interface {
	BroadcastSessionStarted(userID int64, sessionID string)
	BroadcastTurnRecorded(userID int64, sessionID, stepID string, progress int)
	BroadcastSessionCompleted(userID int64, sessionID string)
}

type Languages struct {
	Speech string
	Source string
	Target string
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
