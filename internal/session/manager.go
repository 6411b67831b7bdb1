package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/flow"
	"github.com/sjawhar/kalakaar/internal/metrics"
	"github.com/sjawhar/kalakaar/internal/transcribe"
)

type Deps struct {
	Store      Store
	STT        Transcriber
	Translator Translator
	Voice      PromptVoice
	Events     EventBroadcaster
	Script     flow.Script
	Languages  Languages
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Manager runs the interview: it creates sessions and turns one audio answer
// into one stored answer plus the next question.
type Manager struct {
	store      Store
	stt        Transcriber
	translator Translator
	voice      PromptVoice
	events     EventBroadcaster
	script     flow.Script
	langs      Languages
	locks      *Locker
	log        zerolog.Logger
	now        func() time.Time
}

func NewManager(d Deps) *Manager {
	script := d.Script
	if script.Len() == 0 {
		script = flow.Default()
	}
	langs := d.Languages
	if langs.Speech == "" {
		langs.Speech = "pa-IN"
	}
	if langs.Source == "" {
		langs.Source = "pa"
	}
	if langs.Target == "" {
		langs.Target = "en"
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		store:      d.Store,
		stt:        d.STT,
		translator: d.Translator,
		voice:      d.Voice,
		events:     d.Events,
		script:     script,
		langs:      langs,
		locks:      NewLocker(),
		log:        d.Logger.With().Str("component", "session").Logger(),
		now:        now,
	}
}

func (m *Manager) Script() flow.Script { return m.script }

type StartResult struct {
	SessionID         string  `json:"session_id"`
	QuestionNative    string  `json:"question_native"`
	QuestionReference string  `json:"question_reference"`
	Step              string  `json:"step"`
	AudioURL          *string `json:"audio_url"`
	Progress          int     `json:"progress"`
}

func (m *Manager) Start(ctx context.Context, userID int64) (StartResult, error) {
	if userID <= 0 {
		return StartResult{}, apperr.New(apperr.Unauthorized, "authentication required")
	}

	first := m.script.First()
	sess, err := m.store.CreateSession(ctx, userID, first.ID)
	if err != nil {
		return StartResult{}, err
	}
	metrics.SessionsStartedTotal.Inc()

	m.log.Info().Str("session_id", sess.ID).Int64("user_id", userID).Msg("session started")
	if m.events != nil {
		m.events.BroadcastSessionStarted(userID, sess.ID)
	}

	return StartResult{
		SessionID:         sess.ID,
		QuestionNative:    first.PromptNative,
		QuestionReference: first.PromptReference,
		Step:              first.ID,
		AudioURL:          m.renderPrompt(ctx, sess.ID, first),
		Progress:          0,
	}, nil
}

// TurnResult is the outcome of one accepted answer. It serializes to one of
// two shapes depending on Completed.
type TurnResult struct {
	Completed         bool
	AnswerNative      string
	AnswerReference   *string
	NextStep          string
	QuestionNative    string
	QuestionReference string
	AudioURL          *string
	Progress          int
	CollectedAnswers  map[string]Answer
}

func (r TurnResult) Payload() map[string]any {
	if r.Completed {
		return map[string]any{
			"completed":         true,
			"collected_answers": r.CollectedAnswers,
			"progress":          100,
		}
	}
	return map[string]any{
		"completed":               false,
		"answer_native":           r.AnswerNative,
		"answer_reference":        r.AnswerReference,
		"next_question_native":    r.QuestionNative,
		"next_question_reference": r.QuestionReference,
		"step":                    r.NextStep,
		"audio_url":               r.AudioURL,
		"progress":                r.Progress,
	}
}

// Respond transcribes one recorded answer and advances the session. Load,
// transcription, translation and persistence run under the session's lock.
func (m *Manager) Respond(ctx context.Context, userID int64, sessionID string, audio []byte, mimeType string) (TurnResult, error) {
	if userID <= 0 {
		return TurnResult{}, apperr.New(apperr.Unauthorized, "authentication required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return TurnResult{}, apperr.New(apperr.InvalidInput, "session_id is required")
	}
	if len(audio) == 0 {
		return TurnResult{}, apperr.New(apperr.InvalidInput, "audio is required")
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	sess, err := m.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return TurnResult{}, err
	}
	if sess.IsComplete {
		return TurnResult{}, apperr.New(apperr.InvalidState, "conversation already completed")
	}

	if m.stt == nil {
		return TurnResult{}, apperr.New(apperr.AdapterUnavailable, "speech recognition is not configured")
	}
	start := time.Now()
	segments, err := m.stt.Recognize(ctx, audio, transcribe.Options{Language: m.langs.Speech, MIMEType: mimeType})
	metrics.ObserveAdapter("speech_to_text", start, err)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("stt_error").Inc()
		return TurnResult{}, apperr.Wrap(apperr.AdapterUnavailable, "speech recognition failed", err)
	}

	native := transcribe.Join(segments)
	if native == "" {
		metrics.TurnsTotal.WithLabelValues("unintelligible").Inc()
		return TurnResult{}, apperr.New(apperr.UnintelligibleAudio, "could not understand audio, please try again")
	}

	reference := m.translate(ctx, sess.ID, native)

	next, result, err := Advance(m.script, sess, native, reference)
	if err != nil {
		return TurnResult{}, err
	}
	next.UpdatedAt = m.now()

	if err := m.store.UpdateSession(ctx, next); err != nil {
		metrics.TurnsTotal.WithLabelValues("storage_error").Inc()
		return TurnResult{}, err
	}
	metrics.TurnsTotal.WithLabelValues("accepted").Inc()

	m.log.Info().
		Str("session_id", sess.ID).
		Str("step", sess.CurrentStepID).
		Int("progress", result.Progress).
		Bool("translated", reference != nil).
		Msg("turn recorded")

	if result.Completed {
		metrics.SessionsCompletedTotal.Inc()
		if m.events != nil {
			m.events.BroadcastSessionCompleted(userID, sess.ID)
		}
		return TurnResult{
			Completed:        true,
			AnswerNative:     native,
			AnswerReference:  reference,
			Progress:         100,
			CollectedAnswers: result.CollectedAnswers,
		}, nil
	}

	if m.events != nil {
		m.events.BroadcastTurnRecorded(userID, sess.ID, result.NextStep.ID, result.Progress)
	}

	return TurnResult{
		AnswerNative:      native,
		AnswerReference:   reference,
		NextStep:          result.NextStep.ID,
		QuestionNative:    result.NextStep.PromptNative,
		QuestionReference: result.NextStep.PromptReference,
		AudioURL:          m.renderPrompt(ctx, sess.ID, *result.NextStep),
		Progress:          result.Progress,
	}, nil
}

func (m *Manager) Get(ctx context.Context, userID int64, sessionID string) (Session, error) {
	if userID <= 0 {
		return Session{}, apperr.New(apperr.Unauthorized, "authentication required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return Session{}, apperr.New(apperr.InvalidInput, "session_id is required")
	}
	return m.store.GetSession(ctx, sessionID, userID)
}

func (m *Manager) translate(ctx context.Context, sessionID, text string) *string {
	if m.translator == nil {
		return nil
	}
	start := time.Now()
	out, err := m.translator.Translate(ctx, text, m.langs.Source, m.langs.Target)
	metrics.ObserveAdapter("translate", start, err)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("translation failed, keeping native answer only")
		return nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	return &out
}

func (m *Manager) renderPrompt(ctx context.Context, sessionID string, step flow.Step) *string {
	if m.voice == nil {
		return nil
	}
	start := time.Now()
	url, err := m.voice.Render(ctx, sessionID, step)
	metrics.ObserveAdapter("text_to_speech", start, err)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Str("step", step.ID).Msg("prompt audio unavailable")
		return nil
	}
	if url == "" {
		return nil
	}
	return &url
}
