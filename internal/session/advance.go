package session

import (
	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/flow"
)

type AdvanceResult struct {
	Completed        bool
	NextStep         *flow.Step
	Progress         int
	CollectedAnswers map[string]Answer
}

// Advance records an answer for the session's current step and moves the
// pointer forward. The input session is left untouched; the updated copy is
// returned. Callers must reject empty transcripts before calling it.
func Advance(script flow.Script, sess Session, native string, reference *string) (Session, AdvanceResult, error) {
	if sess.IsComplete || sess.CurrentStepID == flow.Completed {
		return sess, AdvanceResult{}, apperr.New(apperr.InvalidState, "conversation already completed")
	}

	idx := script.Index(sess.CurrentStepID)
	if idx < 0 {
		return sess, AdvanceResult{}, apperr.Newf(apperr.InvalidState, "unknown step %q", sess.CurrentStepID)
	}
	step, _ := script.At(idx)

	next := sess.Clone()
	nativeText := native
	next.CollectedAnswers[step.Field] = Answer{Native: &nativeText, Reference: cloneString(reference)}
	next.TurnLog = append(next.TurnLog, Turn{
		StepID:          step.ID,
		NativeAnswer:    native,
		ReferenceAnswer: cloneString(reference),
	})

	nextIndex := idx + 1
	if nextStep, ok := script.At(nextIndex); ok {
		next.CurrentStepID = nextStep.ID
		return next, AdvanceResult{
			NextStep:         &nextStep,
			Progress:         script.Progress(nextIndex),
			CollectedAnswers: next.CollectedAnswers,
		}, nil
	}

	next.CurrentStepID = flow.Completed
	next.IsComplete = true
	return next, AdvanceResult{
		Completed:        true,
		Progress:         100,
		CollectedAnswers: next.CollectedAnswers,
	}, nil
}
