package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

type Voice struct {
	LanguageCode string
	Name         string
	Gender       string
}

// DefaultVoices is the Punjabi voice with a Hindi fallback for regions where
// the Punjabi voice is unavailable.
var DefaultVoices = []Voice{
	{LanguageCode: "pa-IN", Name: "pa-IN-Wavenet-B", Gender: "FEMALE"},
	{LanguageCode: "hi-IN", Name: "hi-IN-Wavenet-D", Gender: "FEMALE"},
}

type Google struct {
	svc     *texttospeech.Service
	timeout time.Duration
}

func NewGoogle(ctx context.Context, timeout time.Duration, opts ...option.ClientOption) (*Google, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech service: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Google{svc: svc, timeout: timeout}, nil
}

// Synthesize tries each voice in order and returns the first audio produced.
func (g *Google) Synthesize(ctx context.Context, text string, voices []Voice) (audio []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("tts_google", start, err) }()

	if len(voices) == 0 {
		voices = DefaultVoices
	}

	var errs []error
	for _, v := range voices {
		out, serr := g.synthesize(ctx, text, v)
		if serr == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("voice %s: %w", v.Name, serr))
	}
	return nil, errors.Join(errs...)
}

func (g *Google) synthesize(ctx context.Context, text string, v Voice) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	gender := v.Gender
	if gender == "" {
		gender = "FEMALE"
	}
	resp, err := g.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: v.LanguageCode,
			Name:         v.Name,
			SsmlGender:   gender,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio")
	}
	return audio, nil
}
