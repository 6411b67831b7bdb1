package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

type Google struct {
	svc     *speech.Service
	timeout time.Duration
}

func NewGoogle(ctx context.Context, timeout time.Duration, opts ...option.ClientOption) (*Google, error) {
	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Google{svc: svc, timeout: timeout}, nil
}

func (g *Google) Recognize(ctx context.Context, audio []byte, opts Options) (segments []Segment, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("stt_google", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Speech.Recognize(&speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   Encoding(opts.MIMEType),
			LanguageCode:               opts.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("speech recognize: %w", err)
	}

	segments = make([]Segment, 0, len(resp.Results))
	for _, result := range resp.Results {
		seg := Segment{Alternatives: make([]Alternative, 0, len(result.Alternatives))}
		for _, alt := range result.Alternatives {
			seg.Alternatives = append(seg.Alternatives, Alternative{
				Transcript: alt.Transcript,
				Confidence: alt.Confidence,
			})
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
