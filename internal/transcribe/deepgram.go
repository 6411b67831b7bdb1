package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

type prerecordedFunc func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error)

type Deepgram struct {
	model   string
	timeout time.Duration
	call    prerecordedFunc
}

type DeepgramOption func(*deepgramConfig)

type deepgramConfig struct {
	host string
}

func WithDeepgramHost(host string) DeepgramOption {
	return func(c *deepgramConfig) { c.host = host }
}

func NewDeepgram(apiKey, model string, timeout time.Duration, opts ...DeepgramOption) *Deepgram {
	var cfg deepgramConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c := client.NewREST(apiKey, &interfaces.ClientOptions{Host: cfg.host})
	dg := api.New(c)

	return newDeepgram(model, timeout, func(ctx context.Context, src io.Reader, o *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		return dg.FromStream(ctx, src, o)
	})
}

func newDeepgram(model string, timeout time.Duration, call prerecordedFunc) *Deepgram {
	if model == "" {
		model = "nova-2"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Deepgram{model: model, timeout: timeout, call: call}
}

func (d *Deepgram) Recognize(ctx context.Context, audio []byte, opts Options) (segments []Segment, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("stt_deepgram", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.call(ctx, bytes.NewReader(audio), &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    deepgramLanguage(opts.Language),
		Punctuate:   true,
		SmartFormat: true,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram prerecorded: %w", err)
	}
	return deepgramSegments(res)
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []Alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// deepgramSegments maps every channel to one segment.
func deepgramSegments(res any) ([]Segment, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode deepgram response: %w", err)
	}
	var parsed deepgramResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode deepgram response: %w", err)
	}

	segments := make([]Segment, 0, len(parsed.Results.Channels))
	for _, ch := range parsed.Results.Channels {
		segments = append(segments, Segment{Alternatives: ch.Alternatives})
	}
	return segments, nil
}

// deepgramLanguage strips the region from BCP-47 tags ("pa-IN" -> "pa").
func deepgramLanguage(tag string) string {
	lang, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
	return lang
}
