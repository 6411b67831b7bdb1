package voice

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/flow"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voices []Voice) ([]byte, error)
}

// PromptRenderer turns a step's native prompt into a stored MP3 and returns
// its URL. Prompts are fixed text, so the URL is cached per text and
// later sessions reuse the stored audio.
type PromptRenderer struct {
	synth  Synthesizer
	store  blob.Store
	voices []Voice
	cache  *gocache.Cache
	flight singleflight.Group
}

func NewPromptRenderer(synth Synthesizer, store blob.Store, voices []Voice, ttl time.Duration) *PromptRenderer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PromptRenderer{
		synth:  synth,
		store:  store,
		voices: voices,
		cache:  gocache.New(ttl, 10*time.Minute),
	}
}

func (p *PromptRenderer) Render(ctx context.Context, sessionID string, step flow.Step) (string, error) {
	if url, ok := p.cache.Get(step.PromptNative); ok {
		return url.(string), nil
	}

	// Concurrent renders of one text share a single synthesis. The shared
	// call outlives any one caller's cancellation.
	ch := p.flight.DoChan(step.PromptNative, func() (any, error) {
		if url, ok := p.cache.Get(step.PromptNative); ok {
			return url.(string), nil
		}
		return p.render(context.WithoutCancel(ctx), sessionID, step)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *PromptRenderer) render(ctx context.Context, sessionID string, step flow.Step) (string, error) {
	audio, err := p.synth.Synthesize(ctx, step.PromptNative, p.voices)
	if err != nil {
		return "", fmt.Errorf("synthesize %s prompt: %w", step.ID, err)
	}

	key := fmt.Sprintf("%s/%s_%s.mp3", blob.PrefixAudio, blob.SafeName(sessionID), step.ID)
	url, err := p.store.Put(ctx, key, audio, "audio/mpeg")
	if err != nil {
		return "", fmt.Errorf("store %s prompt audio: %w", step.ID, err)
	}

	p.cache.SetDefault(step.PromptNative, url)
	return url, nil
}
