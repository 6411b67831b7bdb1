package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/llm"
	"github.com/sjawhar/kalakaar/internal/metrics"
	"github.com/sjawhar/kalakaar/internal/session"
)

// Post is the generated text for one platform. A failed platform carries
// the diagnostic in Content and Error set.
type Post struct {
	Platform   string `json:"platform"`
	Content    string `json:"content"`
	CharLimit  int    `json:"char_limit"`
	FormatType string `json:"format_type"`
	Error      bool   `json:"error,omitempty"`
}

// Posts keeps posts in request order and marshals as a JSON object with
// keys in that order.
type Posts struct {
	order []string
	byID  map[string]Post
}

func (p Posts) Len() int { return len(p.order) }

func (p Posts) IDs() []string { return append([]string{}, p.order...) }

func (p Posts) Get(id string) (Post, bool) {
	post, ok := p.byID[id]
	return post, ok
}

func (p Posts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Assembler struct {
	client llm.Client
	model  string
	log    zerolog.Logger
}

func NewAssembler(client llm.Client, model string, log zerolog.Logger) *Assembler {
	return &Assembler{
		client: client,
		model:  model,
		log:    log.With().Str("component", "content").Logger(),
	}
}

func (a *Assembler) Model() string { return a.model }

// Generate makes one completion per known platform. A nil list means
// DefaultPlatforms. Unknown ids are skipped and duplicates collapsed. A
// failing platform never aborts the others.
func (a *Assembler) Generate(ctx context.Context, answers map[string]session.Answer, platformIDs []string, image *llm.Image) (Posts, error) {
	if missing := MissingFields(answers); len(missing) > 0 {
		return Posts{}, apperr.New(apperr.InvalidInput, "Incomplete product information").WithDetail("missing_fields", missing)
	}
	if platformIDs == nil {
		platformIDs = DefaultPlatforms
	}

	posts := Posts{byID: make(map[string]Post, len(platformIDs))}
	var platforms []Platform
	for _, id := range platformIDs {
		if _, dup := posts.byID[id]; dup {
			continue
		}
		p, ok := Lookup(id)
		if !ok {
			a.log.Warn().Str("platform", id).Msg("unknown platform skipped")
			continue
		}
		posts.order = append(posts.order, id)
		posts.byID[id] = Post{}
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		return posts, nil
	}
	if a.client == nil {
		return Posts{}, apperr.New(apperr.AdapterUnavailable, "text generation is not configured")
	}

	product := ProductBlock(answers)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range platforms {
		wg.Add(1)
		go func(p Platform) {
			defer wg.Done()
			post := a.generateOne(ctx, p, product, image)
			mu.Lock()
			posts.byID[p.ID] = post
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return posts, nil
}

func (a *Assembler) generateOne(ctx context.Context, p Platform, product string, image *llm.Image) Post {
	user := llm.UserMessage(userPrompt(p, product))
	if image != nil && len(image.Data) > 0 {
		user.Images = []llm.Image{*image}
	}

	start := time.Now()
	text, err := a.client.Complete(ctx, []llm.Message{llm.SystemMessage(systemPrompt), user})
	metrics.ObserveAdapter("llm", start, err)

	post := Post{Platform: p.Name, CharLimit: p.CharLimit, FormatType: p.BestFor}
	if err != nil {
		a.log.Warn().Err(err).Str("platform", p.ID).Msg("post generation failed")
		metrics.PostsGeneratedTotal.WithLabelValues(p.ID, "error").Inc()
		post.Content = fmt.Sprintf("Error generating content: %v", err)
		post.Error = true
		return post
	}

	metrics.PostsGeneratedTotal.WithLabelValues(p.ID, "ok").Inc()
	post.Content = text
	return post
}
