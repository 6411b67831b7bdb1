package imaging

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/session"
)

const MaxImages = 3

type BackgroundEditor interface {
	RemoveBackground(ctx context.Context, img []byte) ([]byte, error)
	ReplaceBackground(ctx context.Context, img []byte, prompt string) ([]byte, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type Image struct {
	URL             string `json:"url"`
	Filename        string `json:"filename"`
	Size            int    `json:"size"`
	Variant         int    `json:"variant,omitempty"`
	StyleDescriptor string `json:"background_style,omitempty"`
	Method          string `json:"method"`
}

type Enhancer struct {
	editor    BackgroundEditor
	generator Generator
	store     blob.Store
	maxBytes  int64
	log       zerolog.Logger

	now  func() time.Time
	rand func() int
}

// NewEnhancer wires the image adapters. editor and generator may be nil
// when not configured.
func NewEnhancer(editor BackgroundEditor, generator Generator, store blob.Store, maxBytes int64, log zerolog.Logger) *Enhancer {
	return &Enhancer{
		editor:    editor,
		generator: generator,
		store:     store,
		maxBytes:  maxBytes,
		log:       log.With().Str("component", "imaging").Logger(),
		now:       time.Now,
		rand:      func() int { return 1000 + rand.IntN(9000) },
	}
}

func (e *Enhancer) CanEnhance() bool  { return e.editor != nil }
func (e *Enhancer) CanGenerate() bool { return e.generator != nil }

func stylePrompts(craft string) []string {
	return []string{
		fmt.Sprintf("Clean white studio background, professional product photography for %s, soft even lighting, minimalist", craft),
		fmt.Sprintf("Neutral beige background, premium e-commerce photography for %s, natural lighting, elegant", craft),
		fmt.Sprintf("Soft gradient background, modern product photography for %s, studio lighting, professional", craft),
	}
}

func studioPrompt(craft string) string {
	return fmt.Sprintf("Professional studio setup for %s, clean white background, soft studio lighting, minimalist product photography, premium e-commerce aesthetic", craft)
}

func descriptor(prompt string) string {
	head, _, _ := strings.Cut(prompt, ",")
	return head
}

func craftOrDefault(craft string) string {
	if strings.TrimSpace(craft) == "" {
		return "handcrafted product"
	}
	return strings.TrimSpace(craft)
}

func (e *Enhancer) checkSource(src []byte) error {
	if e.editor == nil {
		return apperr.New(apperr.AdapterUnavailable, "image enhancement is not configured")
	}
	if len(src) == 0 {
		return apperr.New(apperr.InvalidInput, "source image is empty")
	}
	if e.maxBytes > 0 && int64(len(src)) > e.maxBytes {
		return apperr.Newf(apperr.InvalidInput, "source image exceeds %d bytes", e.maxBytes)
	}
	return nil
}

// Variants removes the background once, then recomposites onto up to
// MaxImages styled backgrounds. Partial success is success.
func (e *Enhancer) Variants(ctx context.Context, src []byte, craft string, n int) ([]Image, error) {
	if err := e.checkSource(src); err != nil {
		return nil, err
	}
	n = min(max(n, 1), MaxImages)
	craft = craftOrDefault(craft)

	cutout, err := e.editor.RemoveBackground(ctx, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.AdapterFailure, "Background removal failed", err)
	}

	var out []Image
	for i, prompt := range stylePrompts(craft)[:n] {
		data, err := e.editor.ReplaceBackground(ctx, cutout, prompt)
		if err != nil {
			e.log.Warn().Err(err).Int("variant", i+1).Msg("background replacement failed")
			continue
		}
		filename := fmt.Sprintf("enhanced_%d_%d_v%d.png", e.now().Unix(), e.rand(), i+1)
		url, err := e.store.Put(ctx, blob.PrefixEnhanced+"/"+filename, data, "image/png")
		if err != nil {
			e.log.Warn().Err(err).Str("filename", filename).Msg("store variant failed")
			continue
		}
		out = append(out, Image{
			URL:             url,
			Filename:        filename,
			Size:            len(data),
			Variant:         i + 1,
			StyleDescriptor: descriptor(prompt),
			Method:          "clipdrop_variant",
		})
	}

	if len(out) == 0 {
		return nil, apperr.New(apperr.AdapterFailure, "No variants were created")
	}
	return out, nil
}

// Single produces one studio shot. A failed replacement keeps the cutout.
func (e *Enhancer) Single(ctx context.Context, src []byte, craft string) ([]Image, error) {
	if err := e.checkSource(src); err != nil {
		return nil, err
	}
	craft = craftOrDefault(craft)

	data, err := e.editor.RemoveBackground(ctx, src)
	if err != nil {
		return nil, apperr.Wrap(apperr.AdapterFailure, "Background removal failed", err)
	}
	if replaced, err := e.editor.ReplaceBackground(ctx, data, studioPrompt(craft)); err != nil {
		e.log.Warn().Err(err).Msg("background replacement failed, keeping cutout")
	} else {
		data = replaced
	}

	filename := fmt.Sprintf("enhanced_%d_%d.png", e.now().Unix(), e.rand())
	url, err := e.store.Put(ctx, blob.PrefixEnhanced+"/"+filename, data, "image/png")
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "Failed to store enhanced image", err)
	}
	return []Image{{URL: url, Filename: filename, Size: len(data), Method: "clipdrop_enhancement"}}, nil
}

func GenerationPrompt(answers map[string]session.Answer) string {
	field := func(key string) string {
		a, ok := answers[key]
		if !ok {
			return ""
		}
		if a.Reference != nil && strings.TrimSpace(*a.Reference) != "" {
			return strings.TrimSpace(*a.Reference)
		}
		if a.Native != nil {
			return strings.TrimSpace(*a.Native)
		}
		return ""
	}

	var b strings.Builder
	b.WriteString("Professional studio product photograph of ")
	if name := field("product_name"); name != "" {
		b.WriteString(name)
	} else {
		b.WriteString("a handcrafted product")
	}
	b.WriteString(", a handmade ")
	b.WriteString(craftOrDefault(field("craft_type")))
	if m := field("materials"); m != "" {
		b.WriteString(" made from ")
		b.WriteString(m)
	}
	b.WriteString(".")
	if f := field("special_features"); f != "" {
		b.WriteString(" Notable details: ")
		b.WriteString(f)
		b.WriteString(".")
	}
	b.WriteString(" Clean background, soft studio lighting, high detail, premium e-commerce photography.")
	return b.String()
}

func (e *Enhancer) Generate(ctx context.Context, answers map[string]session.Answer, n int) ([]Image, error) {
	if n < 1 || n > MaxImages {
		return nil, apperr.Newf(apperr.InvalidInput, "num_images must be between 1 and %d", MaxImages)
	}
	if e.generator == nil {
		return nil, apperr.New(apperr.AdapterUnavailable, "image generation is not configured")
	}

	prompt := GenerationPrompt(answers)
	var out []Image
	for i := 1; i <= n; i++ {
		data, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			e.log.Warn().Err(err).Int("image", i).Msg("image generation failed")
			continue
		}
		filename := fmt.Sprintf("generated_%d_%d_%d.png", e.now().Unix(), e.rand(), i)
		url, err := e.store.Put(ctx, blob.PrefixGenerated+"/"+filename, data, "image/png")
		if err != nil {
			e.log.Warn().Err(err).Str("filename", filename).Msg("store generated image failed")
			continue
		}
		out = append(out, Image{URL: url, Filename: filename, Size: len(data), Variant: i, Method: "generated"})
	}

	if len(out) == 0 {
		return nil, apperr.New(apperr.AdapterFailure, "No images were generated")
	}
	return out, nil
}
