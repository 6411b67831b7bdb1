package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

func NewGenerator(provider, apiKey, model, baseURL string) (Generator, error) {
	switch provider {
	case "openai":
		return NewOpenAIGenerator(apiKey, model, baseURL), nil
	case "gemini":
		return NewGeminiGenerator(context.Background(), apiKey, model, baseURL)
	default:
		return nil, fmt.Errorf("unknown image provider %q: supported providers are openai, gemini", provider)
	}
}

type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(config), model: model}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (out []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("image_openai", start, err) }()

	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("openai returned no image")
	}
	out, err = base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return out, nil
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model, baseURL string) (*GeminiGenerator, error) {
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		config.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "imagen-3.0-generate-002"
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (out []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("image_gemini", start, err) }()

	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{NumberOfImages: 1})
	if err != nil {
		return nil, fmt.Errorf("gemini generate images: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("gemini returned no image")
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
