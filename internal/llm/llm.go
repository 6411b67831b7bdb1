// Package llm hides the text-generation providers behind one Client. Every
// provider accepts a system prompt, user turns with optional product photos,
// and returns trimmed plain text.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrEmptyResponse = errors.New("empty response")

type Message struct {
	Role    Role
	Content string
	// Images are attached to user messages only.
	Images []Image
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string, images ...Image) Message {
	return Message{Role: RoleUser, Content: text, Images: images}
}

type Image struct {
	MIMEType string
	Data     []byte
}

func NewImage(data []byte, mimeType string) Image {
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = ""
	}
	return Image{MIMEType: mimeType, Data: data}
}

func (i Image) DataURI() string {
	return "data:" + i.mimeType() + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) mimeType() string {
	if i.MIMEType == "" {
		return "image/jpeg"
	}
	return i.MIMEType
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int
	temperature float32
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the completion length. Anthropic requires a limit and
// defaults to 8192.
func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		o.maxTokens = n
	}
}

func WithTemperature(t float32) Option {
	return func(o *clientOptions) {
		o.temperature = t
	}
}

// ParseModel splits "provider/model". Model names may themselves contain
// slashes (groq hosts "meta-llama/..." models).
func ParseModel(model string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(strings.TrimSpace(model), "/")
	if !ok || provider == "" || modelName == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return provider, modelName, nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(apiKey, model, o)
	case ProviderGroq:
		if o.baseURL == "" {
			o.baseURL = GroqBaseURL
		}
		return newOpenAIClient(apiKey, model, o)
	case ProviderAnthropic:
		return newAnthropicClient(apiKey, model, o)
	case ProviderGemini:
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, groq, anthropic, gemini", provider)
	}
}

func hasUserTurn(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}
