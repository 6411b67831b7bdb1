package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{input: "groq/llama-3.3-70b-versatile", wantProvider: "groq", wantModel: "llama-3.3-70b-versatile"},
		{input: "groq/meta-llama/llama-4-scout", wantProvider: "groq", wantModel: "meta-llama/llama-4-scout"},
		{input: " openai/dall-e-3 ", wantProvider: "openai", wantModel: "dall-e-3"},
		{input: "llama-3.3-70b-versatile", wantErr: true},
		{input: "/gpt-4o-mini", wantErr: true},
		{input: "anthropic/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			provider, model, err := ParseModel(tt.input)
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid model format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestNewClientProviders(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderGroq, ProviderAnthropic, ProviderGemini} {
		client, err := NewClient(provider, "key", "model")
		require.NoError(t, err, provider)
		assert.NotNil(t, client, provider)
	}

	client, err := NewClient("mistral", "key", "model")
	require.ErrorContains(t, err, "unknown LLM provider")
	assert.Nil(t, client)
}

func TestGroqIsOpenAICompatible(t *testing.T) {
	client, err := NewClient(ProviderGroq, "k", "llama-3.3-70b-versatile")
	require.NoError(t, err)
	assert.IsType(t, &openaiClient{}, client)
}

func TestMessageConstructors(t *testing.T) {
	photo := Image{MIMEType: "image/png", Data: []byte("png")}

	assert.Equal(t, Message{Role: RoleSystem, Content: "You write listings."}, SystemMessage("You write listings."))
	m := UserMessage("Write an Instagram post.", photo)
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, []Image{photo}, m.Images)
	assert.Empty(t, UserMessage("no photo").Images)
}

func TestImage(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,aW1n", Image{Data: []byte("img")}.DataURI())
	assert.Equal(t, "data:image/png;base64,aW1n", Image{MIMEType: "image/png", Data: []byte("img")}.DataURI())

	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "image/png", NewImage(png, "").MIMEType)
	assert.Equal(t, "image/png", NewImage(png, "application/octet-stream").MIMEType)
	assert.Equal(t, "image/webp", NewImage(png, "image/webp").MIMEType, "explicit image types are trusted")
	assert.Empty(t, NewImage([]byte("plain text"), "").MIMEType)
}
