package imaging

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/session"
)

type fakeEditor struct {
	mu         sync.Mutex
	removeErr  error
	failPrompt string
	prompts    []string
	removals   int
}

func (f *fakeEditor) RemoveBackground(_ context.Context, img []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals++
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	return append([]byte("cutout:"), img...), nil
}

func (f *fakeEditor) ReplaceBackground(_ context.Context, img []byte, prompt string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.failPrompt != "" && strings.HasPrefix(prompt, f.failPrompt) {
		return nil, errors.New("quota exceeded")
	}
	return append([]byte("bg:"), img...), nil
}

type fakeGenerator struct {
	calls int
	fail  int
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) ([]byte, error) {
	f.calls++
	if f.err != nil || f.calls == f.fail {
		return nil, errors.New("generation failed")
	}
	return []byte("png:" + prompt), nil
}

func newTestEnhancer(t *testing.T, editor BackgroundEditor, gen Generator) (*Enhancer, *blob.Local) {
	t.Helper()
	store := blob.NewLocal(t.TempDir(), "http://test")
	e := NewEnhancer(editor, gen, store, 1024, zerolog.Nop())
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	e.rand = func() int { return 4242 }
	return e, store
}

func TestVariantsStoresEachStyle(t *testing.T) {
	editor := &fakeEditor{}
	e, store := newTestEnhancer(t, editor, nil)

	images, err := e.Variants(context.Background(), []byte("photo"), "Phulkari", 5)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, 1, editor.removals)
	assert.Equal(t, "enhanced_1700000000_4242_v1.png", images[0].Filename)
	assert.Equal(t, "http://test/files/enhanced/enhanced_1700000000_4242_v1.png", images[0].URL)
	assert.Equal(t, "Clean white studio background", images[0].StyleDescriptor)
	assert.Equal(t, "Neutral beige background", images[1].StyleDescriptor)
	assert.Equal(t, "Soft gradient background", images[2].StyleDescriptor)
	assert.Contains(t, editor.prompts[0], "for Phulkari")

	data, err := store.Get(context.Background(), "enhanced/enhanced_1700000000_4242_v2.png")
	require.NoError(t, err)
	assert.Equal(t, "bg:cutout:photo", string(data))
	assert.Equal(t, len(data), images[1].Size)
}

func TestVariantsClampsCount(t *testing.T) {
	editor := &fakeEditor{}
	e, _ := newTestEnhancer(t, editor, nil)

	images, err := e.Variants(context.Background(), []byte("photo"), "", 0)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Contains(t, editor.prompts[0], "handcrafted product")
}

func TestVariantsPartialSuccess(t *testing.T) {
	editor := &fakeEditor{failPrompt: "Neutral"}
	e, _ := newTestEnhancer(t, editor, nil)

	images, err := e.Variants(context.Background(), []byte("photo"), "Pottery", 3)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, 1, images[0].Variant)
	assert.Equal(t, 3, images[1].Variant)
}

func TestVariantsFailures(t *testing.T) {
	e, _ := newTestEnhancer(t, &fakeEditor{removeErr: errors.New("down")}, nil)
	_, err := e.Variants(context.Background(), []byte("photo"), "Pottery", 2)
	assert.True(t, apperr.Is(err, apperr.AdapterFailure))

	allFail, _ := newTestEnhancer(t, &fakeEditor{failPrompt: "Clean"}, nil)
	_, err = allFail.Variants(context.Background(), []byte("photo"), "Pottery", 1)
	assert.True(t, apperr.Is(err, apperr.AdapterFailure))
}

func TestVariantsRejectsLargeAndUnconfigured(t *testing.T) {
	e, _ := newTestEnhancer(t, &fakeEditor{}, nil)
	_, err := e.Variants(context.Background(), make([]byte, 2048), "x", 1)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	none, _ := newTestEnhancer(t, nil, nil)
	_, err = none.Variants(context.Background(), []byte("photo"), "x", 1)
	assert.True(t, apperr.Is(err, apperr.AdapterUnavailable))
	assert.False(t, none.CanEnhance())
}

func TestSingleKeepsCutoutOnReplaceFailure(t *testing.T) {
	editor := &fakeEditor{failPrompt: "Professional studio"}
	e, store := newTestEnhancer(t, editor, nil)

	images, err := e.Single(context.Background(), []byte("photo"), "Jutti")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "clipdrop_enhancement", images[0].Method)

	data, err := store.Get(context.Background(), "enhanced/"+images[0].Filename)
	require.NoError(t, err)
	assert.Equal(t, "cutout:photo", string(data))
}

func strPtr(s string) *string { return &s }

func TestGenerationPrompt(t *testing.T) {
	prompt := GenerationPrompt(map[string]session.Answer{
		"craft_type":   {Native: strPtr("ਫੁਲਕਾਰੀ"), Reference: strPtr("Phulkari")},
		"product_name": {Native: strPtr("ਦੁਪੱਟਾ"), Reference: nil},
		"materials":    {Native: strPtr("ਰੇਸ਼ਮ"), Reference: strPtr("silk")},
	})
	assert.Contains(t, prompt, "photograph of ਦੁਪੱਟਾ")
	assert.Contains(t, prompt, "handmade Phulkari made from silk.")
	assert.NotContains(t, prompt, "Notable details")
}

func TestGenerateImages(t *testing.T) {
	gen := &fakeGenerator{fail: 2}
	e, _ := newTestEnhancer(t, nil, gen)

	images, err := e.Generate(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "generated_1700000000_4242_1.png", images[0].Filename)
	assert.Equal(t, "http://test/files/generated/generated_1700000000_4242_3.png", images[1].URL)

	_, err = e.Generate(context.Background(), nil, 4)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	failing, _ := newTestEnhancer(t, nil, &fakeGenerator{err: errors.New("x")})
	_, err = failing.Generate(context.Background(), nil, 1)
	assert.True(t, apperr.Is(err, apperr.AdapterFailure))

	none, _ := newTestEnhancer(t, nil, nil)
	_, err = none.Generate(context.Background(), nil, 1)
	assert.True(t, apperr.Is(err, apperr.AdapterUnavailable))
}

func TestClipdropMultipart(t *testing.T) {
	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("image_file")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)

		if r.URL.Path == "/replace-background/v1" {
			assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
			assert.Equal(t, "white studio", r.FormValue("prompt"))
		} else {
			assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		}
		_, _ = w.Write(append([]byte("ok:"), data...))
	}))
	defer srv.Close()

	c := NewClipdrop("secret", 5*time.Second, WithClipdropBaseURL(srv.URL+"/"))

	out, err := c.RemoveBackground(context.Background(), []byte("jpg"))
	require.NoError(t, err)
	assert.Equal(t, "ok:jpg", string(out))

	out, err = c.ReplaceBackground(context.Background(), []byte("png"), "white studio")
	require.NoError(t, err)
	assert.Equal(t, "ok:png", string(out))

	assert.Equal(t, []string{"/remove-background/v1", "/replace-background/v1"}, gotPaths)
}

func TestClipdropErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"out of credits"}`))
	}))
	defer srv.Close()

	c := NewClipdrop("secret", 5*time.Second, WithClipdropBaseURL(srv.URL))
	_, err := c.RemoveBackground(context.Background(), []byte("jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "out of credits")
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"response_format":"b64_json"`)
		assert.Contains(t, string(body), `"model":"dall-e-3"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString([]byte("PNGDATA")) + `"}]}`))
	}))
	defer srv.Close()

	g, err := NewGenerator("openai", "key", "", srv.URL)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "a pot")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(out))
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	_, err := NewGenerator("groq", "key", "m", "")
	require.Error(t, err)
}
