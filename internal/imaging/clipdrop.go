package imaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

const ClipdropBaseURL = "https://clipdrop-api.co"

type Clipdrop struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type ClipdropOption func(*Clipdrop)

func WithClipdropBaseURL(u string) ClipdropOption {
	return func(c *Clipdrop) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func NewClipdrop(apiKey string, timeout time.Duration, opts ...ClipdropOption) *Clipdrop {
	c := &Clipdrop{
		apiKey:  apiKey,
		baseURL: ClipdropBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Clipdrop) RemoveBackground(ctx context.Context, img []byte) (out []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("clipdrop_remove_bg", start, err) }()

	return c.post(ctx, "/remove-background/v1", "image.jpg", "image/jpeg", img, nil)
}

func (c *Clipdrop) ReplaceBackground(ctx context.Context, img []byte, prompt string) (out []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAdapter("clipdrop_replace_bg", start, err) }()

	return c.post(ctx, "/replace-background/v1", "image.png", "image/png", img, map[string]string{"prompt": prompt})
}

func (c *Clipdrop) post(ctx context.Context, path, filename, contentType string, img []byte, fields map[string]string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clipdrop %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read clipdrop response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("clipdrop %s returned %d: %s", path, resp.StatusCode, msg)
	}
	return data, nil
}
