package translate

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	"github.com/sjawhar/kalakaar/internal/metrics"
)

type Google struct {
	svc     *translate.Service
	timeout time.Duration
}

func NewGoogle(ctx context.Context, timeout time.Duration, opts ...option.ClientOption) (*Google, error) {
	svc, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate service: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Google{svc: svc, timeout: timeout}, nil
}

func (g *Google) Translate(ctx context.Context, text, source, target string) (out string, err error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	start := time.Now()
	defer func() { metrics.ObserveAdapter("translate_google", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.svc.Translations.List([]string{text}, target).Format("text")
	if source != "" {
		call = call.Source(source)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}
