package blob

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Prefixes under which the service stores blobs. Only these are accepted
// back from clients as image references.
const (
	PrefixUploads   = "uploads"
	PrefixEnhanced  = "enhanced"
	PrefixGenerated = "generated"
	PrefixAudio     = "audio"
)

var ErrNotFound = errors.New("blob not found")

type Store interface {
	// Put stores data under key and returns the URL clients use to fetch it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	Get(ctx context.Context, key string) ([]byte, error)

	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "gdrive".
	Type() string
}

// CleanKey validates a storage key: relative, slash separated, no traversal.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return cleaned, nil
}

// KeyFromURL extracts the storage key from a URL handed out by a Store. The
// key must live under one of the image prefixes.
func KeyFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return "", false
	}

	p := u.Path
	if i := strings.Index(p, "/files/"); i >= 0 {
		p = p[i+len("/files/"):]
	}

	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 2 {
		return "", false
	}
	prefix, name := parts[len(parts)-2], parts[len(parts)-1]
	switch prefix {
	case PrefixUploads, PrefixEnhanced, PrefixGenerated:
	default:
		return "", false
	}

	key, err := CleanKey(prefix + "/" + name)
	if err != nil || name == "" || name == "." || name == ".." {
		return "", false
	}
	return key, true
}

func ContentType(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "image"
	}
	return out
}
