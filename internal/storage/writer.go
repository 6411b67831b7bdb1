package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type ExportPost struct {
	Platform string
	Content  string
	Error    bool
}

// Writer keeps a human-readable markdown copy of every generated listing,
// one file per session.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Append(sessionID string, at time.Time, posts []ExportPost) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.PathFor(sessionID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	fmt.Fprintf(&b, "## Generated %s\n\n", at.UTC().Format(time.RFC3339))
	for _, p := range posts {
		if p.Error {
			fmt.Fprintf(&b, "### %s (failed)\n\n%s\n\n", p.Platform, strings.TrimSpace(p.Content))
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", p.Platform, strings.TrimSpace(p.Content))
	}

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) PathFor(sessionID string) string {
	return filepath.Join(w.dir, filepath.Base(sessionID)+".md")
}
