package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/kalakaar/internal/apperr"
)

const (
	ArtifactEnhanced  = "enhanced"
	ArtifactGenerated = "generated"
	ArtifactUpload    = "upload"
)

type Artifact struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Kind      string            `json:"kind"`
	URL       string            `json:"url"`
	Filename  string            `json:"filename"`
	Size      int64             `json:"size"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Content struct {
	SessionID string          `json:"session_id"`
	Platforms []string        `json:"platforms"`
	Posts     json.RawMessage `json:"content"`
	ImageURL  string          `json:"image_url,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SaveArtifacts attaches artifacts to a session owned by ownerUserID in one
// transaction.
func (s *SQLiteStore) SaveArtifacts(ctx context.Context, sessionID string, ownerUserID int64, artifacts []Artifact) ([]Artifact, error) {
	if err := s.checkOwner(ctx, sessionID, ownerUserID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "begin artifacts tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	saved := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		a.ID = uuid.Must(uuid.NewV7()).String()
		a.SessionID = sessionID
		a.CreatedAt = now
		meta, err := json.Marshal(a.Metadata)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "encode artifact metadata", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts(id, session_id, kind, url, filename, size, metadata, created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, sessionID, a.Kind, a.URL, a.Filename, a.Size, string(meta), now.Format(time.RFC3339Nano),
		); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "insert artifact", err)
		}
		saved = append(saved, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "commit artifacts", err)
	}
	return saved, nil
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, sessionID string, ownerUserID int64) ([]Artifact, error) {
	if err := s.checkOwner(ctx, sessionID, ownerUserID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, url, filename, size, metadata, created_at
		 FROM artifacts WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "query artifacts", err)
	}
	defer func() { _ = rows.Close() }()

	artifacts := make([]Artifact, 0, 4)
	for rows.Next() {
		var a Artifact
		var meta, createdAt string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.URL, &a.Filename, &a.Size, &meta, &createdAt); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "scan artifact", err)
		}
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "decode artifact metadata", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, "parse artifact created_at", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "iterate artifact rows", err)
	}
	return artifacts, nil
}

// SaveContent stores the posts generated for a session, replacing any
// earlier generation for the same session only.
func (s *SQLiteStore) SaveContent(ctx context.Context, ownerUserID int64, c Content) error {
	if err := s.checkOwner(ctx, c.SessionID, ownerUserID); err != nil {
		return err
	}
	platforms, err := json.Marshal(c.Platforms)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "encode platforms", err)
	}
	posts := c.Posts
	if len(posts) == 0 {
		posts = json.RawMessage(`{}`)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contents(session_id, platforms, posts, image_url, updated_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET platforms = excluded.platforms, posts = excluded.posts,
		     image_url = excluded.image_url, updated_at = excluded.updated_at`,
		c.SessionID, string(platforms), string(posts), c.ImageURL, s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, "save content", err)
	}
	return nil
}

func (s *SQLiteStore) GetContent(ctx context.Context, sessionID string, ownerUserID int64) (Content, error) {
	if err := s.checkOwner(ctx, sessionID, ownerUserID); err != nil {
		return Content{}, err
	}

	var c Content
	var platforms, posts, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, platforms, posts, image_url, updated_at FROM contents WHERE session_id = ?`,
		sessionID,
	).Scan(&c.SessionID, &platforms, &posts, &c.ImageURL, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Content{}, apperr.Wrap(apperr.NotFound, "no content generated for this session", err)
		}
		return Content{}, apperr.Wrap(apperr.StorageError, "load content", err)
	}
	if err := json.Unmarshal([]byte(platforms), &c.Platforms); err != nil {
		return Content{}, apperr.Wrap(apperr.StorageError, "decode platforms", err)
	}
	c.Posts = json.RawMessage(posts)
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Content{}, apperr.Wrap(apperr.StorageError, "parse content updated_at", err)
	}
	return c, nil
}

func (s *SQLiteStore) checkOwner(ctx context.Context, sessionID string, ownerUserID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id = ? AND owner_user_id = ?`, sessionID, ownerUserID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Wrap(apperr.NotFound, "session not found", err)
		}
		return apperr.Wrap(apperr.StorageError, fmt.Sprintf("check session %s owner", sessionID), err)
	}
	return nil
}
