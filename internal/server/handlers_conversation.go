package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/content"
	"github.com/sjawhar/kalakaar/internal/flow"
	"github.com/sjawhar/kalakaar/internal/llm"
	"github.com/sjawhar/kalakaar/internal/session"
	"github.com/sjawhar/kalakaar/internal/storage"
)

func (a *api) startConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.Sessions.Start(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) respond(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	up, err := a.readUpload(w, r, "audio")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := r.FormValue("session_id")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "session_id is required"))
		return
	}

	res, err := a.Sessions.Respond(r.Context(), userID, sessionID, up.Data, up.ContentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Payload())
}

func progressOf(script flow.Script, sess session.Session) int {
	if sess.IsComplete {
		return 100
	}
	idx := script.Index(sess.CurrentStepID)
	if idx < 0 {
		return 0
	}
	return script.Progress(idx)
}

func (a *api) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := a.Sessions.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sess,
		"progress": progressOf(a.Sessions.Script(), sess),
	})
}

type generateRequest struct {
	SessionID string   `json:"session_id"`
	ImageURL  string   `json:"image_url"`
	Platforms []string `json:"platforms"`
}

func (a *api) generateContent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "session_id is required"))
		return
	}

	sess, err := a.Sessions.Get(r.Context(), userID, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !sess.IsComplete {
		writeError(w, r, apperr.New(apperr.InvalidState, "Conversation not completed").
			WithDetail("current_step", sess.CurrentStepID))
		return
	}
	if a.Assembler == nil {
		writeError(w, r, apperr.New(apperr.AdapterUnavailable, "text generation is not configured"))
		return
	}

	image := a.resolveImage(r.Context(), req.ImageURL)

	posts, err := a.Assembler.Generate(r.Context(), sess.CollectedAnswers, req.Platforms, image)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := posts.IDs()
	encoded, err := json.Marshal(posts)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "encode posts", err))
		return
	}
	if err := a.Store.SaveContent(r.Context(), userID, storage.Content{
		SessionID: sess.ID,
		Platforms: ids,
		Posts:     encoded,
		ImageURL:  req.ImageURL,
	}); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist content")
	}
	a.export(r, sess.ID, posts)
	a.Hub.BroadcastContentReady(userID, sess.ID, ids)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"platforms":  ids,
		"content":    json.RawMessage(encoded),
		"model_used": a.Assembler.Model(),
	})
}

func (a *api) export(r *http.Request, sessionID string, posts content.Posts) {
	if a.Exports == nil || posts.Len() == 0 {
		return
	}
	out := make([]storage.ExportPost, 0, posts.Len())
	for _, id := range posts.IDs() {
		p, _ := posts.Get(id)
		out = append(out, storage.ExportPost{Platform: p.Platform, Content: p.Content, Error: p.Error})
	}
	if err := a.Exports.Append(sessionID, a.Now(), out); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session_id", sessionID).Msg("failed to export posts")
	}
}

func (a *api) getContent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := a.Store.GetContent(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// resolveImage loads an optional product photo for content generation.
// Failures are logged and the image is omitted.
func (a *api) resolveImage(ctx context.Context, raw string) *llm.Image {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	log := a.Logger.With().Str("image_url", raw).Logger()

	if key, ok := blob.KeyFromURL(raw); ok {
		data, err := a.Blob.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("stored image unavailable, generating without it")
			return nil
		}
		img := llm.NewImage(data, blob.ContentType(key))
		return &img
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		log.Warn().Msg("image_url is not a stored image or absolute URL, ignoring")
		return nil
	}
	img, err := a.fetchImage(ctx, raw)
	if err != nil {
		log.Warn().Err(err).Msg("image fetch failed, generating without it")
		return nil
	}
	return img
}

func (a *api) fetchImage(ctx context.Context, url string) (*llm.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.MaxUploadBytes {
		return nil, errors.New("fetch image: too large")
	}
	img := llm.NewImage(data, resp.Header.Get("Content-Type"))
	return &img, nil
}
