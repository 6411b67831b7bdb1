package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/blob"
	"github.com/sjawhar/kalakaar/internal/imaging"
	"github.com/sjawhar/kalakaar/internal/storage"
)

type upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// readUpload reads one multipart file field, enforcing the upload limit.
func (a *api) readUpload(w http.ResponseWriter, r *http.Request, field string) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(a.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, apperr.Newf(apperr.InvalidInput, "upload exceeds %d bytes", a.MaxUploadBytes)
		}
		return upload{}, apperr.Wrap(apperr.InvalidInput, "invalid multipart form", err)
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		return upload{}, apperr.Newf(apperr.InvalidInput, "No %s file provided", field)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, a.MaxUploadBytes+1))
	if err != nil {
		return upload{}, apperr.Wrap(apperr.InvalidInput, "read upload", err)
	}
	if int64(len(data)) > a.MaxUploadBytes {
		return upload{}, apperr.Newf(apperr.InvalidInput, "upload exceeds %d bytes", a.MaxUploadBytes)
	}
	if len(data) == 0 {
		return upload{}, apperr.Newf(apperr.InvalidInput, "%s file is empty", field)
	}

	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return upload{Data: data, ContentType: ct, Filename: header.Filename}, nil
}

func (a *api) uploadImage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	up, err := a.readUpload(w, r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		writeError(w, r, apperr.New(apperr.InvalidInput, "file must be an image"))
		return
	}

	filename := fmt.Sprintf("%d_%s", a.Now().Unix(), blob.SafeName(up.Filename))
	url, err := a.Blob.Put(r.Context(), blob.PrefixUploads+"/"+filename, up.Data, up.ContentType)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.StorageError, "Failed to store image", err))
		return
	}

	if sessionID := strings.TrimSpace(r.FormValue("session_id")); sessionID != "" {
		if _, err := a.Store.SaveArtifacts(r.Context(), sessionID, userID, []storage.Artifact{
			{Kind: storage.ArtifactUpload, URL: url, Filename: filename, Size: int64(len(up.Data))},
		}); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"url":      url,
		"filename": filename,
		"size":     len(up.Data),
	})
}

type enhanceRequest struct {
	ImageURL       string `json:"image_url"`
	SessionID      string `json:"session_id"`
	CreateVariants *bool  `json:"create_variants"`
	NumVariants    *int   `json:"num_variants"`
}

func (a *api) enhanceImage(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req enhanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "No image URL provided"))
		return
	}
	n := imaging.MaxImages
	if req.NumVariants != nil {
		n = *req.NumVariants
	}
	if n < 1 || n > imaging.MaxImages {
		writeError(w, r, apperr.Newf(apperr.InvalidInput, "num_variants must be between 1 and %d", imaging.MaxImages))
		return
	}
	if a.Enhancer == nil || !a.Enhancer.CanEnhance() {
		writeError(w, r, apperr.New(apperr.AdapterUnavailable, "Image enhancement service not available. Please configure CLIPDROP_API_KEY"))
		return
	}

	key, ok := blob.KeyFromURL(req.ImageURL)
	if !ok {
		writeError(w, r, apperr.New(apperr.NotFound, "Source image not found"))
		return
	}
	src, err := a.Blob.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, r, apperr.Wrap(apperr.NotFound, "Source image not found", err))
			return
		}
		writeError(w, r, apperr.Wrap(apperr.StorageError, "Failed to read source image", err))
		return
	}

	craft := ""
	if req.SessionID != "" {
		sess, err := a.Sessions.Get(r.Context(), userID, req.SessionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if ans, ok := sess.CollectedAnswers["craft_type"]; ok && ans.Reference != nil {
			craft = *ans.Reference
		}
	}

	variants := req.CreateVariants == nil || *req.CreateVariants

	var images []imaging.Image
	if variants {
		images, err = a.Enhancer.Variants(r.Context(), src, craft, n)
	} else {
		images, err = a.Enhancer.Single(r.Context(), src, craft)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.recordImages(r, userID, req.SessionID, storage.ArtifactEnhanced, images)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"original_image":  req.ImageURL,
		"enhanced_images": images,
		"count":           len(images),
	})
}

type generateImagesRequest struct {
	SessionID string `json:"session_id"`
	NumImages *int   `json:"num_images"`
}

func (a *api) generateImages(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req generateImagesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "session_id is required"))
		return
	}
	n := 1
	if req.NumImages != nil {
		n = *req.NumImages
	}
	if n < 1 || n > imaging.MaxImages {
		writeError(w, r, apperr.Newf(apperr.InvalidInput, "num_images must be between 1 and %d", imaging.MaxImages))
		return
	}

	sess, err := a.Sessions.Get(r.Context(), userID, req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if a.Enhancer == nil {
		writeError(w, r, apperr.New(apperr.AdapterUnavailable, "image generation is not configured"))
		return
	}

	images, err := a.Enhancer.Generate(r.Context(), sess.CollectedAnswers, n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.recordImages(r, userID, sess.ID, storage.ArtifactGenerated, images)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"generated_images": images,
		"count":            len(images),
	})
}

// recordImages attaches images to their session and notifies subscribers.
func (a *api) recordImages(r *http.Request, userID int64, sessionID, kind string, images []imaging.Image) {
	if sessionID != "" {
		artifacts := make([]storage.Artifact, 0, len(images))
		for _, img := range images {
			meta := map[string]string{"method": img.Method}
			if img.StyleDescriptor != "" {
				meta["style"] = img.StyleDescriptor
			}
			if img.Variant > 0 {
				meta["variant"] = strconv.Itoa(img.Variant)
			}
			artifacts = append(artifacts, storage.Artifact{
				Kind:     kind,
				URL:      img.URL,
				Filename: img.Filename,
				Size:     int64(img.Size),
				Metadata: meta,
			})
		}
		if _, err := a.Store.SaveArtifacts(r.Context(), sessionID, userID, artifacts); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("session_id", sessionID).Msg("failed to record artifacts")
		}
	}
	a.Hub.BroadcastImagesReady(userID, sessionID, kind, len(images))
}

func (a *api) listArtifacts(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	artifacts, err := a.Store.ListArtifacts(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []storage.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

func (a *api) serveFile(w http.ResponseWriter, r *http.Request) {
	key, err := blob.CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, apperr.New(apperr.NotFound, "file not found"))
		return
	}
	data, err := a.Blob.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, r, apperr.New(apperr.NotFound, "file not found"))
			return
		}
		writeError(w, r, apperr.Wrap(apperr.StorageError, "read file", err))
		return
	}
	w.Header().Set("Content-Type", blob.ContentType(key))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
