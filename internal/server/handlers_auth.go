package server

import (
	"net/http"
	"time"

	"github.com/sjawhar/kalakaar/internal/apperr"
	"github.com/sjawhar/kalakaar/internal/auth"
	"github.com/sjawhar/kalakaar/internal/content"
	"github.com/sjawhar/kalakaar/internal/storage"
)

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status := "online"
	if err := a.Store.Ping(r.Context()); err != nil {
		status = "degraded"
	}
	warnings := a.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	adapters := a.Adapters
	if adapters == nil {
		adapters = map[string]bool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"service":  "Kalakaar",
		"adapters": adapters,
		"warnings": warnings,
	})
}

func (a *api) platforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"platforms": content.Catalog()})
}

func (a *api) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.Issuer.TTL()),
	})
}

func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "failed to create account", err))
		return
	}
	user, err := a.Store.CreateUser(r.Context(), storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Location:     req.Location,
		CraftType:    req.CraftType,
	})
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			err = apperr.Wrap(apperr.Conflict, "Email already exists", err)
		}
		writeError(w, r, err)
		return
	}

	token, err := a.Issuer.Issue(user.ID)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "failed to issue token", err))
		return
	}
	a.setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created!", "token": token, "user": user})
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	invalid := apperr.New(apperr.Unauthorized, "Invalid credentials")
	user, err := a.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			writeError(w, r, invalid)
			return
		}
		writeError(w, r, err)
		return
	}
	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		writeError(w, r, invalid)
		return
	}

	token, err := a.Issuer.Issue(user.ID)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Internal, "failed to issue token", err))
		return
	}
	a.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful!", "token": token, "user": user})
}

func (a *api) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			err = apperr.Wrap(apperr.Unauthorized, "Not authenticated", err)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
