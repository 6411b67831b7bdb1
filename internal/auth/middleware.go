package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/sjawhar/kalakaar/internal/apperr"
)

const CookieName = "token"

type ctxKey struct{}

// Fallback resolves an identity when a request carries no token. A nil
// Fallback means anonymous requests are rejected.
type Fallback func(ctx context.Context) (int64, error)

type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok && id > 0
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Middleware resolves the caller's user id. An invalid token is always
// rejected, even when a fallback identity exists.
func Middleware(issuer *Issuer, fallback Fallback, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID int64
			if tok := tokenFrom(r); tok != "" {
				id, err := issuer.Parse(tok)
				if err != nil {
					hlog.FromRequest(r).Debug().Err(err).Msg("rejected token")
					fail(w, r, apperr.New(apperr.Unauthorized, "Invalid or expired token"))
					return
				}
				userID = id
			} else if fallback != nil {
				id, err := fallback(r.Context())
				if err != nil {
					fail(w, r, apperr.Wrap(apperr.Internal, "Failed to resolve demo user", err))
					return
				}
				userID = id
			} else {
				fail(w, r, apperr.New(apperr.Unauthorized, "Not authenticated"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
