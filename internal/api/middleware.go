// Package api implements the Gazette REST API using chi.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/starford/gazette/internal/token"
)

const maxBodyBytes = 10 << 20

type ctxKey string

const ctxUser ctxKey = "user"

// UserFromContext returns the authenticated username, or "".
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(ctxUser).(string)
	return u
}

// AuthResultFunc observes token checks ("ok", "expired", "invalid", "missing").
type AuthResultFunc func(result string)

// TokenAuth resolves the presented access token into a user. Missing,
// revoked and tampered tokens leave the request anonymous; an expired token
// is answered with 400.
func TokenAuth(tokens *token.Service, observe AuthResultFunc) func(http.Handler) http.Handler {
	if observe == nil {
		observe = func(string) {}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := token.FromRequest(r, peekBody(w, r))
			if raw == "" {
				observe("missing")
				next.ServeHTTP(w, r)
				return
			}
			user, err := tokens.Validate(raw)
			switch {
			case errors.Is(err, token.ErrExpired):
				observe("expired")
				writeJSON(w, http.StatusBadRequest, errorBody(token.ErrExpired.Error()))
				return
			case err != nil:
				observe("invalid")
				next.ServeHTTP(w, r)
				return
			}
			observe("ok")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUser, user)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("not authorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit answers 429 once the shared token bucket is empty.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perSecond > 0 && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peekBody returns a JSON object body (or nil) and leaves r.Body readable
// for the handler. Form bodies are parsed into r.PostForm instead.
func peekBody(w http.ResponseWriter, r *http.Request) map[string]any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		_ = r.ParseForm()
		return nil
	case "application/json", "":
	default:
		return nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}
