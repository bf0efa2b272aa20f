package web

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/starford/gazette/internal/policy"
)

const (
	// DefaultCookieName names the session cookie when none is configured.
	DefaultCookieName = "gazette_session"

	sessionMaxAge = 3600 * 8
	keyUsername   = "username"
	keyRole       = "role"
)

// Sessions stores the logged-in actor in a signed cookie.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

// NewSessions creates a cookie-backed actor store. secure marks the cookie
// HTTPS-only.
func NewSessions(secret, name string, secure bool) *Sessions {
	if name == "" {
		name = DefaultCookieName
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store, name: name}
}

// Actor returns the logged-in actor, or the anonymous actor when the cookie
// is missing or cannot be decoded.
func (s *Sessions) Actor(r *http.Request) policy.Actor {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return policy.Actor{}
	}
	username, _ := sess.Values[keyUsername].(string)
	role, _ := sess.Values[keyRole].(string)
	if username == "" {
		return policy.Actor{}
	}
	return policy.Actor{Username: username, Role: policy.ParseRole(role)}
}

// Save writes a into the session cookie.
func (s *Sessions) Save(w http.ResponseWriter, r *http.Request, a policy.Actor) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values[keyUsername] = a.Username
	sess.Values[keyRole] = a.Role.String()
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
