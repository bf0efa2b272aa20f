// Package token issues, validates and revokes signed access tokens.
//
// Tokens are HS256 JWTs carrying the username in "iss" and the expiry in
// "exp" as epoch milliseconds.
package token

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long issued tokens stay valid unless configured otherwise.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrInvalid = errors.New("invalid access token")
	ErrExpired = errors.New("access token has expired")
)

// Issued is the result of a successful Issue.
type Issued struct {
	Token     string
	ExpiresAt int64 // epoch millis
	Username  string
}

// Service signs and checks tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service signing with secret.
func New(secret string, opts ...Option) *Service {
	s := &Service{
		secret:  []byte(secret),
		ttl:     DefaultTTL,
		now:     time.Now,
		revoked: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a fresh token for username.
func (s *Service) Issue(username string) (Issued, error) {
	if username == "" {
		return Issued{}, errors.New("token: username is required")
	}
	exp := s.now().Add(s.ttl).UnixMilli()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": username,
		"exp": exp,
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign: %w", err)
	}
	return Issued{Token: signed, ExpiresAt: exp, Username: username}, nil
}

// Validate returns the username carried by raw. Revoked, tampered and
// undecodable tokens yield ErrInvalid; a token is expired only once the
// current time is strictly past its "exp" stamp.
func (s *Service) Validate(raw string) (string, error) {
	if raw == "" || s.isRevoked(raw) {
		return "", ErrInvalid
	}

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !tok.Valid {
		return "", ErrInvalid
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalid
	}
	iss, ok := claims["iss"].(string)
	if !ok || iss == "" {
		return "", ErrInvalid
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", ErrInvalid
	}
	if int64(exp) < s.now().UnixMilli() {
		return "", ErrExpired
	}
	return iss, nil
}

// Revoke makes raw permanently invalid for this process.
func (s *Service) Revoke(raw string) {
	if raw == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[raw] = struct{}{}
}

func (s *Service) isRevoked(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[raw]
	return ok
}

// FromRequest finds the token a client presented. It looks, in order, at
// the access_token body field, the access_token query parameter, the
// x-access-token header and finally an Authorization bearer header.
// body may be nil when the request carried no parsed body.
func FromRequest(r *http.Request, body map[string]any) string {
	if v, ok := body["access_token"].(string); ok && v != "" {
		return v
	}
	if r.PostForm != nil {
		if v := r.PostForm.Get("access_token"); v != "" {
			return v
		}
	}
	if v := r.URL.Query().Get("access_token"); v != "" {
		return v
	}
	if v := r.Header.Get("x-access-token"); v != "" {
		return v
	}
	const prefix = "Bearer "
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, prefix) {
		return strings.TrimPrefix(authz, prefix)
	}
	return ""
}
