// Package auth exchanges credentials for upstream session tokens and tracks
// which tokens the dashboard still accepts.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

var (
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrExpired            = errors.New("session expired")
	ErrRevoked            = errors.New("session revoked")
)

// Session is the decoded view of an upstream token.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ParseSession decodes the token claims. The signature is not verified: the
// upstream platform signs tokens and validates them on every query, the
// dashboard only needs the user id and expiry.
func ParseSession(token string) (Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	s := Session{Token: token}
	for _, key := range []string{"sub", "userId", "id"} {
		if id, ok := claimInt(claims[key]); ok {
			s.UserID = id
			break
		}
	}
	if s.UserID == 0 {
		return Session{}, fmt.Errorf("%w: no user id claim", ErrInvalidToken)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

func claimInt(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		id, err := strconv.ParseInt(x, 10, 64)
		return id, err == nil && id > 0
	case float64:
		return int64(x), x > 0
	default:
		return 0, false
	}
}

// Sessions validates tokens and remembers the ones invalidated by logout.
// Revoked tokens are kept until their own expiry.
type Sessions struct {
	revoked *cache.Cache
	maxTTL  time.Duration
	now     func() time.Time
}

// NewSessions returns a Sessions store. maxTTL bounds how long a revoked token
// without an exp claim is remembered.
func NewSessions(maxTTL time.Duration) *Sessions {
	if maxTTL <= 0 {
		maxTTL = 24 * time.Hour
	}
	return &Sessions{
		revoked: cache.New(maxTTL, 10*time.Minute),
		maxTTL:  maxTTL,
		now:     time.Now,
	}
}

// Validate returns the decoded session when token is parseable, unexpired and
// not revoked.
func (s *Sessions) Validate(token string) (Session, error) {
	sess, err := ParseSession(token)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(s.now()) {
		return Session{}, ErrExpired
	}
	if _, revoked := s.revoked.Get(token); revoked {
		return Session{}, ErrRevoked
	}
	return sess, nil
}

// Valid is Validate without the reason.
func (s *Sessions) Valid(token string) bool {
	_, err := s.Validate(token)
	return err == nil
}

// Invalidate revokes token until it expires on its own.
func (s *Sessions) Invalidate(token string) {
	ttl := s.maxTTL
	if sess, err := ParseSession(token); err == nil && !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return
		}
	}
	s.revoked.Set(token, struct{}{}, ttl)
}
