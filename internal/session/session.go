// Package session resolves the caller of a request into an explicit Session value
// that is handed to every service call.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account behind a session
type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Session is an authenticated caller
type Session struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserID returns the session user's id, or uuid.Nil for a nil session
func (s *Session) UserID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// Provider resolves request headers into a session. It returns nil and no error
// when the request carries no credentials.
type Provider interface {
	GetSession(header http.Header) (*Session, error)
}

// ExtractToken returns the bearer token from an Authorization header
func ExtractToken(header http.Header) string {
	auth := header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
