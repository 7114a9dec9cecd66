// Package session holds the persisted identity of the logged-in user and
// hands out the bearer credential attached to every connection attempt.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession is returned when no user is logged in.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExpired is returned when the stored token is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// Session is the identity of the logged-in user.
type Session struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the session is past its expiry. A zero expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Claims is the subset of token claims the client reads.
type Claims struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// FromToken derives a session from a bearer token. The signature is not
// verified: the server does that, the client only needs identity and expiry.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Session{}, ErrNoSession
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Session{}, errors.New("token carries no user id")
	}

	s := Session{UserID: userID, Username: claims.Username, Token: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Store persists the current session.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Provider answers identity questions for the rest of the core.
type Provider struct {
	store Store
	now   func() time.Time
}

// NewProvider creates a Provider backed by store.
func NewProvider(store Store) *Provider {
	return &Provider{store: store, now: time.Now}
}

// Login stores the session derived from token.
func (p *Provider) Login(ctx context.Context, token string) (Session, error) {
	s, err := FromToken(token)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(p.now()) {
		return Session{}, ErrSessionExpired
	}
	if err := p.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Logout forgets the current session.
func (p *Provider) Logout(ctx context.Context) error {
	return p.store.Clear(ctx)
}

// Current returns the live session, or ErrNoSession / ErrSessionExpired.
func (p *Provider) Current(ctx context.Context) (Session, error) {
	s, err := p.store.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	if s.Token == "" || s.UserID == "" {
		return Session{}, ErrNoSession
	}
	if s.Expired(p.now()) {
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

// Token returns the bearer credential of the live session. It is read from
// the store on every call so a refreshed session is picked up on reconnect.
func (p *Provider) Token(ctx context.Context) (string, error) {
	s, err := p.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// UserID returns the current user id, or false when nobody is logged in.
func (p *Provider) UserID(ctx context.Context) (string, bool) {
	s, err := p.Current(ctx)
	if err != nil {
		return "", false
	}
	return s.UserID, true
}
