package testutil

import (
	"context"
	"time"

	"chatsync/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

// SignToken builds an HS256 token for userID that expires after ttl. A zero
// ttl leaves out the exp claim.
func SignToken(userID, username string, ttl time.Duration) string {
	claims := session.Claims{UserID: userID, Username: username}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return token
}

// NewSession returns a provider backed by a memory store with user logged in.
func NewSession(user string) *session.Provider {
	p := session.NewProvider(session.NewMemoryStore())
	if user == "" {
		return p
	}
	if _, err := p.Login(context.Background(), SignToken(user, user, time.Hour)); err != nil {
		panic(err)
	}
	return p
}
