package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("user id claim", func(t *testing.T) {
		tok := signToken(t, Claims{UserID: "7", Username: "alice", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}})
		s, err := FromToken("Bearer " + tok)
		require.NoError(t, err)
		assert.Equal(t, "7", s.UserID)
		assert.Equal(t, "alice", s.Username)
		assert.Equal(t, tok, s.Token)
		assert.True(t, exp.Equal(s.ExpiresAt))
	})

	t.Run("subject fallback", func(t *testing.T) {
		tok := signToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "9"}})
		s, err := FromToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "9", s.UserID)
		assert.True(t, s.ExpiresAt.IsZero())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromToken("  ")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := FromToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("no identity", func(t *testing.T) {
		tok := signToken(t, Claims{Username: "ghost"})
		_, err := FromToken(tok)
		assert.Error(t, err)
	})
}

func TestProvider_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryStore())

	_, err := p.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	_, ok := p.UserID(ctx)
	assert.False(t, ok)

	tok := signToken(t, Claims{UserID: "1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	_, err = p.Login(ctx, tok)
	require.NoError(t, err)

	got, err := p.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	uid, ok := p.UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "1", uid)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Token(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)

	require.NoError(t, p.Logout(ctx))
	p.now = time.Now
	_, err = p.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestProvider_LoginRejectsExpired(t *testing.T) {
	p := NewProvider(NewMemoryStore())
	tok := signToken(t, Claims{UserID: "1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}})
	_, err := p.Login(context.Background(), tok)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestProvider_TokenRefreshIsVisible(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := NewProvider(store)

	first := signToken(t, Claims{UserID: "1", Username: "a"})
	second := signToken(t, Claims{UserID: "1", Username: "b"})

	_, err := p.Login(ctx, first)
	require.NoError(t, err)
	tok, _ := p.Token(ctx)
	assert.Equal(t, first, tok)

	_, err = p.Login(ctx, second)
	require.NoError(t, err)
	tok, _ = p.Token(ctx)
	assert.Equal(t, second, tok)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	store := NewRedisStore(rdb, "")

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(ctx, Session{UserID: "5", Username: "eve", Token: "tok", ExpiresAt: exp}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", got.UserID)
	assert.Equal(t, "eve", got.Username)
	assert.Equal(t, "tok", got.Token)
	assert.True(t, exp.Equal(got.ExpiresAt))
	assert.True(t, mr.TTL(defaultSessionKey) > 0)

	require.NoError(t, store.Save(ctx, Session{UserID: "6", Token: "tok2"}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6", got.UserID)
	assert.Empty(t, got.Username)
	assert.True(t, got.ExpiresAt.IsZero())

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}
