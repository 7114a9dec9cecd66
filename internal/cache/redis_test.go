package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in       string
		wantAddr string
		wantPass string
		wantDB   int
		wantErr  bool
	}{
		{"redis://:mypassword@redis:6379/1", "redis:6379", "mypassword", 1, false},
		{"redis:6379", "redis:6379", "", 0, false},
		{"", "", "", 0, true},
		{"redis://redis:6379/notadb", "", "", 0, true},
	}

	for _, tc := range tests {
		opts, err := ParseOptions(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantAddr, opts.Addr)
		assert.Equal(t, tc.wantPass, opts.Password)
		assert.Equal(t, tc.wantDB, opts.DB)
	}
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(context.Background(), addr)
	assert.Error(t, err)
	assert.Nil(t, client)
}
