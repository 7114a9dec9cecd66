package api

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"chatsync/internal/models"
	"chatsync/internal/session"
	"chatsync/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu    sync.Mutex
	calls []string
	auth  []string
}

func (r *recorded) add(c *fiber.Ctx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c.Method()+" "+c.Path())
	r.auth = append(r.auth, c.Get(fiber.HeaderAuthorization))
}

func (r *recorded) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]string(nil), r.auth...)
}

func startAPI(t *testing.T, list []models.Notification, failRead bool) (string, *recorded) {
	t.Helper()
	rec := &recorded{}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api := app.Group("/api")
	api.Get("/notifications", func(c *fiber.Ctx) error {
		rec.add(c)
		return c.JSON(list)
	})
	api.Patch("/notifications/read-all", func(c *fiber.Ctx) error {
		rec.add(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	api.Patch("/notifications/:id/read", func(c *fiber.Ctx) error {
		rec.add(c)
		if failRead {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "db down"})
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "isRead": true})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String() + "/api", rec
}

func staticToken(tok string) TokenFunc {
	return func(context.Context) (string, error) { return tok, nil }
}

func TestNotificationClient_List(t *testing.T) {
	want := []models.Notification{testutil.NewNotification(), testutil.NewNotification()}
	base, rec := startAPI(t, want, false)

	c := NewNotificationClient(base+"/", staticToken("tok"))
	got, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0].ID, got[0].ID)
	assert.Equal(t, want[1].Type, got[1].Type)

	calls, auth := rec.snapshot()
	assert.Equal(t, []string{"GET /api/notifications"}, calls)
	assert.Equal(t, []string{"Bearer tok"}, auth)
}

func TestNotificationClient_MarkRead(t *testing.T) {
	base, rec := startAPI(t, nil, false)
	c := NewNotificationClient(base, staticToken("tok"))

	require.NoError(t, c.MarkRead(context.Background(), "n1"))
	require.NoError(t, c.MarkAllRead(context.Background()))

	calls, _ := rec.snapshot()
	assert.Equal(t, []string{"PATCH /api/notifications/n1/read", "PATCH /api/notifications/read-all"}, calls)
}

func TestNotificationClient_ErrorStatus(t *testing.T) {
	base, _ := startAPI(t, nil, true)
	c := NewNotificationClient(base, staticToken("tok"))

	err := c.MarkRead(context.Background(), "n1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestNotificationClient_NoSession(t *testing.T) {
	c := NewNotificationClient("http://127.0.0.1:1/api", func(context.Context) (string, error) {
		return "", session.ErrNoSession
	})
	err := c.MarkAllRead(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNoSession)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestNotificationClient_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := NewNotificationClient("http://"+addr, staticToken("tok"))
	_, err = c.List(context.Background())
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "UPSTREAM_ERROR", appErr.Code)
}

func TestNotificationClient_CanceledContext(t *testing.T) {
	c := NewNotificationClient("http://127.0.0.1:1", staticToken("tok"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.MarkAllRead(ctx), context.Canceled)
}
