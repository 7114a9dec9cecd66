package debugserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatsync/internal/connection"
	"chatsync/internal/intent"
	"chatsync/internal/models"
	"chatsync/internal/router"
	"chatsync/internal/session"
	"chatsync/internal/store"
	"chatsync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	err error
}

func (s *stubAPI) List(context.Context) ([]models.Notification, error) {
	return []models.Notification{testutil.NewNotification(func(n *models.Notification) { n.ID = "n1" })}, s.err
}
func (s *stubAPI) MarkRead(context.Context, string) error { return s.err }
func (s *stubAPI) MarkAllRead(context.Context) error      { return s.err }

type harness struct {
	srv  *Server
	ft   *testutil.FakeTransport
	msgs *store.MessageStore
	api  *stubAPI
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ft := testutil.NewFakeTransport()
	msgs := store.NewMessageStore()
	notifs := store.NewNotificationStore()
	sessions := session.NewProvider(session.NewMemoryStore())
	api := &stubAPI{}

	intents := intent.New(ft, msgs, notifs, sessions, api)
	r := router.New(ft, msgs, notifs, sessions)
	r.SetFocus(intents)
	mgr := connection.NewManager(ft, sessions, r)

	srv := New(Deps{
		Messages:       msgs,
		Notifications:  notifs,
		Intents:        intents,
		Connection:     mgr,
		Sessions:       sessions,
		GroupingWindow: 3 * time.Minute,
		Location:       time.UTC,
	})
	return &harness{srv: srv, ft: ft, msgs: msgs, api: api}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (h *harness) state(t *testing.T) StateResponse {
	t.Helper()
	code, body := h.do(t, http.MethodGet, "/debug/state", "")
	require.Equal(t, http.StatusOK, code)
	var st StateResponse
	require.NoError(t, json.Unmarshal(body, &st))
	return st
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	tok := testutil.SignToken("me", "Me", time.Hour)
	code, _ := h.do(t, http.MethodPost, "/session/login", `{"token":"`+tok+`"}`)
	require.Equal(t, http.StatusOK, code)
	h.ft.SimulateConnect()
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	code, body := h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "chatsync_router_rebinds_total")
}

func TestLoginConnectsAndReportsState(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	st := h.state(t)
	assert.True(t, st.Connected)
	assert.Equal(t, "me", st.UserID)
	assert.NotNil(t, st.LastConnectedAt)
	assert.Equal(t, 1, h.ft.Opens())
	assert.Equal(t, 1, h.ft.ListenerCount(models.EventMessageAck))
}

func TestLoginRejectsBadToken(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(t, http.MethodPost, "/session/login", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, code)

	expired := testutil.SignToken("me", "Me", -time.Hour)
	code, body := h.do(t, http.MethodPost, "/session/login", `{"token":"`+expired+`"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, string(body), "error")
	assert.Zero(t, h.ft.Opens())
}

func TestSendPublicIntent(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, body := h.do(t, http.MethodPost, "/intents/public", `{"content":"hello"}`)
	require.Equal(t, http.StatusAccepted, code)
	var p models.SendPublicPayload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.NotEmpty(t, p.TempID)

	code, _ = h.do(t, http.MethodPost, "/intents/public", `{"content":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	assert.Equal(t, 1, h.state(t).PublicCount)

	code, _ = h.do(t, http.MethodPost, "/intents/public/"+p.TempID+"/resend", "")
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = h.do(t, http.MethodPost, "/intents/public/nope/resend", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = h.do(t, http.MethodGet, "/debug/public", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"showHeader":true`)
}

func TestConversationAndPrivateSend(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, body := h.do(t, http.MethodPost, "/intents/conversation", `{"target":"bob","name":"Bob"}`)
	require.Equal(t, http.StatusOK, code)
	var conv intent.Conversation
	require.NoError(t, json.Unmarshal(body, &conv))
	assert.True(t, conv.Virtual)
	assert.Equal(t, "Bob", conv.Counterpart.Name)

	code, body = h.do(t, http.MethodPost, "/intents/private", `{"content":"hi","to":"bob"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Contains(t, string(body), `"roomKey":"virtual_bob"`)

	code, _ = h.do(t, http.MethodGet, "/debug/rooms/virtual_bob/messages", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(t, http.MethodGet, "/debug/rooms/missing/messages", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = h.do(t, http.MethodDelete, "/intents/conversation", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Nil(t, h.state(t).Active)
}

func TestNotificationIntents(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, _ := h.do(t, http.MethodPost, "/intents/notifications/load", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, h.state(t).UnreadCount)

	h.api.err = models.NewUpstreamError("mark read", io.ErrUnexpectedEOF)
	code, _ = h.do(t, http.MethodPost, "/intents/notifications/n1/read", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, 1, h.state(t).UnreadCount, "rolled back")

	h.api.err = nil
	code, _ = h.do(t, http.MethodPost, "/intents/notifications/read-all", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Zero(t, h.state(t).UnreadCount)
}

func TestLogoutResets(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.do(t, http.MethodPost, "/intents/public", `{"content":"hello"}`)

	code, _ := h.do(t, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusNoContent, code)

	st := h.state(t)
	assert.False(t, st.Connected)
	assert.Empty(t, st.UserID)
	assert.Zero(t, st.PublicCount)
	assert.Zero(t, h.ft.ListenerCount(models.EventMessageAck))
}
