package store

import (
	"context"
	"errors"
	"testing"

	"chatsync/internal/models"
	"chatsync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withID(id string) func(*models.Notification) {
	return func(n *models.Notification) { n.ID = id }
}

func read(n *models.Notification) { n.IsRead = true }

func ids(ns []models.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}

func TestSetAllDerivesUnread(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b"), read),
		testutil.NewNotification(withID("c")),
	})
	assert.True(t, s.AllLoaded())
	assert.Equal(t, []string{"a", "c"}, ids(s.Unread()))
	assert.Equal(t, 2, s.UnreadCount())
}

func TestSetUnreadReconcilesAll(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})
	s.SetUnread([]models.Notification{
		testutil.NewNotification(withID("b")),
		testutil.NewNotification(withID("z")),
	})

	all := s.All()
	assert.Equal(t, []string{"z", "a", "b"}, ids(all))
	for _, n := range all {
		assert.Equal(t, n.ID == "a", n.IsRead, n.ID)
	}
}

func TestSetUnreadBeforeLoad(t *testing.T) {
	s := NewNotificationStore()
	s.SetUnread([]models.Notification{testutil.NewNotification(withID("a"))})
	assert.False(t, s.AllLoaded())
	assert.Empty(t, s.All())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestPush(t *testing.T) {
	s := NewNotificationStore()
	require.True(t, s.Push(testutil.NewNotification(withID("a"))))
	assert.Empty(t, s.All(), "full list untouched until loaded")

	s.SetAll(s.Unread())
	require.True(t, s.Push(testutil.NewNotification(withID("b"))))
	assert.Equal(t, []string{"b", "a"}, ids(s.All()))
	assert.Equal(t, []string{"b", "a"}, ids(s.Unread()))

	assert.False(t, s.Push(testutil.NewNotification(withID("b"))), "redelivery ignored")
	assert.Equal(t, 2, s.UnreadCount())
}

func TestMarkReadConfirmed(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})

	var called string
	err := s.MarkRead(context.Background(), "a", func(ctx context.Context) error {
		// Optimistic state is visible before the remote call returns.
		assert.Equal(t, []string{"b"}, ids(s.Unread()))
		called = "a"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", called)
	assert.Equal(t, []string{"b"}, ids(s.Unread()))
	assert.True(t, s.All()[0].IsRead)
}

func TestMarkReadRollback(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})
	beforeAll, beforeUnread := s.All(), s.Unread()

	boom := errors.New("boom")
	err := s.MarkRead(context.Background(), "a", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, beforeAll, s.All())
	assert.Equal(t, beforeUnread, s.Unread())
}

func TestMarkAllReadRollbackKeepsArrivals(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})

	err := s.MarkAllRead(context.Background(), func(context.Context) error {
		assert.Zero(t, s.UnreadCount())
		s.Push(testutil.NewNotification(withID("late")))
		return errors.New("offline")
	})
	require.Error(t, err)

	assert.Equal(t, []string{"late", "a", "b"}, ids(s.Unread()))
	assert.Equal(t, []string{"late", "a", "b"}, ids(s.All()))
	for _, n := range s.All() {
		assert.False(t, n.IsRead)
	}
}

func TestMarkReadRollbackAfterReload(t *testing.T) {
	s := NewNotificationStore()
	s.SetUnread([]models.Notification{testutil.NewNotification(withID("n1"))})

	err := s.MarkRead(context.Background(), "n1", func(context.Context) error {
		// A reconnect reloads the full list while the call is in flight.
		s.SetAll([]models.Notification{
			testutil.NewNotification(withID("n1")),
			testutil.NewNotification(withID("n2"), read),
		})
		return errors.New("offline")
	})
	require.Error(t, err)

	require.True(t, s.AllLoaded())
	assert.Equal(t, []string{"n1", "n2"}, ids(s.All()))
	assert.Equal(t, []string{"n1"}, ids(s.Unread()))
	assertProjectionsAgree(t, s)
}

func TestMarkAllReadRollbackAfterReload(t *testing.T) {
	s := NewNotificationStore()
	s.SetUnread([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})

	err := s.MarkAllRead(context.Background(), func(context.Context) error {
		s.SetAll([]models.Notification{
			testutil.NewNotification(withID("b"), read),
			testutil.NewNotification(withID("c")),
		})
		return errors.New("offline")
	})
	require.Error(t, err)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(s.Unread()))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(s.All()))
	assertProjectionsAgree(t, s)
}

// assertProjectionsAgree checks that once the full list is loaded the unread
// projection is exactly its unread members.
func assertProjectionsAgree(t *testing.T, s *NotificationStore) {
	t.Helper()
	if !s.AllLoaded() {
		return
	}
	var want []string
	for _, n := range s.All() {
		if !n.IsRead {
			want = append(want, n.ID)
		}
	}
	assert.ElementsMatch(t, want, ids(s.Unread()))
	for _, n := range s.Unread() {
		assert.False(t, n.IsRead, n.ID)
	}
}

func TestMarkAllReadConfirmed(t *testing.T) {
	s := NewNotificationStore()
	s.SetUnread([]models.Notification{testutil.NewNotification(withID("a"))})
	require.NoError(t, s.MarkAllRead(context.Background(), func(context.Context) error { return nil }))
	assert.Zero(t, s.UnreadCount())
}

func TestUpdateCombinators(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{
		testutil.NewNotification(withID("a")),
		testutil.NewNotification(withID("b")),
	})
	s.UpdateAll(func(ns []models.Notification) []models.Notification {
		ns[1].IsRead = true
		return ns
	})
	assert.Equal(t, []string{"a"}, ids(s.Unread()))

	s.UpdateUnread(func(ns []models.Notification) []models.Notification { return nil })
	for _, n := range s.All() {
		assert.True(t, n.IsRead, n.ID)
	}
}

func TestNotificationReset(t *testing.T) {
	s := NewNotificationStore()
	s.SetAll([]models.Notification{testutil.NewNotification()})
	s.Reset()
	assert.False(t, s.AllLoaded())
	assert.Zero(t, s.UnreadCount())
}
