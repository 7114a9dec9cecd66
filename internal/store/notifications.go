package store

import (
	"context"
	"sync"

	"chatsync/internal/models"
)

// ConfirmFunc performs the remote call that confirms an optimistic change.
type ConfirmFunc func(ctx context.Context) error

// notificationSnapshot records what an optimistic read change flipped so a
// rollback can undo exactly that on top of whatever state is current.
type notificationSnapshot struct {
	order   []string              // unread ids before the change, in order
	flipped []models.Notification // entries that went from unread to read
}

// NotificationStore keeps two projections of the same notifications: the
// full list (loaded on demand) and the unread list (seeded by the initial
// snapshot and pushes). An id that appears in both has the same read state.
type NotificationStore struct {
	mu        sync.RWMutex
	all       []models.Notification
	allLoaded bool
	unread    []models.Notification
}

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// SetAll replaces the full list and re-derives the unread projection from it.
func (s *NotificationStore) SetAll(ns []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAllLocked(ns)
}

func (s *NotificationStore) setAllLocked(ns []models.Notification) {
	s.all = cloneNotifications(ns)
	s.allLoaded = true
	s.unread = s.unread[:0:0]
	for _, n := range s.all {
		if !n.IsRead {
			s.unread = append(s.unread, n.Clone())
		}
	}
}

// SetUnread replaces the unread projection. When the full list is loaded,
// read flags there follow membership in the new unread set and unread
// entries missing from it are prepended.
func (s *NotificationStore) SetUnread(ns []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setUnreadLocked(ns)
}

func (s *NotificationStore) setUnreadLocked(ns []models.Notification) {
	s.unread = s.unread[:0:0]
	members := make(map[string]struct{}, len(ns))
	for _, n := range ns {
		n = n.Clone()
		n.IsRead = false
		s.unread = append(s.unread, n)
		members[n.ID] = struct{}{}
	}
	if !s.allLoaded {
		return
	}
	seen := make(map[string]struct{}, len(s.all))
	for i := range s.all {
		_, unread := members[s.all[i].ID]
		s.all[i].IsRead = !unread
		seen[s.all[i].ID] = struct{}{}
	}
	var missing []models.Notification
	for _, n := range s.unread {
		if _, ok := seen[n.ID]; !ok {
			missing = append(missing, n.Clone())
		}
	}
	if len(missing) > 0 {
		s.all = append(missing, s.all...)
	}
}

// UpdateAll applies fn to a copy of the full list and stores the result
// through SetAll semantics, keeping both projections consistent.
func (s *NotificationStore) UpdateAll(fn func([]models.Notification) []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAllLocked(fn(cloneNotifications(s.all)))
}

// UpdateUnread applies fn to a copy of the unread list and stores the result
// through SetUnread semantics.
func (s *NotificationStore) UpdateUnread(fn func([]models.Notification) []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setUnreadLocked(fn(cloneNotifications(s.unread)))
}

// Push records a newly delivered notification at the top of both
// projections. The full list is only touched once it has been loaded.
// Re-delivered ids are ignored.
func (s *NotificationStore) Push(n models.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOfNotification(s.unread, n.ID) >= 0 || indexOfNotification(s.all, n.ID) >= 0 {
		return false
	}
	if !n.IsRead {
		s.unread = append([]models.Notification{n.Clone()}, s.unread...)
	}
	if s.allLoaded {
		s.all = append([]models.Notification{n.Clone()}, s.all...)
	}
	return true
}

// MarkRead optimistically marks one notification read in both projections,
// then confirms it remotely. A failed confirmation restores the previous
// state and the error is returned.
func (s *NotificationStore) MarkRead(ctx context.Context, id string, confirm ConfirmFunc) error {
	return RunOptimistic(ctx, "notification_mark_read",
		func() notificationSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			snap := s.snapshotLocked(func(n models.Notification) bool { return n.ID == id })
			for i := range s.all {
				if s.all[i].ID == id {
					s.all[i].IsRead = true
				}
			}
			if idx := indexOfNotification(s.unread, id); idx >= 0 {
				s.unread = append(s.unread[:idx:idx], s.unread[idx+1:]...)
			}
			return snap
		},
		s.restore,
		confirm,
	)
}

// MarkAllRead optimistically marks every notification read and empties the
// unread projection, then confirms remotely with rollback on failure.
func (s *NotificationStore) MarkAllRead(ctx context.Context, confirm ConfirmFunc) error {
	return RunOptimistic(ctx, "notification_mark_all_read",
		func() notificationSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			snap := s.snapshotLocked(func(models.Notification) bool { return true })
			for i := range s.all {
				s.all[i].IsRead = true
			}
			s.unread = nil
			return snap
		},
		s.restore,
		confirm,
	)
}

// All returns a copy of the full list.
func (s *NotificationStore) All() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotifications(s.all)
}

// Unread returns a copy of the unread list.
func (s *NotificationStore) Unread() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotifications(s.unread)
}

// UnreadCount is the badge count.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unread)
}

// AllLoaded reports whether the full list has been fetched.
func (s *NotificationStore) AllLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLoaded
}

// Reset drops both projections.
func (s *NotificationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = nil
	s.unread = nil
	s.allLoaded = false
}

func (s *NotificationStore) snapshotLocked(match func(models.Notification) bool) notificationSnapshot {
	snap := notificationSnapshot{order: make([]string, 0, len(s.unread))}
	seen := make(map[string]struct{})
	for _, n := range s.unread {
		snap.order = append(snap.order, n.ID)
		if match(n) {
			snap.flipped = append(snap.flipped, n.Clone())
			seen[n.ID] = struct{}{}
		}
	}
	for _, n := range s.all {
		if _, ok := seen[n.ID]; ok || n.IsRead || !match(n) {
			continue
		}
		snap.flipped = append(snap.flipped, n.Clone())
		seen[n.ID] = struct{}{}
	}
	return snap
}

// restore marks the flipped notifications unread again on the current state.
// Notifications that arrived while the remote call was in flight stay on top,
// and a full list loaded in the meantime is kept and reconciled.
func (s *NotificationStore) restore(snap notificationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.flipped) == 0 {
		return
	}

	flipped := make(map[string]models.Notification, len(snap.flipped))
	for _, n := range snap.flipped {
		flipped[n.ID] = n
	}
	known := make(map[string]struct{}, len(snap.order))
	for _, id := range snap.order {
		known[id] = struct{}{}
	}
	current := make(map[string]models.Notification, len(s.unread))
	for _, n := range s.unread {
		current[n.ID] = n
	}

	out := make([]models.Notification, 0, len(s.unread)+len(snap.flipped))
	placed := make(map[string]struct{}, cap(out))
	add := func(n models.Notification) {
		if _, ok := placed[n.ID]; ok {
			return
		}
		placed[n.ID] = struct{}{}
		out = append(out, n)
	}
	for _, n := range s.unread {
		_, wasKnown := known[n.ID]
		_, wasFlipped := flipped[n.ID]
		if !wasKnown && !wasFlipped {
			add(n)
		}
	}
	for _, id := range snap.order {
		if n, ok := current[id]; ok {
			add(n)
		} else if n, ok := flipped[id]; ok {
			add(n)
		}
	}
	for _, n := range snap.flipped {
		add(n)
	}
	s.setUnreadLocked(out)
}

func cloneNotifications(ns []models.Notification) []models.Notification {
	if ns == nil {
		return nil
	}
	out := make([]models.Notification, len(ns))
	for i, n := range ns {
		out[i] = n.Clone()
	}
	return out
}

func indexOfNotification(ns []models.Notification, id string) int {
	for i, n := range ns {
		if n.ID == id {
			return i
		}
	}
	return -1
}
