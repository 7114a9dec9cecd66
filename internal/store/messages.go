package store

import (
	"sort"
	"sync"
	"time"

	"chatsync/internal/models"
)

// PendingLocation says where a pending message with a given temp id lives.
type PendingLocation struct {
	Public  bool
	RoomKey string
}

// AckResult describes what ApplyPrivateAck did.
type AckResult struct {
	RoomID       string
	MigratedFrom string
	Reconciled   bool
}

// MessageStore is the canonical state for public messages, private rooms and
// per-room private message lists. Every method is one critical section.
type MessageStore struct {
	mu sync.RWMutex

	public        []models.Message
	publicPending map[string]int // tempID -> index into public

	rooms          []models.Room
	private        map[string][]models.Message // room key (real id or virtual key) -> messages
	privatePending map[string]map[string]int   // room key -> tempID -> index
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		publicPending:  make(map[string]int),
		private:        make(map[string][]models.Message),
		privatePending: make(map[string]map[string]int),
	}
}

// Reset drops all state, e.g. when the session ends.
func (s *MessageStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = nil
	s.publicPending = make(map[string]int)
	s.rooms = nil
	s.private = make(map[string][]models.Message)
	s.privatePending = make(map[string]map[string]int)
}

// --- public stream ---

// AppendPublicMessage appends a confirmed message received from another party.
func (s *MessageStore) AppendPublicMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = append(s.public, msg)
}

// SetPublicMessages replaces the public list. The temp id lookup is cleared
// with it because its indexes point into the old list.
func (s *MessageStore) SetPublicMessages(msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.public = append([]models.Message(nil), msgs...)
	s.publicPending = make(map[string]int)
}

// AddPendingPublicMessage appends an optimistic message. A temp id that is
// already tracked is not inserted twice.
func (s *MessageStore) AddPendingPublicMessage(tempID, content string, sender models.UserRef, createdAt time.Time) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.publicPending[tempID]; ok {
		return s.public[idx]
	}
	msg := models.Message{
		TempID:    tempID,
		Content:   content,
		Sender:    sender,
		CreatedAt: createdAt,
		IsSending: true,
	}
	s.public = append(s.public, msg)
	s.publicPending[tempID] = len(s.public) - 1
	return msg
}

// ReconcilePublic replaces the pending slot for tempID with the confirmed
// message and releases the temp id. Unknown temp ids are dropped.
func (s *MessageStore) ReconcilePublic(tempID string, confirmed models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.publicPending[tempID]
	if !ok {
		return false
	}
	s.public[idx] = s.public[idx].Confirm(confirmed)
	delete(s.publicPending, tempID)
	return true
}

// MarkPublicError flags the pending slot as failed. The lookup entry stays so
// a resend reuses the slot.
func (s *MessageStore) MarkPublicError(tempID, errText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.publicPending[tempID]
	if !ok {
		return false
	}
	s.public[idx].Error = errText
	s.public[idx].IsSending = false
	return true
}

// ResendPublic puts a pending slot back into the sending state and returns
// it so the caller can re-emit the send.
func (s *MessageStore) ResendPublic(tempID string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.publicPending[tempID]
	if !ok {
		return models.Message{}, false
	}
	s.public[idx].Error = ""
	s.public[idx].IsSending = true
	return s.public[idx], true
}

// PendingPublic returns the pending public message for tempID.
func (s *MessageStore) PendingPublic(tempID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.publicPending[tempID]
	if !ok {
		return models.Message{}, false
	}
	return s.public[idx], true
}

// PublicMessages returns a copy of the public stream in append order.
func (s *MessageStore) PublicMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.public...)
}

// --- private messages ---

// LocatePending finds which list holds the pending message for tempID.
func (s *MessageStore) LocatePending(tempID string) (PendingLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locatePendingLocked(tempID)
}

func (s *MessageStore) locatePendingLocked(tempID string) (PendingLocation, bool) {
	if _, ok := s.publicPending[tempID]; ok {
		return PendingLocation{Public: true}, true
	}
	for key, pending := range s.privatePending {
		if _, ok := pending[tempID]; ok {
			return PendingLocation{RoomKey: key}, true
		}
	}
	return PendingLocation{}, false
}

// AddPendingPrivate files an optimistic message under roomKey, which is a
// real room id or a virtual key. A room backing roomKey has its recency
// metadata bumped.
func (s *MessageStore) AddPendingPrivate(roomKey string, msg models.Message) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingFor(roomKey)
	if idx, ok := pending[msg.TempID]; ok {
		return s.private[roomKey][idx]
	}
	msg.ID = ""
	msg.IsSending = true
	msg.Error = ""
	s.private[roomKey] = append(s.private[roomKey], msg)
	pending[msg.TempID] = len(s.private[roomKey]) - 1
	if s.touchRoomLocked(roomKey, msg) {
		s.sortRoomsLocked()
	}
	return msg
}

// ReconcilePrivate replaces the pending slot in roomKey with the confirmed
// message. If the confirmed id is already present (an echo arrived first) the
// pending slot is removed instead so the id appears once.
func (s *MessageStore) ReconcilePrivate(roomKey, tempID string, confirmed models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcilePrivateLocked(roomKey, tempID, confirmed)
}

func (s *MessageStore) reconcilePrivateLocked(roomKey, tempID string, confirmed models.Message) bool {
	pending, ok := s.privatePending[roomKey]
	if !ok {
		return false
	}
	idx, ok := pending[tempID]
	if !ok {
		return false
	}
	list := s.private[roomKey]
	if confirmed.ID != "" && indexOfID(list, confirmed.ID) >= 0 {
		s.private[roomKey] = append(list[:idx:idx], list[idx+1:]...)
		s.reindexPendingLocked(roomKey)
		return true
	}
	list[idx] = list[idx].Confirm(confirmed)
	delete(pending, tempID)
	return true
}

// MarkPrivateError flags a pending private message as failed.
func (s *MessageStore) MarkPrivateError(roomKey, tempID, errText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.privatePending[roomKey][tempID]
	if !ok {
		return false
	}
	s.private[roomKey][idx].Error = errText
	s.private[roomKey][idx].IsSending = false
	return true
}

// ResendPrivate puts a failed private message back into the sending state.
func (s *MessageStore) ResendPrivate(roomKey, tempID string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.privatePending[roomKey][tempID]
	if !ok {
		return models.Message{}, false
	}
	s.private[roomKey][idx].Error = ""
	s.private[roomKey][idx].IsSending = true
	return s.private[roomKey][idx], true
}

// AppendPrivateMessage appends a confirmed message to roomKey unless a
// message with the same id is already there. Reports whether it was added.
func (s *MessageStore) AppendPrivateMessage(roomKey string, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendPrivateLocked(roomKey, msg)
}

func (s *MessageStore) appendPrivateLocked(roomKey string, msg models.Message) bool {
	if msg.ID != "" && indexOfID(s.private[roomKey], msg.ID) >= 0 {
		return false
	}
	s.private[roomKey] = append(s.private[roomKey], msg)
	return true
}

// SetRoomMessages replaces the message list of roomKey and releases its temp
// id lookups.
func (s *MessageStore) SetRoomMessages(roomKey string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private[roomKey] = append([]models.Message(nil), msgs...)
	delete(s.privatePending, roomKey)
}

// RoomMessages returns the messages under roomKey ordered by CreatedAt.
// Insertion order is not chronological (history can arrive late), so the
// read path sorts.
func (s *MessageStore) RoomMessages(roomKey string) []models.Message {
	s.mu.RLock()
	out := append([]models.Message(nil), s.private[roomKey]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PendingPrivate returns the pending message for tempID under roomKey.
func (s *MessageStore) PendingPrivate(roomKey, tempID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.privatePending[roomKey][tempID]
	if !ok {
		return models.Message{}, false
	}
	return s.private[roomKey][idx], true
}

// HasRoomKey reports whether any messages are filed under roomKey.
func (s *MessageStore) HasRoomKey(roomKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.private[roomKey]
	return ok
}

// MigrateVirtualMessages moves every message filed under virtualKey to
// realRoomID, preserving order, and retires the virtual key. It returns how
// many messages moved.
func (s *MessageStore) MigrateVirtualMessages(virtualKey, realRoomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrateLocked(virtualKey, realRoomID)
}

func (s *MessageStore) migrateLocked(virtualKey, realRoomID string) int {
	if virtualKey == realRoomID {
		return 0
	}
	moving, ok := s.private[virtualKey]
	if !ok {
		return 0
	}
	moved := 0
	for _, m := range moving {
		if m.ID != "" && indexOfID(s.private[realRoomID], m.ID) >= 0 {
			continue
		}
		s.private[realRoomID] = append(s.private[realRoomID], m)
		moved++
	}
	delete(s.private, virtualKey)
	delete(s.privatePending, virtualKey)
	s.reindexPendingLocked(realRoomID)
	return moved
}

// --- rooms ---

// UpsertRoom inserts room or merges its metadata into the existing entry.
func (s *MessageStore) UpsertRoom(room models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertRoomLocked(room)
}

func (s *MessageStore) upsertRoomLocked(room models.Room) {
	for i := range s.rooms {
		if s.rooms[i].ID == room.ID {
			mergeRoom(&s.rooms[i], room)
			return
		}
	}
	s.rooms = append(s.rooms, room.Clone())
}

// SetRooms replaces the room list and re-sorts it.
func (s *MessageStore) SetRooms(rooms []models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		s.rooms = append(s.rooms, r.Clone())
	}
	s.sortRoomsLocked()
}

// SortRoomsByRecency orders rooms by LastMessageAt descending; rooms without
// messages sort last. The sort is stable.
func (s *MessageStore) SortRoomsByRecency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortRoomsLocked()
}

func (s *MessageStore) sortRoomsLocked() {
	sort.SliceStable(s.rooms, func(i, j int) bool {
		a, b := s.rooms[i].LastMessageAt, s.rooms[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// MarkRoomRead clears the unread counter of one room and returns the
// previous value.
func (s *MessageStore) MarkRoomRead(roomID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			prev := s.rooms[i].UnreadCount
			s.rooms[i].UnreadCount = 0
			return prev, true
		}
	}
	return 0, false
}

// SetRoomUnread restores a room's unread counter.
func (s *MessageStore) SetRoomUnread(roomID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rooms {
		if s.rooms[i].ID == roomID {
			s.rooms[i].UnreadCount = count
			return
		}
	}
}

// FindRoomByParticipant returns the room that includes userID.
func (s *MessageStore) FindRoomByParticipant(userID string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.HasParticipant(userID) {
			return r.Clone(), true
		}
	}
	return models.Room{}, false
}

// Room returns the room with id.
func (s *MessageStore) Room(id string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return models.Room{}, false
}

// Rooms returns a copy of the room list in its current order.
func (s *MessageStore) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	return out
}

// --- composite event steps ---

// ApplyPrivateAck handles a private send acknowledgment in one step: upsert
// the room, migrate a virtual conversation to it, reconcile the pending slot
// (or append the message if the slot is gone) and re-sort rooms.
func (s *MessageStore) ApplyPrivateAck(tempID string, room models.Room, msg models.Message) AckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := AckResult{RoomID: room.ID}
	s.upsertRoomLocked(room)

	if loc, ok := s.locatePendingLocked(tempID); ok && !loc.Public && loc.RoomKey != room.ID {
		if models.IsVirtualRoomKey(loc.RoomKey) {
			s.migrateLocked(loc.RoomKey, room.ID)
			res.MigratedFrom = loc.RoomKey
		}
	}
	// Any other conversation still parked under the counterpart's virtual key
	// belongs to this room now too.
	for _, p := range room.Participants {
		key := models.VirtualRoomKey(p.ID)
		if _, ok := s.private[key]; ok {
			s.migrateLocked(key, room.ID)
			if res.MigratedFrom == "" {
				res.MigratedFrom = key
			}
		}
	}

	res.Reconciled = s.reconcilePrivateLocked(room.ID, tempID, msg)
	if !res.Reconciled {
		s.appendPrivateLocked(room.ID, msg)
	}
	s.touchRoomLocked(room.ID, msg)
	s.sortRoomsLocked()
	return res
}

// ReceivePrivate files a pushed private message: upsert the room, optionally
// promote a virtual conversation into it, append the message and re-sort.
func (s *MessageStore) ReceivePrivate(room models.Room, msg models.Message, migrateFrom string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertRoomLocked(room)
	if migrateFrom != "" {
		s.migrateLocked(migrateFrom, room.ID)
	}
	added := s.appendPrivateLocked(room.ID, msg)
	s.sortRoomsLocked()
	return added
}

// --- helpers ---

func (s *MessageStore) pendingFor(roomKey string) map[string]int {
	pending, ok := s.privatePending[roomKey]
	if !ok {
		pending = make(map[string]int)
		s.privatePending[roomKey] = pending
	}
	return pending
}

// reindexPendingLocked rebuilds the temp id lookup of roomKey from the
// messages that are still pending.
func (s *MessageStore) reindexPendingLocked(roomKey string) {
	pending := make(map[string]int)
	for i, m := range s.private[roomKey] {
		if m.IsPending() {
			pending[m.TempID] = i
		}
	}
	if len(pending) == 0 {
		delete(s.privatePending, roomKey)
		return
	}
	s.privatePending[roomKey] = pending
}

// touchRoomLocked bumps the recency metadata of the room behind roomKey when
// msg is newer. Reports whether anything changed.
func (s *MessageStore) touchRoomLocked(roomKey string, msg models.Message) bool {
	for i := range s.rooms {
		if s.rooms[i].ID != roomKey {
			continue
		}
		r := &s.rooms[i]
		if r.LastMessageAt != nil && msg.CreatedAt.Before(*r.LastMessageAt) {
			return false
		}
		at := msg.CreatedAt
		sender := msg.Sender
		r.LastMessage = msg.Content
		r.LastSender = &sender
		r.LastMessageAt = &at
		return true
	}
	return false
}

func mergeRoom(dst *models.Room, src models.Room) {
	src = src.Clone()
	if len(src.Participants) > 0 {
		dst.Participants = src.Participants
	}
	if src.LastMessage != "" {
		dst.LastMessage = src.LastMessage
	}
	if src.LastSender != nil {
		dst.LastSender = src.LastSender
	}
	if src.LastMessageAt != nil {
		dst.LastMessageAt = src.LastMessageAt
	}
	dst.UnreadCount = src.UnreadCount
}

func indexOfID(list []models.Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}
