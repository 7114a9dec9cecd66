package models

// Inbound event names (server to client).
const (
	EventInitializeSocket  = "initializeSocket"
	EventNotification      = "notification"
	EventNewMessage        = "newMessage"
	EventMessageError      = "messageError"
	EventMessageAck        = "messageAck"
	EventNewPrivateMessage = "newPrivateMessage"
	EventRoomUpdate        = "roomUpdate"
	EventOpenedPrivateRoom = "openedPrivateRoom"
)

// Outbound event names (client to server).
const (
	EventSendPublicMessage  = "sendPublicMessage"
	EventSendPrivateMessage = "sendPrivateMessage"
	EventOpenPrivateRoom    = "openPrivateRoom"
	EventLeavePrivateRoom   = "leavePrivateRoom"
	EventMarkMessageRead    = "markMessageRead"
)

// InitialState is the catch-up snapshot delivered after every (re)connect.
type InitialState struct {
	Rooms               []Room         `json:"rooms"`
	PublicMessages      []Message      `json:"publicMessages"`
	UnreadNotifications []Notification `json:"unreadNotifications"`
}

// MessageErrorPayload reports a rejected send.
type MessageErrorPayload struct {
	TempID string `json:"tempId"`
	Error  string `json:"error"`
}

// MessageAckPayload confirms a send. Room is only present for private sends.
type MessageAckPayload struct {
	TempID  string  `json:"tempId"`
	Message Message `json:"message"`
	Room    *Room   `json:"room,omitempty"`
}

// PrivateMessagePayload is a private message pushed by another user.
type PrivateMessagePayload struct {
	Room    Room    `json:"room"`
	Message Message `json:"message"`
}

// RoomUpdatePayload replaces the room list.
type RoomUpdatePayload struct {
	Rooms []Room `json:"rooms"`
}

// OpenedRoomPayload carries the history of a room that was opened.
type OpenedRoomPayload struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

// SendPublicPayload is emitted for a public send.
type SendPublicPayload struct {
	TempID  string `json:"tempId"`
	Content string `json:"content"`
}

// SendPrivatePayload is emitted for a private send.
type SendPrivatePayload struct {
	TempID     string `json:"tempId"`
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
}

// RoomRef is emitted to open or leave a private room.
type RoomRef struct {
	RoomID string `json:"roomId"`
}
