package debugserver

import (
	"time"

	"chatsync/internal/intent"
	"chatsync/internal/models"
	"chatsync/internal/timeline"

	"github.com/gofiber/fiber/v2"
)

// StateResponse is the snapshot served by GET /debug/state.
type StateResponse struct {
	Connected       bool                 `json:"connected"`
	Connecting      bool                 `json:"connecting"`
	LastConnectedAt *time.Time           `json:"lastConnectedAt,omitempty"`
	UserID          string               `json:"userId,omitempty"`
	Active          *intent.Conversation `json:"active,omitempty"`
	Rooms           []models.Room        `json:"rooms"`
	PublicCount     int                  `json:"publicCount"`
	UnreadCount     int                  `json:"unreadCount"`
	AllLoaded       bool                 `json:"allLoaded"`
}

type sendRequest struct {
	Content string `json:"content"`
	To      string `json:"to,omitempty"`
}

type openRequest struct {
	Target string `json:"target"`
	Name   string `json:"name,omitempty"`
}

type loginRequest struct {
	Token string `json:"token"`
}

func (s *Server) getState(c *fiber.Ctx) error {
	resp := StateResponse{
		Connected:   s.deps.Connection.Connected(),
		Connecting:  s.deps.Connection.Connecting(),
		Rooms:       s.deps.Messages.Rooms(),
		PublicCount: len(s.deps.Messages.PublicMessages()),
		UnreadCount: s.deps.Notifications.UnreadCount(),
		AllLoaded:   s.deps.Notifications.AllLoaded(),
	}
	if at := s.deps.Connection.LastConnectedAt(); !at.IsZero() {
		resp.LastConnectedAt = &at
	}
	if sess, err := s.deps.Sessions.Current(c.UserContext()); err == nil {
		resp.UserID = sess.UserID
	}
	if conv, ok := s.deps.Intents.ActiveConversation(); ok {
		resp.Active = &conv
	}
	return c.JSON(resp)
}

func (s *Server) getPublicTimeline(c *fiber.Ctx) error {
	return c.JSON(timeline.Build(s.deps.Messages.PublicMessages(), s.deps.GroupingWindow, s.deps.Location))
}

func (s *Server) getRoomTimeline(c *fiber.Ctx) error {
	key := c.Params("key")
	if !s.deps.Messages.HasRoomKey(key) {
		if _, ok := s.deps.Messages.Room(key); !ok {
			return RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Room", key))
		}
	}
	return c.JSON(timeline.Build(s.deps.Messages.RoomMessages(key), s.deps.GroupingWindow, s.deps.Location))
}

func (s *Server) getNotifications(c *fiber.Ctx) error {
	if c.Query("filter") == "unread" {
		return c.JSON(s.deps.Notifications.Unread())
	}
	return c.JSON(s.deps.Notifications.All())
}

func (s *Server) postLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("token is required"))
	}
	sess, err := s.deps.Sessions.Login(c.UserContext(), req.Token)
	if err != nil {
		return RespondWithError(c, statusFor(err), err)
	}
	started := s.deps.Connection.Connect(c.UserContext())
	return c.JSON(fiber.Map{"userId": sess.UserID, "connecting": started})
}

func (s *Server) postLogout(c *fiber.Ctx) error {
	s.deps.Connection.Disconnect()
	if err := s.deps.Sessions.Logout(c.UserContext()); err != nil {
		return RespondWithError(c, statusFor(err), err)
	}
	s.deps.Intents.Reset()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postConnect(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"started": s.deps.Connection.Connect(c.UserContext())})
}

func (s *Server) postDisconnect(c *fiber.Ctx) error {
	s.deps.Connection.Disconnect()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postSendPublic(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("invalid body"))
	}
	p, ok := s.deps.Intents.SendPublic(c.UserContext(), req.Content)
	if !ok {
		return RespondWithError(c, fiber.StatusUnprocessableEntity, models.NewValidationError("message rejected"))
	}
	return c.Status(fiber.StatusAccepted).JSON(p)
}

func (s *Server) postResendPublic(c *fiber.Ctx) error {
	tempID := c.Params("tempId")
	if !s.deps.Intents.ResendPublic(c.UserContext(), tempID) {
		return RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Pending message", tempID))
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) postSendPrivate(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("invalid body"))
	}
	sent, ok := s.deps.Intents.SendPrivate(c.UserContext(), req.Content, req.To)
	if !ok {
		return RespondWithError(c, fiber.StatusUnprocessableEntity, models.NewValidationError("message rejected"))
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"tempId":     sent.TempID,
		"content":    sent.Content,
		"receiverId": sent.ReceiverID,
		"roomKey":    sent.RoomKey,
	})
}

func (s *Server) postResendPrivate(c *fiber.Ctx) error {
	tempID := c.Params("tempId")
	if !s.deps.Intents.ResendPrivate(c.UserContext(), tempID) {
		return RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Pending message", tempID))
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) postOpenConversation(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("invalid body"))
	}
	var known *models.UserRef
	if req.Name != "" {
		known = &models.UserRef{ID: req.Target, Name: req.Name}
	}
	conv, ok := s.deps.Intents.OpenConversation(c.UserContext(), req.Target, known)
	if !ok {
		return RespondWithError(c, fiber.StatusUnprocessableEntity, models.NewValidationError("conversation rejected"))
	}
	return c.JSON(conv)
}

func (s *Server) deleteConversation(c *fiber.Ctx) error {
	s.deps.Intents.CloseConversation(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postLoadNotifications(c *fiber.Ctx) error {
	if err := s.deps.Intents.LoadNotifications(c.UserContext()); err != nil {
		return RespondWithError(c, statusFor(err), err)
	}
	return c.JSON(s.deps.Notifications.All())
}

func (s *Server) postMarkRead(c *fiber.Ctx) error {
	if err := s.deps.Intents.MarkNotificationRead(c.UserContext(), c.Params("id")); err != nil {
		return RespondWithError(c, statusFor(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postMarkAllRead(c *fiber.Ctx) error {
	if err := s.deps.Intents.MarkAllNotificationsRead(c.UserContext()); err != nil {
		return RespondWithError(c, statusFor(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
