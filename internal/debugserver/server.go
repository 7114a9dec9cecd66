// Package debugserver exposes a local control surface for the sync core:
// Prometheus metrics, a state snapshot and endpoints that drive intents.
package debugserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chatsync/internal/intent"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/session"
	"chatsync/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Connection is the lifecycle surface of the connection manager.
type Connection interface {
	Connect(ctx context.Context) bool
	Disconnect()
	Connected() bool
	Connecting() bool
	LastConnectedAt() time.Time
}

// Sessions is the identity surface used by the login and logout endpoints.
type Sessions interface {
	Login(ctx context.Context, token string) (session.Session, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (session.Session, error)
}

// Deps are the collaborators the server drives.
type Deps struct {
	Messages      *store.MessageStore
	Notifications *store.NotificationStore
	Intents       *intent.Intents
	Connection    Connection
	Sessions      Sessions
	// GroupingWindow and Location shape the rendered timelines.
	GroupingWindow time.Duration
	Location       *time.Location
}

// Server is the debug HTTP server.
type Server struct {
	deps Deps
	app  *fiber.App
}

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// metricsMiddleware registers the HTTP collectors once per process.
func metricsMiddleware() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("chatsync-debug")
	})
	return prom
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	s := &Server{deps: deps}
	app := fiber.New(fiber.Config{
		AppName:               "chatsync debug",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return RespondWithError(c, fe.Code, err)
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "debug request failed",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	app.Use(recover.New())

	p := metricsMiddleware()
	app.Use(p.Middleware)
	p.RegisterAt(app, "/metrics")

	s.routes(app)
	s.app = app
	return s
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	observability.GlobalLogger.Info("debug server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	dbg := app.Group("/debug")
	dbg.Get("/state", s.getState)
	dbg.Get("/public", s.getPublicTimeline)
	dbg.Get("/rooms/:key/messages", s.getRoomTimeline)
	dbg.Get("/notifications", s.getNotifications)

	sess := app.Group("/session")
	sess.Post("/login", s.postLogin)
	sess.Post("/logout", s.postLogout)

	conn := app.Group("/connection")
	conn.Post("/connect", s.postConnect)
	conn.Post("/disconnect", s.postDisconnect)

	in := app.Group("/intents")
	in.Post("/public", s.postSendPublic)
	in.Post("/public/:tempId/resend", s.postResendPublic)
	in.Post("/private", s.postSendPrivate)
	in.Post("/private/:tempId/resend", s.postResendPrivate)
	in.Post("/conversation", s.postOpenConversation)
	in.Delete("/conversation", s.deleteConversation)
	in.Post("/notifications/load", s.postLoadNotifications)
	in.Post("/notifications/read-all", s.postMarkAllRead)
	in.Post("/notifications/:id/read", s.postMarkRead)
}
