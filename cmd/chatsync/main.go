// Command chatsync runs the chat and notification sync core as a daemon with
// a local debug server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/api"
	"chatsync/internal/cache"
	"chatsync/internal/config"
	"chatsync/internal/connection"
	"chatsync/internal/debugserver"
	"chatsync/internal/intent"
	"chatsync/internal/observability"
	"chatsync/internal/router"
	"chatsync/internal/session"
	"chatsync/internal/store"
	"chatsync/internal/transport"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.SetLevel(cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "chatsync",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1.0,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Identity store
	var rdb *redis.Client
	var sessionStore session.Store = session.NewMemoryStore()
	if cfg.SessionStore == "redis" {
		rdb, err = cache.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		sessionStore = session.NewRedisStore(rdb, cfg.SessionKey)
	}
	sessions := session.NewProvider(sessionStore)
	if cfg.SessionToken != "" {
		if _, err := sessions.Login(context.Background(), cfg.SessionToken); err != nil {
			log.Printf("Ignoring SESSION_TOKEN: %v", err)
		}
	}

	// Sync core
	ws := transport.NewWSTransport(transport.Options{
		URL:                  cfg.SocketURL,
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	})
	messages := store.NewMessageStore()
	notifications := store.NewNotificationStore()
	rest := api.NewNotificationClient(cfg.APIURL, sessions.Token)

	intents := intent.New(ws, messages, notifications, sessions, rest)
	r := router.New(ws, messages, notifications, sessions)
	r.SetFocus(intents)
	mgr := connection.NewManager(ws, sessions, r)
	mgr.OnReady(func() {
		intents.ResumeConversation(context.Background())
		if err := intents.LoadNotifications(context.Background()); err != nil {
			log.Printf("Initial notification load failed: %v", err)
		}
	})
	mgr.Connect(context.Background())

	var dbg *debugserver.Server
	if cfg.DebugAddr != "" {
		dbg = debugserver.New(debugserver.Deps{
			Messages:       messages,
			Notifications:  notifications,
			Intents:        intents,
			Connection:     mgr,
			Sessions:       sessions,
			GroupingWindow: cfg.GroupingWindow,
			Location:       loc,
		})
		go func() {
			if err := dbg.Listen(cfg.DebugAddr); err != nil {
				log.Printf("Debug server stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down chatsync...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.Disconnect()
	if dbg != nil {
		if err := dbg.Shutdown(ctx); err != nil {
			log.Printf("Debug server shutdown error: %v", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("Error closing redis: %v", err)
		}
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
