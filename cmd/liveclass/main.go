package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hadikhanhk786/live-class/internal/api"
	"github.com/hadikhanhk786/live-class/internal/classroom"
	"github.com/hadikhanhk786/live-class/internal/config"
	"github.com/hadikhanhk786/live-class/internal/history"
	"github.com/hadikhanhk786/live-class/internal/websocket"
	"github.com/hadikhanhk786/live-class/pkg/interfaces"
)

// storage is the full contract a history backend must satisfy to back
// the server: durable event log, classroom directory and health probe.
type storage interface {
	interfaces.HistoryStore
	interfaces.ClassDirectory
	interfaces.HealthChecker
}

// Application wires the storage backend, coordinator and HTTP surfaces
// together and owns their lifecycle.
type Application struct {
	config      *config.Config
	store       storage
	coordinator *classroom.Coordinator
	httpServer  *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sessions := classroom.NewStore(store, store)
	registry := classroom.NewRegistry()
	coordinator := classroom.NewCoordinator(sessions, registry, store, cfg.Chat.RateLimit, cfg.Chat.RateWindow)

	wsHandler := websocket.NewHandler(coordinator, websocket.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	})
	apiServer := api.NewServer(coordinator, store, store, store)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       store,
		coordinator: coordinator,
		httpServer:  httpServer,
	}, nil
}

func newStorage(cfg *config.Config) (storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return history.NewSQLiteStore(cfg.Storage.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		return history.NewRedisStore(&history.RedisConfig{Client: client})
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// Start begins serving. It returns an error if the listener fails to
// come up within the readiness window.
func (a *Application) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
		log.Printf("Server listening on %s", a.httpServer.Addr)
		return nil
	}
}

// Stop shuts down the HTTP server, then the storage backend so queued
// writes are drained.
func (a *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down server")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	log.Printf("Shutdown complete")
	return nil
}

func run() error {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.LoadConfigWithPrecedence(os.Getenv("LIVECLASS_CONFIG_FILE"))
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return err
	}

	if err := app.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Stop(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}
