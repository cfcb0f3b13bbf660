package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vizion-pay/vizion_core/internal/config"
	"github.com/vizion-pay/vizion_core/internal/routes"
)

// Server wraps the Fiber application, shared dependencies and the background
// workers that run alongside the HTTP listeners.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	db      *pgxpool.Pool
	cache   *redis.Client
	runtime *routes.Runtime
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	runtime, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, db: db, cache: cache, runtime: runtime}, nil
}

// Listen starts the settlement runner and the HTTP server.
func (s *Server) Listen() error {
	s.runtime.Settlement.Start()
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then the settlement runner, then waits
// for in-flight webhook deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.runtime.Settlement.Stop()
	s.runtime.Dispatcher.Wait()
	return err
}
