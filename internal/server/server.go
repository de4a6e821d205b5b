package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ederziomek/real-digital-token/internal/middleware"
	"github.com/ederziomek/real-digital-token/internal/reserve"
	"github.com/ederziomek/real-digital-token/internal/routes"
)

// Server wraps the Fiber application and the ledger it serves.
type Server struct {
	app    *fiber.App
	ledger *reserve.Ledger
	addr   string
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(ctx context.Context, deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               deps.Cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          middleware.ErrorHandler(deps.Logger),
		DisableStartupMessage: !deps.Cfg.IsDevelopment(),
	})

	ledger, err := routes.Setup(ctx, app, deps)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, ledger: ledger, addr: deps.Cfg.Address()}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Ledger returns the reserve ledger behind the routes.
func (s *Server) Ledger() *reserve.Ledger {
	return s.ledger
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
