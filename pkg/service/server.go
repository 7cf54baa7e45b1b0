// Package service exposes the head and camera nodes over HTTP and provides
// the clients the master uses to call them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-pepper/internal/config"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// shutdownTimeout bounds graceful shutdown of a node server.
const shutdownTimeout = 5 * time.Second

// Names are the names the two services are mounted under.
type Names struct {
	LookAt      string
	TakePicture string
}

// DefaultNames returns look_at and take_picture.
func DefaultNames() Names {
	return Names{
		LookAt:      config.DefaultLookAtService,
		TakePicture: config.DefaultTakePictureService,
	}
}

// NamesFrom reads the service names from cfg.
func NamesFrom(cfg config.Config) Names {
	return Names{LookAt: cfg.LookAtService, TakePicture: cfg.TakePictureService}
}

// Health is the body served on the health path.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Server is a fiber app serving one node.
type Server struct {
	app  *fiber.App
	name string
	log  *slog.Logger
}

func newServer(name string, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "pepper " + name,
		DisableStartupMessage: true,
	})

	app.Get(protocol.HealthPath, func(c *fiber.Ctx) error {
		return c.JSON(Health{Status: "ok", Service: name})
	})

	return &Server{app: app, name: name, log: logger}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe listens on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.log.Info("serving", "node", s.name, "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown %s: %w", s.name, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// reply writes resp with status code.
func reply(c *fiber.Ctx, code int, resp protocol.Response) error {
	return c.Status(code).JSON(resp)
}
