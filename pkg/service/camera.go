package service

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/hub"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// Photographer takes pictures and keeps the latest report per direction.
// *perception.Pipeline implements it.
type Photographer interface {
	TakePicture(ctx context.Context, dir protocol.Direction) (perception.Report, error)
	Latest(dir protocol.Direction) (perception.Report, bool)
	All() []perception.Report
}

// NewCameraServer serves the TakePicture service, the detections API and,
// when h is non-nil, the live detections stream.
func NewCameraServer(p Photographer, h *hub.Hub, names Names) *Server {
	s := newServer("camera", log.Component("camera"))

	var mu sync.Mutex
	s.app.Post(protocol.ServicePath(names.TakePicture), func(c *fiber.Ctx) error {
		req, err := protocol.DecodeTakePicture(c.Body())
		if err != nil {
			return reply(c, fiber.StatusBadRequest, protocol.NotReady(err))
		}

		mu.Lock()
		report, err := p.TakePicture(c.UserContext(), req.Direction)
		mu.Unlock()
		if err != nil {
			s.log.Error("take_picture failed", "direction", req.Direction, "err", err)
			return reply(c, fiber.StatusOK, protocol.NotReady(err))
		}

		resp := protocol.Ready()
		resp.Capture = report.Summary()
		return reply(c, fiber.StatusOK, resp)
	})

	api := s.app.Group("/api")
	api.Get("/detections", func(c *fiber.Ctx) error {
		return c.JSON(p.All())
	})
	api.Get("/detections/:direction", func(c *fiber.Ctx) error {
		dir, err := protocol.ParseDirection(c.Params("direction"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		report, ok := p.Latest(dir)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no capture for " + dir.String(),
			})
		}
		return c.JSON(report)
	})

	if h != nil {
		s.app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		s.app.Get(protocol.DetectionsStreamPath, websocket.New(func(conn *websocket.Conn) {
			sub, err := hub.Subscribe(h, conn)
			if err != nil {
				s.log.Warn("detections stream unavailable", "err", err)
				return
			}
			sub.Serve()
		}))
	}

	return s
}
