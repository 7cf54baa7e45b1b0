package service

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/robot"
)

// Pointer points the head. *robot.AngleController implements it.
type Pointer interface {
	PointHead(ctx context.Context, dir protocol.Direction) error
}

// timeoutMessage is the error text of a look that did not converge.
const timeoutMessage = "convergence timeout"

// NewHeadServer serves the LookAt service backed by ctrl. Requests are
// handled one at a time since the head has a single owner.
func NewHeadServer(ctrl Pointer, names Names) *Server {
	s := newServer("head", log.Component("head"))

	var mu sync.Mutex
	s.app.Post(protocol.ServicePath(names.LookAt), func(c *fiber.Ctx) error {
		req, err := protocol.DecodeLookAt(c.Body())
		if err != nil {
			return reply(c, fiber.StatusBadRequest, protocol.NotReady(err))
		}

		mu.Lock()
		err = ctrl.PointHead(c.UserContext(), req.Direction)
		mu.Unlock()

		switch {
		case err == nil:
			s.log.Info("look_at ready", "direction", req.Direction)
			return reply(c, fiber.StatusOK, protocol.Ready())
		case errors.Is(err, robot.ErrConvergenceTimeout):
			s.log.Warn("look_at timed out", "direction", req.Direction, "err", err)
			return reply(c, fiber.StatusOK, protocol.Response{Ready: false, Error: timeoutMessage})
		default:
			s.log.Error("look_at failed", "direction", req.Direction, "err", err)
			return reply(c, fiber.StatusOK, protocol.NotReady(err))
		}
	})

	return s
}
