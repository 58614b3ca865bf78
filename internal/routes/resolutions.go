package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payguard/internal/session"
)

// RegisterResolutionRoutes wires session endpoints. rateLimiter guards
// creation and idempotency guards authorization; either may be nil.
func RegisterResolutionRoutes(r fiber.Router, h *session.Handler, rateLimiter, idempotency fiber.Handler) {
	group := r.Group("/resolutions")
	if rateLimiter != nil {
		group.Post("", rateLimiter, h.Create)
	} else {
		group.Post("", h.Create)
	}
	group.Get("/:id", h.Get)
	group.Delete("/:id", h.Delete)
	if idempotency != nil {
		group.Post("/:id/authorize", idempotency, h.Authorize)
	} else {
		group.Post("/:id/authorize", h.Authorize)
	}
}
