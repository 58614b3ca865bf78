package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payguard/internal/apps"
)

// RegisterAppRoutes wires the app signing registry.
func RegisterAppRoutes(r fiber.Router, h *apps.Handler) {
	r.Post("/apps", h.Register)
	r.Get("/apps/:package", h.Get)
}
