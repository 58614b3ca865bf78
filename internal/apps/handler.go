package apps

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the app registry over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds an app HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	PackageName     string   `json:"package_name"`
	Fingerprints    []string `json:"sha256_cert_fingerprints"`
	Certificates    [][]byte `json:"certificates"`
	MultipleSigners bool     `json:"multiple_signers"`
}

type appResponse struct {
	ID              string    `json:"id"`
	PackageName     string    `json:"package_name"`
	Fingerprints    []string  `json:"sha256_cert_fingerprints"`
	MultipleSigners bool      `json:"multiple_signers"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(app App) appResponse {
	return appResponse{
		ID:              app.ID,
		PackageName:     app.PackageName,
		Fingerprints:    app.Fingerprints,
		MultipleSigners: app.MultipleSigners,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
}

// Register stores signing data for a package. Certificates are base64 DER.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	app, err := h.service.Register(c.UserContext(), RegisterInput{
		PackageName:     req.PackageName,
		Fingerprints:    req.Fingerprints,
		Certificates:    req.Certificates,
		MultipleSigners: req.MultipleSigners,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidApp) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(app))
}

// Get returns the signing data registered for a package.
func (h *Handler) Get(c *fiber.Ctx) error {
	app, err := h.service.Get(c.UserContext(), c.Params("package"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(app))
}
