package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/payguard/internal/authorize"
	"github.com/congo-pay/payguard/internal/payrequest"
)

const maxWait = 30 * time.Second

// Handler exposes sessions over HTTP.
type Handler struct {
	manager *Manager
}

// NewHandler builds a session HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

type createRequest struct {
	URI     string `json:"uri"`
	Handler string `json:"handler"`
	Caller  string `json:"caller"`
}

type authorizeRequest struct {
	Action string `json:"action"`
}

type outcomeResponse struct {
	Code      int    `json:"code"`
	Result    string `json:"result"`
	Signature string `json:"signature,omitempty"`
}

type viewResponse struct {
	ID           string           `json:"id"`
	URI          string           `json:"uri"`
	Caller       string           `json:"caller,omitempty"`
	Entrypoint   string           `json:"entrypoint"`
	Kind         string           `json:"kind"`
	State        string           `json:"state"`
	CanAuthorize bool             `json:"can_authorize"`
	Cancelled    bool             `json:"cancelled"`
	Outcome      *outcomeResponse `json:"outcome,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

func toResponse(v View) viewResponse {
	resp := viewResponse{
		ID:           v.ID,
		URI:          v.URI,
		Caller:       v.Caller,
		Entrypoint:   v.Entrypoint.String(),
		Kind:         v.Kind.String(),
		State:        v.State.String(),
		CanAuthorize: v.CanAuthorize,
		Cancelled:    v.Cancelled,
		CreatedAt:    v.CreatedAt,
		ExpiresAt:    v.ExpiresAt,
	}
	if v.Outcome != nil {
		resp.Outcome = &outcomeResponse{
			Code:      int(v.Outcome.Code),
			Result:    v.Outcome.Code.String(),
			Signature: v.Outcome.Signature,
		}
	}
	return resp
}

// Create opens a session for an incoming payment request.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.manager.Create(c.UserContext(), CreateInput{URI: req.URI, Handler: req.Handler, Caller: req.Caller})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(view))
}

// Get returns a session. The optional wait query parameter (e.g. "2s") waits
// for an outstanding verification first.
func (h *Handler) Get(c *fiber.Ctx) error {
	var wait time.Duration
	if raw := c.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fiber.NewError(http.StatusBadRequest, "wait must be a non-negative duration")
		}
		wait = min(d, maxWait)
	}
	view, err := h.manager.Get(c.UserContext(), c.Params("id"), wait)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(view))
}

// Delete releases a session. It succeeds for unknown sessions.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.manager.Cancel(c.UserContext(), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Authorize applies the requested action.
func (h *Handler) Authorize(c *fiber.Ctx) error {
	var req authorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	action, err := authorize.ParseAction(req.Action)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.manager.Authorize(c.UserContext(), c.Params("id"), action)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(view))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, payrequest.ErrInvalidRequest), errors.Is(err, authorize.ErrUnknownAction):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, authorize.ErrNotPermitted), errors.Is(err, ErrAlreadyDecided):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrClosed):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
