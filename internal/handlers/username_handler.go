package handlers

import (
	"errors"
	"net/url"

	"gymbro/internal/logger"
	"gymbro/internal/middleware"
	"gymbro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UsernameHandler exposes the username registry.
type UsernameHandler struct {
	service  *services.UsernameService
	validate *validator.Validate
	log      *logger.Logger
}

// NewUsernameHandler creates a new UsernameHandler.
func NewUsernameHandler(service *services.UsernameService, log *logger.Logger) *UsernameHandler {
	return &UsernameHandler{
		service:  service,
		validate: validator.New(),
		log:      log.With("handler", "UsernameHandler"),
	}
}

// RegisterPublicRoutes registers the routes that need no token.
func (h *UsernameHandler) RegisterPublicRoutes(router fiber.Router) {
	router.Get("/usernames/:handle/availability", h.HandleAvailability)
}

// RegisterRoutes registers the authenticated username routes.
func (h *UsernameHandler) RegisterRoutes(router fiber.Router) {
	router.Put("/me/username", h.HandleUpdateUsername)
}

// HandleAvailability reports whether a handle can still be taken. Fiber hands
// the path segment over still escaped, so it is decoded before sanitizing.
func (h *UsernameHandler) HandleAvailability(c *fiber.Ctx) error {
	raw, err := url.PathUnescape(c.Params("handle"))
	if err != nil {
		return c.JSON(fiber.Map{
			"handle":    services.Sanitize(c.Params("handle")),
			"available": false,
		})
	}
	return c.JSON(fiber.Map{
		"handle":    services.Sanitize(raw),
		"available": h.service.CheckAvailable(c.UserContext(), raw),
	})
}

type updateUsernameRequest struct {
	Username string `json:"username" validate:"required"`
}

// HandleUpdateUsername renames the authenticated user.
func (h *UsernameHandler) HandleUpdateUsername(c *fiber.Ctx) error {
	var req updateUsernameRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	res, err := h.service.UpdateUsername(c.UserContext(), middleware.Owner(c), req.Username)
	switch {
	case err == nil:
		return c.JSON(res)
	case errors.Is(err, services.ErrInvalidUsername):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Username must use letters, numbers, or underscores",
		})
	case errors.Is(err, services.ErrUsernameTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Username already taken",
		})
	case errors.Is(err, services.ErrMissingOwner):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Missing user",
		})
	}
	h.log.Error("error updating username", "owner", middleware.Owner(c), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not update username, try again",
		"error":   err.Error(),
	})
}
