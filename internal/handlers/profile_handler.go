package handlers

import (
	"errors"

	"gymbro/internal/logger"
	"gymbro/internal/middleware"
	"gymbro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProfileHandler handles HTTP requests for user profiles.
type ProfileHandler struct {
	service  *services.ProfileService
	validate *validator.Validate
	log      *logger.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service *services.ProfileService, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		validate: validator.New(),
		log:      log.With("handler", "ProfileHandler"),
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/me/profile", h.HandleGetMyProfile)
	router.Put("/me/profile", h.HandleUpdateMyProfile)
	router.Get("/users/:id/profile", h.HandleGetProfile)
}

func (h *ProfileHandler) HandleGetMyProfile(c *fiber.Ctx) error {
	profile, err := h.service.GetProfile(c.UserContext(), middleware.Owner(c))
	if err != nil {
		return h.profileError(c, err)
	}
	return c.JSON(profile)
}

// HandleGetProfile returns another user's profile without their login email.
func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	profile, err := h.service.GetProfile(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.profileError(c, err)
	}
	profile.Email = ""
	return c.JSON(profile)
}

func (h *ProfileHandler) HandleUpdateMyProfile(c *fiber.Ctx) error {
	var update services.ProfileUpdate
	if ok, err := parseBody(c, h.validate, &update); !ok {
		return err
	}

	profile, err := h.service.UpdateProfile(c.UserContext(), middleware.Owner(c), update)
	if err != nil {
		if errors.Is(err, services.ErrInvalidProfile) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"error":   err.Error(),
			})
		}
		return h.profileError(c, err)
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) profileError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrProfileNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Profile not found",
		})
	}
	h.log.Error("profile request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not process profile",
		"error":   err.Error(),
	})
}
