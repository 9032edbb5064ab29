package handlers

import (
	"errors"

	"gymbro/internal/logger"
	"gymbro/internal/repositories"
	"gymbro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	identityService *services.IdentityService
	usernameService *services.UsernameService
	validate        *validator.Validate
	log             *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identityService *services.IdentityService, usernameService *services.UsernameService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		identityService: identityService,
		usernameService: usernameService,
		validate:        validator.New(),
		log:             log.With("handler", "AuthHandler"),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Username string `json:"username" validate:"omitempty,max=64"`
}

// HandleRegister creates the account, then gives it a username.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	identity, err := h.identityService.Register(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Registration failed",
				"error":   err.Error(),
			})
		}
		h.log.Error("error registering identity", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not register user",
			"error":   err.Error(),
		})
	}

	assigned, err := h.usernameService.AssignUsername(c.UserContext(), identity.ID, req.Username, identity.Email)
	if err != nil {
		h.log.Error("error saving profile of new identity", "id", identity.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Account created but the profile could not be saved",
			"error":   err.Error(),
		})
	}

	token, err := h.identityService.IssueToken(identity)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not issue token",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "User registered successfully",
		"token":    token,
		"user":     identity,
		"username": assigned,
	})
}

// LoginRequest represents the request body for login. Login is an email or
// a username.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	token, identity, err := h.identityService.Authenticate(c.UserContext(), req.Login, req.Password)
	if err != nil {
		h.log.Info("login failed", "login", req.Login, "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication failed",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    identity,
	})
}
