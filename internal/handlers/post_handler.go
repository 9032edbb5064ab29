package handlers

import (
	"errors"

	"gymbro/internal/logger"
	"gymbro/internal/middleware"
	"gymbro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PostHandler handles HTTP requests for the photo feed.
type PostHandler struct {
	service  *services.PostService
	validate *validator.Validate
	log      *logger.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service *services.PostService, log *logger.Logger) *PostHandler {
	return &PostHandler{
		service:  service,
		validate: validator.New(),
		log:      log.With("handler", "PostHandler"),
	}
}

// RegisterRoutes registers the post routes with the Fiber app.
func (h *PostHandler) RegisterRoutes(router fiber.Router) {
	postRoutes := router.Group("/posts")
	postRoutes.Get("/", h.HandleFeed)
	postRoutes.Post("/", h.HandleCreatePost)
}

// HandleFeed returns the newest posts, optionally searched with ?q=.
func (h *PostHandler) HandleFeed(c *fiber.Ctx) error {
	posts, err := h.service.Feed(c.UserContext(), c.Query("q"), c.QueryInt("limit", services.DefaultFeedLimit))
	if err != nil {
		h.log.Error("error loading feed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load posts",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"posts": posts})
}

type createPostRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

func (h *PostHandler) HandleCreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if ok, err := parseBody(c, h.validate, &req); !ok {
		return err
	}

	post, err := h.service.CreatePost(c.UserContext(), middleware.Owner(c), req.ImageURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidImageURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, services.ErrProfileNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Profile not found"})
		}
		h.log.Error("error creating post", "owner", middleware.Owner(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create post",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}
