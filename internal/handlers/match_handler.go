package handlers

import (
	"errors"
	"maps"
	"strconv"

	"gymbro/internal/logger"
	"gymbro/internal/middleware"
	"gymbro/internal/services"
	"gymbro/pkg/matching"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// MatchHandler handles match requests, browse filters and candidate lists.
type MatchHandler struct {
	service  *services.MatchService
	validate *validator.Validate
	log      *logger.Logger
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(service *services.MatchService, log *logger.Logger) *MatchHandler {
	return &MatchHandler{
		service:  service,
		validate: validator.New(),
		log:      log.With("handler", "MatchHandler"),
	}
}

// RegisterRoutes registers the match routes with the Fiber app.
func (h *MatchHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/me/filters", h.HandleGetFilters)
	router.Put("/me/filters", h.HandleSaveFilters)

	matchRoutes := router.Group("/matches")
	matchRoutes.Get("/", h.HandleListMatches)
	matchRoutes.Get("/candidates", h.HandleCandidates)
	matchRoutes.Get("/requests", h.HandleListRequests)
	matchRoutes.Post("/requests/:id", h.HandleSendRequest)
	matchRoutes.Post("/requests/:id/accept", h.HandleAcceptRequest)
	matchRoutes.Post("/requests/:id/decline", h.HandleDeclineRequest)
}

func (h *MatchHandler) HandleGetFilters(c *fiber.Ctx) error {
	filters, err := h.service.GetFilters(c.UserContext(), middleware.Owner(c))
	if err != nil {
		return h.internalError(c, "Could not load filters", err)
	}
	return c.JSON(filters)
}

func (h *MatchHandler) HandleSaveFilters(c *fiber.Ctx) error {
	var filters matching.Filters
	if ok, err := parseBody(c, h.validate, &filters); !ok {
		return err
	}
	if err := h.service.SaveFilters(c.UserContext(), middleware.Owner(c), filters); err != nil {
		return h.internalError(c, "Could not save filters", err)
	}
	return c.JSON(filters)
}

func (h *MatchHandler) HandleListMatches(c *fiber.Ctx) error {
	matches, err := h.service.ListMatches(c.UserContext(), middleware.Owner(c))
	if err != nil {
		return h.internalError(c, "Could not load matches", err)
	}
	return c.JSON(fiber.Map{"matches": matches})
}

func (h *MatchHandler) HandleListRequests(c *fiber.Ctx) error {
	incoming, err := h.service.ListIncoming(c.UserContext(), middleware.Owner(c))
	if err != nil {
		return h.internalError(c, "Could not load requests", err)
	}
	return c.JSON(fiber.Map{"incoming": incoming})
}

// HandleCandidates ranks potential partners. Query parameters:
//
//	limit                       maximum number of results
//	gym, gender, goal,
//	experience, preferredTime   filters; when none is given the saved ones apply
//	w_<attribute>               weight override, e.g. w_benchPress=2
func (h *MatchHandler) HandleCandidates(c *fiber.Ctx) error {
	q := services.CandidateQuery{Limit: c.QueryInt("limit", 0)}

	filters := matching.Filters{
		Gym:           c.Query("gym"),
		Gender:        c.Query("gender"),
		Goal:          c.Query("goal"),
		Experience:    c.Query("experience"),
		PreferredTime: c.Query("preferredTime"),
	}
	if filters != (matching.Filters{}) {
		q.Filters = &filters
	}

	for _, attr := range matching.Attributes {
		raw := c.Query("w_" + string(attr))
		if raw == "" {
			continue
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid weight",
				"error":   err.Error(),
			})
		}
		if q.Weights == nil {
			q.Weights = maps.Clone(matching.DefaultBrowseWeights)
		}
		q.Weights[attr] = w
	}

	suggestions, err := h.service.Candidates(c.UserContext(), middleware.Owner(c), q)
	if err != nil {
		var weightErr *matching.WeightError
		switch {
		case errors.As(err, &weightErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid weight",
				"error":   err.Error(),
			})
		case errors.Is(err, services.ErrProfileNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Complete your profile to see matches",
			})
		}
		return h.internalError(c, "Could not load candidates", err)
	}
	return c.JSON(fiber.Map{"candidates": suggestions})
}

func (h *MatchHandler) HandleSendRequest(c *fiber.Ctx) error {
	err := h.service.SendRequest(c.UserContext(), middleware.Owner(c), c.Params("id"))
	if err != nil {
		return h.requestError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Request sent"})
}

func (h *MatchHandler) HandleAcceptRequest(c *fiber.Ctx) error {
	if err := h.service.AcceptRequest(c.UserContext(), middleware.Owner(c), c.Params("id")); err != nil {
		return h.requestError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Request accepted"})
}

func (h *MatchHandler) HandleDeclineRequest(c *fiber.Ctx) error {
	if err := h.service.DeclineRequest(c.UserContext(), middleware.Owner(c), c.Params("id")); err != nil {
		return h.requestError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Request declined"})
}

func (h *MatchHandler) requestError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSelfRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, services.ErrProfileNotFound), errors.Is(err, services.ErrNoPendingRequest):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, services.ErrAlreadyMatched), errors.Is(err, services.ErrRequestPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	}
	return h.internalError(c, "Could not process request", err)
}

func (h *MatchHandler) internalError(c *fiber.Ctx, message string, err error) error {
	h.log.Error(message, "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}
