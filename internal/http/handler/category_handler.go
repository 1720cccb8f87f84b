package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/service"
	"shortreg/internal/http/middleware"
)

// CategoryDeps groups dependencies required by category handlers.
type CategoryDeps struct {
	Logger   *zap.Logger
	Registry *service.Registry
}

// CategoryHandler implements the category management endpoints.
type CategoryHandler struct {
	logger   *zap.Logger
	registry *service.Registry
}

// NewCategoryHandler creates a category handler with the provided
// dependencies.
func NewCategoryHandler(deps CategoryDeps) *CategoryHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryHandler{
		logger:   logger,
		registry: deps.Registry,
	}
}

// Register wires category routes onto the provided router. All routes
// require authentication; categories are always owned.
func (h *CategoryHandler) Register(router fiber.Router) {
	cats := router.Group("/categories", middleware.RequireAuth())
	{
		cats.Post("/", h.Create)
		cats.Get("/", h.List)
		cats.Get("/:id", h.Get)
		cats.Patch("/:id", h.Update)
		cats.Delete("/:id", h.Delete)
	}
}

// CategoryRequest represents the mutable category fields on the wire.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

// CategoryResponse represents a category on the wire.
type CategoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	URLCount    *int64    `json:"url_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func categoryResponse(rec *model.Category) CategoryResponse {
	return CategoryResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Icon:        rec.Icon,
		Color:       rec.Color,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (h *CategoryHandler) input(req CategoryRequest) service.CategoryInput {
	return service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	}
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	rec, err := h.registry.CreateCategory(c.UserContext(), middleware.CallerID(c), h.input(req))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(categoryResponse(rec))
}

// List handles GET /api/categories. With ?counts=true each entry carries
// the number of URLs filed under it.
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	caller := middleware.CallerID(c)

	if c.QueryBool("counts") {
		recs, err := h.registry.ListCategoriesWithCounts(c.UserContext(), caller)
		if err != nil {
			return respondError(c, err)
		}
		response := make([]CategoryResponse, len(recs))
		for i := range recs {
			response[i] = categoryResponse(&recs[i].Category)
			count := recs[i].URLCount
			response[i].URLCount = &count
		}
		return c.JSON(fiber.Map{
			"categories": response,
			"count":      len(response),
		})
	}

	recs, err := h.registry.ListCategories(c.UserContext(), caller)
	if err != nil {
		return respondError(c, err)
	}
	response := make([]CategoryResponse, len(recs))
	for i := range recs {
		response[i] = categoryResponse(&recs[i])
	}
	return c.JSON(fiber.Map{
		"categories": response,
		"count":      len(response),
	})
}

// Get handles GET /api/categories/:id
func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	rec, err := h.registry.GetCategory(c.UserContext(), middleware.CallerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(categoryResponse(rec))
}

// Update handles PATCH /api/categories/:id
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	rec, err := h.registry.UpdateCategory(c.UserContext(), middleware.CallerID(c), c.Params("id"), h.input(req))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(categoryResponse(rec))
}

// Delete handles DELETE /api/categories/:id
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	if err := h.registry.DeleteCategory(c.UserContext(), middleware.CallerID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
