package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/service"
	"shortreg/internal/http/middleware"
)

// URLDeps groups dependencies required by URL management handlers.
type URLDeps struct {
	Logger   *zap.Logger
	Registry *service.Registry
	Cache    urlInvalidator
}

// urlInvalidator is the slice of the redirect cache mutation handlers
// need.
type urlInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// URLHandler implements the short URL management endpoints.
type URLHandler struct {
	logger   *zap.Logger
	registry *service.Registry
	cache    urlInvalidator
}

// NewURLHandler creates a URL handler with the provided dependencies.
func NewURLHandler(deps URLDeps) *URLHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLHandler{
		logger:   logger,
		registry: deps.Registry,
		cache:    deps.Cache,
	}
}

// Register wires URL routes onto the provided router.
func (h *URLHandler) Register(router fiber.Router) {
	urls := router.Group("/urls")
	{
		urls.Post("/", h.Create)
		urls.Get("/", h.List)
		urls.Get("/:code", h.Get)
		urls.Patch("/:code", h.Update)
		urls.Delete("/:code", h.Delete)
		urls.Get("/:code/categories", h.ListCategories)
		urls.Post("/:code/categories", h.Associate)
		urls.Delete("/:code/categories", h.Dissociate)
	}
}

// CreateURLRequest represents the request body for creating a short URL.
type CreateURLRequest struct {
	URL         string   `json:"url"`
	CategoryIDs []string `json:"category_ids,omitempty"`
}

// URLResponse represents a short URL on the wire.
type URLResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	URL         string    `json:"url"`
	AccessCount int64     `json:"access_count"`
	OwnerID     *string   `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func urlResponse(rec *model.ShortURL) URLResponse {
	return URLResponse{
		ID:          rec.ID,
		Code:        rec.Code,
		URL:         rec.URL,
		AccessCount: rec.AccessCount,
		OwnerID:     rec.OwnerID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// Create handles POST /api/urls
func (h *URLHandler) Create(c *fiber.Ctx) error {
	var req CreateURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	rec, err := h.registry.CreateURL(c.UserContext(), middleware.CallerID(c), service.CreateURLInput{
		URL:         req.URL,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(urlResponse(rec))
}

// List handles GET /api/urls, optionally filtered by ?category=<id>.
func (h *URLHandler) List(c *fiber.Ctx) error {
	recs, err := h.registry.ListURLs(c.UserContext(), middleware.CallerID(c), c.Query("category"))
	if err != nil {
		return respondError(c, err)
	}

	response := make([]URLResponse, len(recs))
	for i := range recs {
		response[i] = urlResponse(&recs[i])
	}
	return c.JSON(fiber.Map{
		"urls":  response,
		"count": len(response),
	})
}

// Get handles GET /api/urls/:code
func (h *URLHandler) Get(c *fiber.Ctx) error {
	rec, err := h.registry.GetURL(c.UserContext(), middleware.CallerID(c), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(urlResponse(rec))
}

// UpdateURLRequest represents the request body for updating a short URL.
type UpdateURLRequest struct {
	URL string `json:"url"`
}

// Update handles PATCH /api/urls/:code
func (h *URLHandler) Update(c *fiber.Ctx) error {
	var req UpdateURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	code := c.Params("code")
	rec, err := h.registry.UpdateURL(c.UserContext(), middleware.CallerID(c), code, req.URL)
	if err != nil {
		return respondError(c, err)
	}
	h.invalidate(c.UserContext(), code)
	return c.JSON(urlResponse(rec))
}

// Delete handles DELETE /api/urls/:code
func (h *URLHandler) Delete(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := h.registry.DeleteURL(c.UserContext(), middleware.CallerID(c), code); err != nil {
		return respondError(c, err)
	}
	h.invalidate(c.UserContext(), code)
	return c.SendStatus(fiber.StatusNoContent)
}

// CategoryIDsRequest carries category IDs for association changes.
type CategoryIDsRequest struct {
	CategoryIDs []string `json:"category_ids"`
}

// Associate handles POST /api/urls/:code/categories
func (h *URLHandler) Associate(c *fiber.Ctx) error {
	var req CategoryIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	err := h.registry.AssociateURL(c.UserContext(), middleware.CallerID(c), c.Params("code"), req.CategoryIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Dissociate handles DELETE /api/urls/:code/categories
func (h *URLHandler) Dissociate(c *fiber.Ctx) error {
	var req CategoryIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	err := h.registry.DissociateURL(c.UserContext(), middleware.CallerID(c), c.Params("code"), req.CategoryIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListCategories handles GET /api/urls/:code/categories
func (h *URLHandler) ListCategories(c *fiber.Ctx) error {
	cats, err := h.registry.CategoriesForURL(c.UserContext(), middleware.CallerID(c), c.Params("code"))
	if err != nil {
		return respondError(c, err)
	}

	response := make([]CategoryResponse, len(cats))
	for i := range cats {
		response[i] = categoryResponse(&cats[i])
	}
	return c.JSON(fiber.Map{
		"categories": response,
		"count":      len(response),
	})
}

func (h *URLHandler) invalidate(ctx context.Context, code string) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, code)
	}
}
