package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/service"
	"shortreg/internal/infra/prometheus"
)

// RedirectDeps groups dependencies required by the redirect handler. Cache
// and Publisher are optional.
type RedirectDeps struct {
	Logger    *zap.Logger
	Registry  *service.Registry
	Cache     urlCache
	Publisher *service.AccessPublisher
}

// urlCache is the slice of the redirect cache the hot path needs.
type urlCache interface {
	Get(ctx context.Context, code string) *model.ShortURL
	Set(ctx context.Context, rec *model.ShortURL)
}

// RedirectHandler implements the public redirect flow.
type RedirectHandler struct {
	logger    *zap.Logger
	registry  *service.Registry
	cache     urlCache
	publisher *service.AccessPublisher
}

// NewRedirectHandler creates a redirect handler with the provided
// dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:    logger,
		registry:  deps.Registry,
		cache:     deps.Cache,
		publisher: deps.Publisher,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "shortreg",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code. The counter write happens after the lookup
// decision, so a failed increment never blocks the redirect.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing code",
		})
	}

	ctx := c.UserContext()
	rec := h.lookup(ctx, code)
	if rec == nil {
		var err error
		rec, err = h.registry.Resolve(ctx, code)
		if err != nil {
			return respondError(c, err)
		}
		if h.cache != nil {
			h.cache.Set(ctx, rec)
		}
	}

	h.recordAccess(code)
	prometheus.Redirects.Inc()

	h.logger.Debug("redirecting", zap.String("code", code), zap.String("target", rec.URL))
	return c.Redirect(rec.URL, fiber.StatusFound)
}

func (h *RedirectHandler) lookup(ctx context.Context, code string) *model.ShortURL {
	if h.cache == nil {
		return nil
	}
	return h.cache.Get(ctx, code)
}

// recordAccess prefers the async pipeline; without one the increment runs
// inline on a detached context so a slow backend cannot stall the
// response.
func (h *RedirectHandler) recordAccess(code string) {
	if h.publisher != nil {
		go func() {
			if err := h.publisher.Publish(code); err != nil {
				h.logger.Error("failed to publish access event", zap.Error(err), zap.String("code", code))
				// The stream is unavailable; count inline so the
				// access is not lost.
				h.registry.RecordAccess(context.Background(), code)
			}
		}()
		return
	}
	go h.registry.RecordAccess(context.Background(), code)
}
