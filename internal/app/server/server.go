// Package server assembles the Fiber application: middleware, management
// API, and the public redirect route.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shortreg/internal/app/cache"
	"shortreg/internal/app/service"
	"shortreg/internal/auth"
	"shortreg/internal/http/handler"
	"shortreg/internal/http/middleware"
)

// Dependencies bundles everything the HTTP server needs. Cache and
// Publisher are optional; nil disables the read-through cache and the
// async access pipeline respectively.
type Dependencies struct {
	Logger    *zap.Logger
	Registry  *service.Registry
	Tokens    *auth.TokenSigner
	Cache     *cache.URLCache
	Publisher *service.AccessPublisher
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates the HTTP server with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	s.app.Use(middleware.Auth(s.deps.Tokens))

	api := s.app.Group("/api")

	authHandler := handler.NewAuthHandler(handler.AuthDeps{
		Logger:   s.deps.Logger,
		Registry: s.deps.Registry,
		Tokens:   s.deps.Tokens,
	})
	authHandler.Register(api)

	urlDeps := handler.URLDeps{
		Logger:   s.deps.Logger,
		Registry: s.deps.Registry,
	}
	if s.deps.Cache != nil {
		urlDeps.Cache = s.deps.Cache
	}
	handler.NewURLHandler(urlDeps).Register(api)

	handler.NewCategoryHandler(handler.CategoryDeps{
		Logger:   s.deps.Logger,
		Registry: s.deps.Registry,
	}).Register(api)

	// The catch-all :code route goes last so it never shadows the API.
	redirectDeps := handler.RedirectDeps{
		Logger:    s.deps.Logger,
		Registry:  s.deps.Registry,
		Publisher: s.deps.Publisher,
	}
	if s.deps.Cache != nil {
		redirectDeps.Cache = s.deps.Cache
	}
	handler.NewRedirectHandler(redirectDeps).Register(s.app)
}
