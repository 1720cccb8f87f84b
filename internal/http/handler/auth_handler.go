package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"shortreg/internal/app/service"
	"shortreg/internal/auth"
	"shortreg/internal/http/middleware"
)

// AuthDeps groups dependencies required by account handlers.
type AuthDeps struct {
	Logger   *zap.Logger
	Registry *service.Registry
	Tokens   *auth.TokenSigner
}

// AuthHandler implements registration, login, and profile endpoints.
type AuthHandler struct {
	logger   *zap.Logger
	registry *service.Registry
	tokens   *auth.TokenSigner
}

// NewAuthHandler creates an auth handler with the provided dependencies.
func NewAuthHandler(deps AuthDeps) *AuthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:   logger,
		registry: deps.Registry,
		tokens:   deps.Tokens,
	}
}

// Register wires auth routes onto the provided router.
func (h *AuthHandler) Register(router fiber.Router) {
	group := router.Group("/auth")
	{
		group.Post("/register", h.RegisterAccount)
		group.Post("/login", h.Login)
		group.Get("/me", middleware.RequireAuth(), h.Me)
	}
}

// CredentialsRequest carries an email/password pair.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountResponse represents an account on the wire. The password hash
// never leaves the server.
type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterAccount handles POST /api/auth/register
func (h *AuthHandler) RegisterAccount(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	acct, err := h.registry.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AccountResponse{
		ID:        acct.ID,
		Email:     acct.Email,
		CreatedAt: acct.CreatedAt,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	acct, err := h.registry.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := h.tokens.Issue(auth.Identity{AccountID: acct.ID, Email: acct.Email})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"account": AccountResponse{
			ID:        acct.ID,
			Email:     acct.Email,
			CreatedAt: acct.CreatedAt,
		},
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	acct, err := h.registry.GetAccount(c.UserContext(), middleware.CallerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(AccountResponse{
		ID:        acct.ID,
		Email:     acct.Email,
		CreatedAt: acct.CreatedAt,
	})
}
