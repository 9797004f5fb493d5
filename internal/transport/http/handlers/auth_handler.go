package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type AuthHandler struct {
	auth   *services.AuthService
	logger *logger.Logger
}

func NewAuthHandler(auth *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// Login exchanges the operator password for a signed session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "Validation failed",
			Details: errs,
		})
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		switch err {
		case services.ErrAuthNotConfigured:
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: "Login is not configured on this server",
			})
		case services.ErrInvalidCredentials:
			h.logger.Warnw("login rejected", "client_ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: "Invalid credentials",
			})
		default:
			h.logger.Errorw("login failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: "Failed to log in",
			})
		}
	}

	return c.JSON(dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
