package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/service"
	"github.com/noah-isme/internhub-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding the user directory.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/users", h.users)
}

func (h *SeedHandler) users(c *fiber.Ctx) error {
	var payload dto.SeedUsersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", nil)
	}

	affected, err := h.service.SeedUsers(requestContext(c), c.Get("X-Seed-Token"), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeedDisabled):
			return utils.Fail(c, fiber.StatusForbidden, "seeding disabled", nil)
		case errors.Is(err, service.ErrSeedUnauthorized):
			return utils.Fail(c, fiber.StatusForbidden, "invalid token", nil)
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("seed operation failed")
			return utils.Fail(c, fiber.StatusInternalServerError, "seed operation failed", nil)
		}
	}

	return utils.SendSuccess(c, "users seeded", fiber.Map{"affected": affected})
}
