package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService loads user accounts into the local directory for development and demos.
type SeedService interface {
	SeedUsers(ctx context.Context, token string, req dto.SeedUsersRequest) (int64, error)
}

type seedService struct {
	users     repository.UserRepository
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:     users,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedUsers(ctx context.Context, token string, req dto.SeedUsersRequest) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}

	affected, err := s.users.UpsertBatch(ctx, normalizeSeedUsers(req.Items))
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("users seeded")
	return affected, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func normalizeSeedUsers(items []dto.SeedUser) []models.User {
	out := make([]models.User, 0, len(items))
	for _, item := range items {
		out = append(out, models.User{
			Email:       strings.ToLower(strings.TrimSpace(item.Email)),
			Name:        strings.TrimSpace(item.Name),
			Phone:       strings.TrimSpace(item.Phone),
			Role:        item.Role,
			IsVerified:  item.IsVerified,
			IsSuspended: item.IsSuspended,
		})
	}
	return out
}
