package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/config"
	"github.com/noah-isme/internhub-api/internal/service"
	"github.com/noah-isme/internhub-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Service           string    `json:"service"`
	Environment       string    `json:"environment"`
	Database          string    `json:"database"`
	RealtimeConnected int       `json:"realtimeConnected"`
}

// HealthCheck returns a handler that reports application health information.
// db and registry may be nil.
func HealthCheck(cfg config.Config, db *gorm.DB, registry *service.ConnectionRegistry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "unknown",
		}
		if registry != nil {
			payload.RealtimeConnected = registry.Count()
		}

		if db != nil {
			payload.Database = "ok"
			if err := pingDatabase(c.UserContext(), db); err != nil {
				payload.Status = "degraded"
				payload.Database = err.Error()
				return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
					Success: false,
					Data:    payload,
					Message: "service degraded",
					Reason:  utils.ReasonForStatus(fiber.StatusServiceUnavailable),
				})
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}
