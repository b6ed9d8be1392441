package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/middleware"
	"github.com/noah-isme/internhub-api/internal/service"
)

// RealtimeHandler upgrades connections and hands them to the realtime service.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket endpoint under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	opts := service.RealtimeConnectionOptions{}
	if userID, ok := conn.Locals("user_id").(uint); ok {
		opts.AuthenticatedUserID = userID
	}
	if correlation, ok := conn.Locals("correlation_id").(string); ok {
		opts.CorrelationID = correlation
	}

	h.logger.Debug().Uint("user_id", opts.AuthenticatedUserID).Msg("realtime websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Debug().Uint("user_id", opts.AuthenticatedUserID).Msg("realtime websocket disconnected")
}
