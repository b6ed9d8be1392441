package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/service"
	"github.com/noah-isme/internhub-api/internal/utils"
)

// AdminConversationHandler wires the moderation endpoints.
type AdminConversationHandler struct {
	service service.ModerationService
	logger  zerolog.Logger
}

// NewAdminConversationHandler constructs the handler.
func NewAdminConversationHandler(service service.ModerationService, logger zerolog.Logger) *AdminConversationHandler {
	return &AdminConversationHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_conversation_handler").Logger(),
	}
}

// Register attaches moderation routes to the admin router group.
func (h *AdminConversationHandler) Register(router fiber.Router) {
	router.Get("/conversations", h.list)
	router.Get("/conversations/:id", h.get)
	router.Delete("/conversations/:id", h.deleteConversation)
	router.Get("/messages/:id", h.getMessage)
	router.Delete("/messages/:id", h.deleteMessage)
}

func (h *AdminConversationHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid page", nil)
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid page size", nil)
	}

	response, err := h.service.ListConversations(requestContext(c), dto.AdminConversationListRequest{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondServiceError(c, h.logger, err, "failed to list conversations")
	}

	return utils.OK(c, response.Items, "conversations retrieved", response.Pagination)
}

func (h *AdminConversationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid identifier", nil)
	}

	detail, err := h.service.GetConversation(requestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err, "failed to fetch conversation")
	}

	return utils.SendSuccess(c, "conversation retrieved", detail)
}

func (h *AdminConversationHandler) deleteConversation(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid identifier", nil)
	}

	if err := h.service.DeleteConversation(requestContext(c), id); err != nil {
		return respondServiceError(c, h.logger, err, "failed to delete conversation")
	}

	requestLogger(h.logger, c).Info().Uint("conversation_id", id).Uint("admin_id", userIDFromContext(c)).Msg("conversation removed")
	return utils.SendSuccess(c, "conversation deleted", fiber.Map{"id": id})
}

func (h *AdminConversationHandler) getMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid identifier", nil)
	}

	message, err := h.service.GetMessage(requestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err, "failed to fetch message")
	}

	return utils.SendSuccess(c, "message retrieved", message)
}

func (h *AdminConversationHandler) deleteMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid identifier", nil)
	}

	if err := h.service.DeleteMessage(requestContext(c), id); err != nil {
		return respondServiceError(c, h.logger, err, "failed to delete message")
	}

	requestLogger(h.logger, c).Info().Uint("message_id", id).Uint("admin_id", userIDFromContext(c)).Msg("message removed")
	return utils.SendSuccess(c, "message deleted", fiber.Map{"id": id})
}
