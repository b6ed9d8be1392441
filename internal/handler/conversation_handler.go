package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/middleware"
	"github.com/noah-isme/internhub-api/internal/service"
	"github.com/noah-isme/internhub-api/internal/utils"
)

// ConversationHandler exposes the conversation directory and message store to participants.
type ConversationHandler struct {
	conversations service.ConversationService
	messages      service.MessageService
	logger        zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(conversations service.ConversationService, messages service.MessageService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		logger:        logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register attaches conversation routes. sendGuard, when non-nil, runs before message creation.
func (h *ConversationHandler) Register(router fiber.Router, sendGuard fiber.Handler) {
	router.Post("", h.create)
	router.Get("/user/:userId", middleware.WithAuth(h.listForUser, middleware.AuthOptions{SelfParam: "userId"}))
	router.Get("/:id", h.get)
	router.Get("/:id/messages", h.listMessages)
	if sendGuard != nil {
		router.Post("/:id/messages", sendGuard, h.sendMessage)
	} else {
		router.Post("/:id/messages", h.sendMessage)
	}
	router.Post("/:id/read", h.markRead)
}

func (h *ConversationHandler) create(c *fiber.Ctx) error {
	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", nil)
	}

	if !actingAs(c, payload.EmployerID) && !actingAs(c, payload.StudentID) {
		return utils.Fail(c, fiber.StatusForbidden, "cannot open a conversation for other users", nil)
	}

	conversation, created, err := h.conversations.GetOrCreate(requestContext(c), payload)
	if err != nil {
		return h.fail(c, err, "failed to open conversation")
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation created", conversation)
	}
	return utils.SendSuccess(c, "conversation retrieved", conversation)
}

func (h *ConversationHandler) listForUser(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid user identifier", nil)
	}

	// without ?role= the target user's stored role decides the side.
	items, err := h.conversations.ListForUser(requestContext(c), userID, c.Query("role"))
	if err != nil {
		return h.fail(c, err, "failed to list conversations")
	}

	return utils.SendSuccess(c, "conversations retrieved", items)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	conversation, err := h.loadAuthorized(c)
	if err != nil {
		return h.fail(c, err, "failed to fetch conversation")
	}
	return utils.SendSuccess(c, "conversation retrieved", conversation)
}

func (h *ConversationHandler) listMessages(c *fiber.Ctx) error {
	conversation, err := h.loadAuthorized(c)
	if err != nil {
		return h.fail(c, err, "failed to fetch conversation")
	}

	var query dto.MessageListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid query parameters", nil)
	}

	page, err := h.messages.List(requestContext(c), conversation.ID, query)
	if err != nil {
		return h.fail(c, err, "failed to list messages")
	}

	return utils.OK(c, page.Items, "messages retrieved", fiber.Map{"nextCursor": page.NextCursor})
}

func (h *ConversationHandler) sendMessage(c *fiber.Ctx) error {
	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid conversation identifier", nil)
	}

	var payload dto.MessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", nil)
	}
	if payload.SenderID == 0 {
		payload.SenderID = userIDFromContext(c)
	}
	if !actingAs(c, payload.SenderID) {
		return utils.Fail(c, fiber.StatusForbidden, "cannot send as another user", nil)
	}

	message, err := h.messages.Append(requestContext(c), conversationID, payload)
	if err != nil {
		return h.fail(c, err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ConversationHandler) markRead(c *fiber.Ctx) error {
	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid conversation identifier", nil)
	}

	var payload dto.MarkReadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", nil)
		}
	}
	if payload.UserID == 0 {
		payload.UserID = userIDFromContext(c)
	}
	if !actingAs(c, payload.UserID) {
		return utils.Fail(c, fiber.StatusForbidden, "cannot mark read for another user", nil)
	}

	updated, err := h.messages.MarkRead(requestContext(c), conversationID, payload)
	if err != nil {
		return h.fail(c, err, "failed to mark conversation read")
	}

	return utils.SendSuccess(c, "conversation marked read", dto.MarkReadResponse{Success: true, Updated: updated})
}

// loadAuthorized fetches the :id conversation and checks that the caller takes part in it.
func (h *ConversationHandler) loadAuthorized(c *fiber.Ctx) (dto.ConversationResponse, error) {
	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return dto.ConversationResponse{}, service.ErrInvalidID
	}

	conversation, err := h.conversations.Get(requestContext(c), conversationID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	if !actingAs(c, conversation.EmployerID) && !actingAs(c, conversation.StudentID) {
		return dto.ConversationResponse{}, service.ErrNotParticipant
	}
	return conversation, nil
}

func (h *ConversationHandler) fail(c *fiber.Ctx, err error, message string) error {
	return respondServiceError(c, h.logger, err, message)
}

// respondServiceError maps service errors onto the JSON error envelope.
func respondServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidParticipant),
		errors.Is(err, service.ErrParticipantSuspended),
		errors.Is(err, service.ErrEmptyContent):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound):
		return utils.Fail(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrNotParticipant):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), nil)
	default:
		requestLogger(logger, c).Error().Err(err).Msg(message)
		return utils.Fail(c, fiber.StatusInternalServerError, message, nil)
	}
}
