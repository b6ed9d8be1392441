package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/observability"
	"github.com/noah-isme/internhub-api/internal/repository"
)

// MessageNotifier receives freshly persisted messages for realtime delivery.
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, conversation models.Conversation, message dto.MessageResponse)
}

// MessageService is the append-only message store of a conversation.
type MessageService interface {
	Append(ctx context.Context, conversationID uint, req dto.MessageCreateRequest) (dto.MessageResponse, error)
	List(ctx context.Context, conversationID uint, query dto.MessageListQuery) (dto.MessagePage, error)
	MarkRead(ctx context.Context, conversationID uint, req dto.MarkReadRequest) (int64, error)
}

type messageService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	notifier      MessageNotifier
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewMessageService constructs the message store. notifier may be nil.
func NewMessageService(conversations repository.ConversationRepository, messages repository.MessageRepository, notifier MessageNotifier, validate *validator.Validate, logger zerolog.Logger) MessageService {
	return &messageService{
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		validator:     validate,
		logger:        logger.With().Str("component", "message_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/internhub-api/internal/service/message"),
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

func (s *messageService) Append(ctx context.Context, conversationID uint, req dto.MessageCreateRequest) (dto.MessageResponse, error) {
	if conversationID == 0 {
		return dto.MessageResponse{}, ErrInvalidID
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	clean := s.plainText(req.Content)
	if clean == "" {
		return dto.MessageResponse{}, ErrEmptyContent
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.append", trace.WithAttributes(
		attribute.Int64("message.conversation_id", int64(conversationID)),
		attribute.Int64("message.sender_id", int64(req.SenderID)),
	))
	defer span.End()

	conversation, err := s.loadConversation(spanCtx, conversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	if !conversation.HasParticipant(req.SenderID) {
		return dto.MessageResponse{}, ErrNotParticipant
	}

	model := models.Message{
		ConversationID: conversation.ID,
		SenderID:       req.SenderID,
		Content:        clean,
	}

	if err := s.messages.Append(spanCtx, &model); err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrConversationNotFound
		}
		return dto.MessageResponse{}, fmt.Errorf("append message: %w", err)
	}

	observability.MessagesAppended().Inc()

	response := dto.NewMessageResponse(model)
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(spanCtx, conversation, response)
	}

	return response, nil
}

func (s *messageService) List(ctx context.Context, conversationID uint, query dto.MessageListQuery) (dto.MessagePage, error) {
	if conversationID == 0 {
		return dto.MessagePage{}, ErrInvalidID
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.MessagePage{}, err
	}

	if _, err := s.loadConversation(ctx, conversationID); err != nil {
		return dto.MessagePage{}, err
	}

	// one extra row tells whether another page follows.
	fetch := 0
	if query.Limit > 0 {
		fetch = query.Limit + 1
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID, query.AfterID, fetch)
	if err != nil {
		return dto.MessagePage{}, err
	}

	page := dto.MessagePage{}
	if query.Limit > 0 && len(messages) > query.Limit {
		messages = messages[:query.Limit]
		cursor := messages[len(messages)-1].ID
		page.NextCursor = &cursor
	}
	page.Items = dto.NewMessageResponseSlice(messages)

	return page, nil
}

func (s *messageService) MarkRead(ctx context.Context, conversationID uint, req dto.MarkReadRequest) (int64, error) {
	if conversationID == 0 {
		return 0, ErrInvalidID
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.mark_read", trace.WithAttributes(
		attribute.Int64("message.conversation_id", int64(conversationID)),
		attribute.Int64("message.reader_id", int64(req.UserID)),
	))
	defer span.End()

	conversation, err := s.loadConversation(spanCtx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conversation.HasParticipant(req.UserID) {
		return 0, ErrNotParticipant
	}

	updated, err := s.messages.MarkRead(spanCtx, conversationID, req.UserID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}

	return updated, nil
}

// plainText strips markup but stores the remaining text unescaped; clients escape on render.
func (s *messageService) plainText(content string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
}

func (s *messageService) loadConversation(ctx context.Context, id uint) (models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return conversation, nil
}
