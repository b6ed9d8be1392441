package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/repository"
)

// ModerationService exposes admin read/delete operations over conversations and messages.
type ModerationService interface {
	ListConversations(ctx context.Context, req dto.AdminConversationListRequest) (dto.AdminConversationListResponse, error)
	GetConversation(ctx context.Context, id uint) (dto.AdminConversationDetailResponse, error)
	GetMessage(ctx context.Context, id uint) (dto.MessageResponse, error)
	DeleteMessage(ctx context.Context, id uint) error
	DeleteConversation(ctx context.Context, id uint) error
}

type moderationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	logger        zerolog.Logger
}

// NewModerationService constructs the moderation surface.
func NewModerationService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, logger zerolog.Logger) ModerationService {
	return &moderationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		logger:        logger.With().Str("component", "moderation_service").Logger(),
	}
}

func (s *moderationService) ListConversations(ctx context.Context, req dto.AdminConversationListRequest) (dto.AdminConversationListResponse, error) {
	filter := repository.ConversationFilter{
		Page:     normalizePage(req.Page),
		PageSize: clampPageSize(req.PageSize),
	}

	conversations, total, err := s.conversations.List(ctx, filter)
	if err != nil {
		return dto.AdminConversationListResponse{}, err
	}

	ids := make([]uint, 0, len(conversations))
	userIDs := make([]uint, 0, len(conversations)*2)
	for _, conversation := range conversations {
		ids = append(ids, conversation.ID)
		userIDs = append(userIDs, conversation.EmployerID, conversation.StudentID)
	}

	counts, err := s.messages.CountByConversations(ctx, ids)
	if err != nil {
		return dto.AdminConversationListResponse{}, err
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return dto.AdminConversationListResponse{}, err
	}

	items := make([]dto.AdminConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		items = append(items, dto.AdminConversationResponse{
			ID:            conversation.ID,
			InternshipID:  conversation.InternshipID,
			Employer:      participant(users, conversation.EmployerID),
			Student:       participant(users, conversation.StudentID),
			MessageCount:  counts[conversation.ID],
			LastMessageAt: conversation.LastMessageAt,
			CreatedAt:     conversation.CreatedAt,
		})
	}

	return dto.AdminConversationListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, filter.PageSize),
		},
	}, nil
}

func (s *moderationService) GetConversation(ctx context.Context, id uint) (dto.AdminConversationDetailResponse, error) {
	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AdminConversationDetailResponse{}, ErrConversationNotFound
		}
		return dto.AdminConversationDetailResponse{}, err
	}

	messages, err := s.messages.ListByConversation(ctx, conversation.ID, 0, 0)
	if err != nil {
		return dto.AdminConversationDetailResponse{}, err
	}

	users, err := s.users.FindByIDs(ctx, []uint{conversation.EmployerID, conversation.StudentID})
	if err != nil {
		return dto.AdminConversationDetailResponse{}, err
	}

	return dto.AdminConversationDetailResponse{
		Conversation: dto.NewConversationResponse(conversation),
		Messages:     dto.NewMessageResponseSlice(messages),
		Employer:     participant(users, conversation.EmployerID),
		Student:      participant(users, conversation.StudentID),
	}, nil
}

func (s *moderationService) GetMessage(ctx context.Context, id uint) (dto.MessageResponse, error) {
	message, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrMessageNotFound
		}
		return dto.MessageResponse{}, err
	}
	return dto.NewMessageResponse(message), nil
}

func (s *moderationService) DeleteMessage(ctx context.Context, id uint) error {
	deleted, err := s.messages.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrMessageNotFound
	}

	s.logger.Info().Uint("message_id", id).Msg("message deleted by moderator")
	return nil
}

func (s *moderationService) DeleteConversation(ctx context.Context, id uint) error {
	deleted, err := s.conversations.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrConversationNotFound
	}

	s.logger.Info().Uint("conversation_id", id).Msg("conversation deleted by moderator")
	return nil
}

func participant(users map[uint]models.User, id uint) dto.ParticipantResponse {
	if user, ok := users[id]; ok {
		return dto.NewParticipantResponse(user)
	}
	return dto.ParticipantResponse{ID: id}
}
