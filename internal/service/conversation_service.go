package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/repository"
)

// ConversationService is the directory mapping employer/student pairs to conversations.
type ConversationService interface {
	GetOrCreate(ctx context.Context, req dto.ConversationCreateRequest) (dto.ConversationResponse, bool, error)
	Get(ctx context.Context, id uint) (dto.ConversationResponse, error)
	ListForUser(ctx context.Context, userID uint, role string) ([]dto.ConversationSummaryResponse, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	locks         *pairLocker
}

// NewConversationService constructs the conversation directory.
func NewConversationService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/internhub-api/internal/service/conversation"),
		locks:         newPairLocker(),
	}
}

func (s *conversationService) GetOrCreate(ctx context.Context, req dto.ConversationCreateRequest) (dto.ConversationResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConversationResponse{}, false, err
	}

	spanCtx, span := s.tracer.Start(ctx, "conversations.get_or_create", trace.WithAttributes(
		attribute.Int64("conversation.employer_id", int64(req.EmployerID)),
		attribute.Int64("conversation.student_id", int64(req.StudentID)),
	))
	defer span.End()

	if err := s.checkParticipants(spanCtx, req.EmployerID, req.StudentID); err != nil {
		return dto.ConversationResponse{}, false, err
	}

	unlock := s.locks.Lock(pairKey(req.EmployerID, req.StudentID))
	defer unlock()

	model := models.Conversation{
		EmployerID:   req.EmployerID,
		StudentID:    req.StudentID,
		InternshipID: req.InternshipID,
	}

	created, err := s.conversations.GetOrCreate(spanCtx, &model)
	if err != nil {
		span.RecordError(err)
		return dto.ConversationResponse{}, false, fmt.Errorf("get or create conversation: %w", err)
	}

	if created {
		s.logger.Info().
			Uint("conversation_id", model.ID).
			Uint("employer_id", model.EmployerID).
			Uint("student_id", model.StudentID).
			Msg("conversation created")
	}

	return dto.NewConversationResponse(model), created, nil
}

func (s *conversationService) checkParticipants(ctx context.Context, employerID, studentID uint) error {
	users, err := s.users.FindByIDs(ctx, []uint{employerID, studentID})
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}

	employer, ok := users[employerID]
	if !ok || employer.Role != models.RoleEmployer {
		return fmt.Errorf("%w: employer %d", ErrInvalidParticipant, employerID)
	}
	student, ok := users[studentID]
	if !ok || student.Role != models.RoleStudent {
		return fmt.Errorf("%w: student %d", ErrInvalidParticipant, studentID)
	}

	if employer.IsSuspended || student.IsSuspended {
		return ErrParticipantSuspended
	}
	return nil
}

// roleOf resolves the stored role of userID when the caller did not name one.
func (s *conversationService) roleOf(ctx context.Context, userID uint) (string, bool, error) {
	users, err := s.users.FindByIDs(ctx, []uint{userID})
	if err != nil {
		return "", false, fmt.Errorf("load user: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return "", false, nil
	}
	return user.Role, true, nil
}

func (s *conversationService) Get(ctx context.Context, id uint) (dto.ConversationResponse, error) {
	if id == 0 {
		return dto.ConversationResponse{}, ErrInvalidID
	}

	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, ErrConversationNotFound
		}
		return dto.ConversationResponse{}, err
	}

	return dto.NewConversationResponse(conversation), nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID uint, role string) ([]dto.ConversationSummaryResponse, error) {
	if userID == 0 {
		return nil, ErrInvalidID
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		inferred, found, err := s.roleOf(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !found {
			return []dto.ConversationSummaryResponse{}, nil
		}
		role = inferred
	}
	if role != models.RoleStudent && role != models.RoleEmployer {
		return nil, ErrInvalidRole
	}

	spanCtx, span := s.tracer.Start(ctx, "conversations.list_for_user", trace.WithAttributes(
		attribute.Int64("conversation.user_id", int64(userID)),
		attribute.String("conversation.role", role),
	))
	defer span.End()

	conversations, err := s.conversations.ListByParticipant(spanCtx, userID, role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]uint, 0, len(conversations))
	counterpartIDs := make([]uint, 0, len(conversations))
	for _, conversation := range conversations {
		ids = append(ids, conversation.ID)
		counterpartIDs = append(counterpartIDs, conversation.Counterpart(userID))
	}

	latest, err := s.messages.LatestByConversations(spanCtx, ids)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.UnreadCounts(spanCtx, ids, userID)
	if err != nil {
		return nil, err
	}
	counterparts, err := s.users.FindByIDs(spanCtx, counterpartIDs)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ConversationSummaryResponse, 0, len(conversations))
	for _, conversation := range conversations {
		counterpartID := conversation.Counterpart(userID)
		counterpart, ok := counterparts[counterpartID]
		if !ok {
			counterpart = models.User{ID: counterpartID}
		}

		summary := dto.ConversationSummaryResponse{
			ConversationResponse: dto.NewConversationResponse(conversation),
			Counterpart:          dto.NewParticipantResponse(counterpart),
			UnreadCount:          unread[conversation.ID],
		}
		if message, ok := latest[conversation.ID]; ok {
			response := dto.NewMessageResponse(message)
			summary.LastMessage = &response
		}
		out = append(out, summary)
	}

	return out, nil
}
