package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/repository"
)

type messagingFixture struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	employer      models.User
	student       models.User
	validate      *validator.Validate
	logger        zerolog.Logger
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))

	employer := models.User{Email: "talent@acme.test", Name: "Acme Talent", Role: models.RoleEmployer}
	student := models.User{Email: "ana@uni.test", Name: "Ana", Role: models.RoleStudent}
	require.NoError(t, db.Create(&employer).Error)
	require.NoError(t, db.Create(&student).Error)

	return &messagingFixture{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		users:         repository.NewUserRepository(db),
		employer:      employer,
		student:       student,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        zerolog.Nop(),
	}
}

func (f *messagingFixture) conversationService() ConversationService {
	return NewConversationService(f.conversations, f.messages, f.users, f.validate, f.logger)
}

func (f *messagingFixture) messageService(notifier MessageNotifier) MessageService {
	return NewMessageService(f.conversations, f.messages, notifier, f.validate, f.logger)
}

func (f *messagingFixture) openConversation(t *testing.T) dto.ConversationResponse {
	t.Helper()
	conversation, _, err := f.conversationService().GetOrCreate(context.Background(), dto.ConversationCreateRequest{
		EmployerID: f.employer.ID,
		StudentID:  f.student.ID,
	})
	require.NoError(t, err)
	return conversation
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []dto.MessageResponse
}

func (n *recordingNotifier) NotifyNewMessage(_ context.Context, _ models.Conversation, message dto.MessageResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type stubChannel struct {
	mu     sync.Mutex
	events []dto.RealtimeEvent
	closed bool
	err    error
}

func (c *stubChannel) Send(event dto.RealtimeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *stubChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *stubChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubChannel) received() []dto.RealtimeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dto.RealtimeEvent, len(c.events))
	copy(out, c.events)
	return out
}

func isValidationErr(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
