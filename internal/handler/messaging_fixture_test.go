package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/config"
	"github.com/noah-isme/internhub-api/internal/database"
	"github.com/noah-isme/internhub-api/internal/handler"
	"github.com/noah-isme/internhub-api/internal/middleware"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/repository"
	"github.com/noah-isme/internhub-api/internal/router"
	"github.com/noah-isme/internhub-api/internal/service"
)

const testSecret = "handler-test-secret"

type apiFixture struct {
	app      *fiber.App
	db       *gorm.DB
	registry *service.ConnectionRegistry
	employer models.User
	student  models.User
	outsider models.User
	admin    models.User
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Reason  string            `json:"reason"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(config.DriverSQLite, fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	f := &apiFixture{
		db:       db,
		employer: models.User{Email: "talent@acme.test", Name: "Acme Talent", Role: models.RoleEmployer},
		student:  models.User{Email: "ana@uni.test", Name: "Ana", Role: models.RoleStudent},
		outsider: models.User{Email: "budi@uni.test", Name: "Budi", Role: models.RoleStudent},
		admin:    models.User{Email: "ops@internhub.test", Name: "Ops", Role: models.RoleAdmin},
	}
	for _, user := range []*models.User{&f.employer, &f.student, &f.outsider, &f.admin} {
		require.NoError(t, db.Create(user).Error)
	}

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	users := repository.NewUserRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)

	f.registry = service.NewConnectionRegistry(logger)
	t.Cleanup(f.registry.CloseAll)
	dispatcher := service.NewDispatcher(f.registry, nil, nil, "", logger)

	realtimeService, err := service.NewRealtimeService(f.registry, 8, time.Minute, logger)
	require.NoError(t, err)

	f.app = fiber.New()
	f.app.Use(middleware.CorrelationID())
	router.Register(f.app, config.Config{AppName: "internhub-test", AppEnv: "test"}, router.Dependencies{
		DB:                       db,
		Registry:                 f.registry,
		ConversationHandler:      handler.NewConversationHandler(service.NewConversationService(conversations, messages, users, validate, logger), service.NewMessageService(conversations, messages, dispatcher, validate, logger), logger),
		AdminConversationHandler: handler.NewAdminConversationHandler(service.NewModerationService(conversations, messages, users, logger), logger),
		RealtimeHandler:          handler.NewRealtimeHandler(realtimeService, logger),
		JWTMiddleware:            middleware.JWTProtected(testSecret),
		OptionalJWTMiddleware:    middleware.JWTOptional(testSecret),
		MessageRateLimit:         middleware.RateLimit("messages", 100, time.Minute),
	})

	return f
}

func (f *apiFixture) token(t *testing.T, user models.User) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprint(user.ID),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *apiFixture) do(t *testing.T, method, path string, user *models.User, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+f.token(t, *user))
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func (f *apiFixture) openConversation(t *testing.T) uint {
	t.Helper()
	status, payload := f.do(t, http.MethodPost, "/api/v1/conversations", &f.employer, map[string]uint{
		"employerId": f.employer.ID,
		"studentId":  f.student.ID,
	})
	require.Contains(t, []int{fiber.StatusCreated, fiber.StatusOK}, status)

	var conversation struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &conversation))
	require.NotZero(t, conversation.ID)
	return conversation.ID
}

func (f *apiFixture) sendMessage(t *testing.T, conversationID uint, sender models.User, content string) uint {
	t.Helper()
	status, payload := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID), &sender, map[string]interface{}{
		"senderId": sender.ID,
		"content":  content,
	})
	require.Equal(t, fiber.StatusCreated, status)

	var message struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &message))
	return message.ID
}
