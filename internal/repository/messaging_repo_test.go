package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/models"
)

func setupMessagingDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))
	return db
}

func seedPair(t *testing.T, db *gorm.DB) (models.User, models.User) {
	t.Helper()
	employer := models.User{Email: "hr@acme.test", Name: "Acme HR", Role: models.RoleEmployer}
	student := models.User{Email: "sam@uni.test", Name: "Sam", Role: models.RoleStudent}
	require.NoError(t, db.Create(&employer).Error)
	require.NoError(t, db.Create(&student).Error)
	return employer, student
}

func TestConversationRepositoryGetOrCreateReturnsExisting(t *testing.T) {
	db := setupMessagingDB(t)
	repo := NewConversationRepository(db)
	employer, student := seedPair(t, db)
	ctx := context.Background()

	first := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
	created, err := repo.GetOrCreate(ctx, &first)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, first.ID)

	second := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
	created, err = repo.GetOrCreate(ctx, &second)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestConversationRepositoryGetOrCreateConcurrent(t *testing.T) {
	db := setupMessagingDB(t)
	repo := NewConversationRepository(db)
	employer, student := seedPair(t, db)

	const workers = 16
	ids := make([]uint, workers)
	errs := make([]error, workers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			conversation := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
			_, errs[i] = repo.GetOrCreate(context.Background(), &conversation)
			ids[i] = conversation.ID
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}

	var total int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&total).Error)
	require.Equal(t, int64(1), total)
}

func TestConversationPairIsUniqueAtStorageLevel(t *testing.T) {
	db := setupMessagingDB(t)
	employer, student := seedPair(t, db)

	require.NoError(t, db.Create(&models.Conversation{EmployerID: employer.ID, StudentID: student.ID}).Error)
	err := db.Create(&models.Conversation{EmployerID: employer.ID, StudentID: student.ID}).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
}

func TestMessageRepositoryAppendListAndMarkRead(t *testing.T) {
	db := setupMessagingDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	employer, student := seedPair(t, db)
	ctx := context.Background()

	conversation := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
	_, err := conversations.GetOrCreate(ctx, &conversation)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	for i, sender := range []uint{employer.ID, student.ID, employer.ID} {
		message := models.Message{
			ConversationID: conversation.ID,
			SenderID:       sender,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, messages.Append(ctx, &message))
		require.False(t, message.IsRead)
	}

	stored, err := conversations.GetByID(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageAt)
	require.WithinDuration(t, base.Add(2*time.Minute), *stored.LastMessageAt, time.Second)

	all, err := messages.ListByConversation(ctx, conversation.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.Greater(t, all[i].ID, all[i-1].ID)
	}

	page, err := messages.ListByConversation(ctx, conversation.ID, all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, all[1].ID, page[0].ID)

	updated, err := messages.MarkRead(ctx, conversation.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	updated, err = messages.MarkRead(ctx, conversation.ID, student.ID)
	require.NoError(t, err)
	require.Zero(t, updated)

	unread, err := messages.UnreadCounts(ctx, []uint{conversation.ID}, employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), unread[conversation.ID])

	latest, err := messages.LatestByConversations(ctx, []uint{conversation.ID})
	require.NoError(t, err)
	require.Equal(t, all[2].ID, latest[conversation.ID].ID)
}

func TestMessageRepositoryCursorWalkIgnoresClockSkew(t *testing.T) {
	db := setupMessagingDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	employer, student := seedPair(t, db)
	ctx := context.Background()

	conversation := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
	_, err := conversations.GetOrCreate(ctx, &conversation)
	require.NoError(t, err)

	// the second insert carries the older timestamp, as when two writers race.
	now := time.Now().UTC()
	first := models.Message{ConversationID: conversation.ID, SenderID: employer.ID, Content: "A", CreatedAt: now}
	second := models.Message{ConversationID: conversation.ID, SenderID: student.ID, Content: "B", CreatedAt: now.Add(-time.Second)}
	require.NoError(t, messages.Append(ctx, &first))
	require.NoError(t, messages.Append(ctx, &second))

	var walked []string
	var after uint
	for i := 0; i < 5; i++ {
		page, err := messages.ListByConversation(ctx, conversation.ID, after, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		walked = append(walked, page[0].Content)
		after = page[0].ID
	}

	require.Equal(t, []string{"A", "B"}, walked)
}

func TestMessageRepositoryAppendRequiresConversation(t *testing.T) {
	db := setupMessagingDB(t)
	messages := NewMessageRepository(db)

	err := messages.Append(context.Background(), &models.Message{ConversationID: 999, SenderID: 1, Content: "hi"})
	require.Error(t, err)

	var total int64
	require.NoError(t, db.Model(&models.Message{}).Count(&total).Error)
	require.Zero(t, total)
}

func TestConversationRepositoryDeleteCascades(t *testing.T) {
	db := setupMessagingDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	employer, student := seedPair(t, db)
	ctx := context.Background()

	conversation := models.Conversation{EmployerID: employer.ID, StudentID: student.ID}
	_, err := conversations.GetOrCreate(ctx, &conversation)
	require.NoError(t, err)

	message := models.Message{ConversationID: conversation.ID, SenderID: employer.ID, Content: "hello"}
	require.NoError(t, messages.Append(ctx, &message))

	deleted, err := conversations.Delete(ctx, conversation.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = messages.GetByID(ctx, message.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	deleted, err = conversations.Delete(ctx, conversation.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestConversationRepositoryListsByParticipantAndPages(t *testing.T) {
	db := setupMessagingDB(t)
	repo := NewConversationRepository(db)
	employer, student := seedPair(t, db)
	other := models.User{Email: "kim@uni.test", Name: "Kim", Role: models.RoleStudent}
	require.NoError(t, db.Create(&other).Error)
	ctx := context.Background()

	for _, studentID := range []uint{student.ID, other.ID} {
		conversation := models.Conversation{EmployerID: employer.ID, StudentID: studentID}
		_, err := repo.GetOrCreate(ctx, &conversation)
		require.NoError(t, err)
	}

	forEmployer, err := repo.ListByParticipant(ctx, employer.ID, models.RoleEmployer)
	require.NoError(t, err)
	require.Len(t, forEmployer, 2)

	forStudent, err := repo.ListByParticipant(ctx, student.ID, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, forStudent, 1)

	page, total, err := repo.List(ctx, ConversationFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, page, 1)
}

func TestUserRepositoryFindByIDs(t *testing.T) {
	db := setupMessagingDB(t)
	repo := NewUserRepository(db)
	employer, student := seedPair(t, db)

	users, err := repo.FindByIDs(context.Background(), []uint{employer.ID, student.ID, employer.ID, 0})
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Sam", users[student.ID].Name)
}
