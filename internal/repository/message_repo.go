package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/models"
)

// MessageRepository persists conversation messages.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID, afterID uint, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error)
	GetByID(ctx context.Context, id uint) (models.Message, error)
	Delete(ctx context.Context, id uint) (bool, error)
	LatestByConversations(ctx context.Context, conversationIDs []uint) (map[uint]models.Message, error)
	UnreadCounts(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int64, error)
	CountByConversations(ctx context.Context, conversationIDs []uint) (map[uint]int64, error)
}

type messageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, now: time.Now}
}

// Append stores the message unread and bumps the parent conversation's activity markers.
func (r *messageRepository) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message.IsRead = false
		if message.CreatedAt.IsZero() {
			message.CreatedAt = r.now().UTC()
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]interface{}{
				"last_message_at": message.CreatedAt,
				"updated_at":      message.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListByConversation returns messages in insertion order. The id is both the sort key and the
// cursor, so afterID is exclusive and a non-positive limit returns the full remainder.
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID, afterID uint, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.Message
	if err := query.Order("id ASC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips every unread message not authored by readerID.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) LatestByConversations(ctx context.Context, conversationIDs []uint) (map[uint]models.Message, error) {
	result := make(map[uint]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	latest := r.db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")

	var messages []models.Message
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&messages).Error; err != nil {
		return nil, err
	}

	for _, message := range messages {
		result[message.ConversationID] = message
	}
	return result, nil
}

type conversationCount struct {
	ConversationID uint
	Total          int64
}

func (r *messageRepository) UnreadCounts(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int64, error) {
	if len(conversationIDs) == 0 {
		return map[uint]int64{}, nil
	}

	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", conversationIDs, readerID, false)
	return r.countGrouped(query)
}

func (r *messageRepository) CountByConversations(ctx context.Context, conversationIDs []uint) (map[uint]int64, error) {
	if len(conversationIDs) == 0 {
		return map[uint]int64{}, nil
	}

	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id IN ?", conversationIDs)
	return r.countGrouped(query)
}

func (r *messageRepository) countGrouped(query *gorm.DB) (map[uint]int64, error) {
	var rows []conversationCount
	if err := query.
		Select("conversation_id, COUNT(*) AS total").
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Total
	}
	return counts, nil
}
