package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/models"
)

// ConversationFilter controls paging for moderation listings.
type ConversationFilter struct {
	Page     int
	PageSize int
}

// ConversationRepository persists employer/student conversations.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, conversation *models.Conversation) (bool, error)
	GetByID(ctx context.Context, id uint) (models.Conversation, error)
	FindByPair(ctx context.Context, employerID, studentID uint) (models.Conversation, error)
	ListByParticipant(ctx context.Context, userID uint, role string) ([]models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate loads the conversation for the employer/student pair, inserting it when missing.
// The unique pair index is authoritative: a concurrent insert that loses the race re-reads the
// winner's row. The returned flag reports whether this call created the row.
func (r *conversationRepository) GetOrCreate(ctx context.Context, conversation *models.Conversation) (bool, error) {
	existing, err := r.FindByPair(ctx, conversation.EmployerID, conversation.StudentID)
	if err == nil {
		*conversation = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		if !IsUniqueViolation(err) {
			return false, err
		}
		existing, findErr := r.FindByPair(ctx, conversation.EmployerID, conversation.StudentID)
		if findErr != nil {
			return false, findErr
		}
		*conversation = existing
		return false, nil
	}

	return true, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) FindByPair(ctx context.Context, employerID, studentID uint) (models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("employer_id = ? AND student_id = ?", employerID, studentID).
		First(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) ListByParticipant(ctx context.Context, userID uint, role string) ([]models.Conversation, error) {
	column := "student_id"
	if role == models.RoleEmployer {
		column = "employer_id"
	}

	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepository) List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Conversation{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

// Delete removes the conversation and all of its messages in one transaction.
func (r *conversationRepository) Delete(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Conversation{}, id)
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// IsUniqueViolation reports whether err stems from a unique index conflict.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "unique failed")
}
