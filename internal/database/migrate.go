package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/internhub-api/internal/models"
)

// Migrate creates or updates the tables owned by the messaging service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
