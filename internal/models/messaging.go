package models

import "time"

// Conversation pairs one employer with one student. The pair is unique.
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EmployerID    uint       `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:1" json:"employer_id"`
	StudentID     uint       `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"student_id"`
	InternshipID  *uint      `gorm:"index" json:"internship_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Messages      []Message  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// HasParticipant reports whether the user is the employer or the student of the conversation.
func (c Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.EmployerID == userID || c.StudentID == userID)
}

// Counterpart returns the other participant, or zero when userID is not a participant.
func (c Conversation) Counterpart(userID uint) uint {
	switch userID {
	case c.EmployerID:
		return c.StudentID
	case c.StudentID:
		return c.EmployerID
	default:
		return 0
	}
}

// Message is a single chat entry. Only IsRead changes after creation.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_message_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"index:idx_message_conversation_created,priority:2" json:"created_at"`
}
