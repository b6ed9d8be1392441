package dto

import (
	"time"

	"github.com/noah-isme/internhub-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// ConversationCreateRequest opens (or fetches) the conversation between an employer and a student.
type ConversationCreateRequest struct {
	EmployerID   uint  `json:"employerId" validate:"required"`
	StudentID    uint  `json:"studentId" validate:"required,nefield=EmployerID"`
	InternshipID *uint `json:"internshipId" validate:"omitempty,min=1"`
}

// ConversationResponse is the serialized representation of a conversation.
type ConversationResponse struct {
	ID            uint       `json:"id"`
	EmployerID    uint       `json:"employerId"`
	StudentID     uint       `json:"studentId"`
	InternshipID  *uint      `json:"internshipId,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ParticipantResponse exposes the public identity of a conversation participant.
type ParticipantResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ConversationSummaryResponse annotates a conversation from one participant's point of view.
type ConversationSummaryResponse struct {
	ConversationResponse
	Counterpart ParticipantResponse `json:"counterpart"`
	LastMessage *MessageResponse    `json:"lastMessage"`
	UnreadCount int64               `json:"unreadCount"`
}

// MessageCreateRequest is the payload to post a message into a conversation.
type MessageCreateRequest struct {
	SenderID uint   `json:"senderId" validate:"required"`
	Content  string `json:"content" validate:"required,max=4000"`
}

// MessageListQuery pages through a conversation in ascending order.
type MessageListQuery struct {
	AfterID uint `query:"after_id"`
	Limit   int  `query:"limit" validate:"omitempty,min=1,max=200"`
}

// MarkReadRequest identifies the reader acknowledging a conversation.
type MarkReadRequest struct {
	UserID uint `json:"userId" validate:"required"`
}

// MessageResponse is the serialized representation of a message.
type MessageResponse struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	SenderID       uint      `json:"senderId"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessagePage is a slice of messages plus the cursor for the next page, if any.
type MessagePage struct {
	Items      []MessageResponse `json:"items"`
	NextCursor *uint             `json:"nextCursor,omitempty"`
}

// MarkReadResponse reports how many messages flipped to read.
type MarkReadResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

// AdminConversationListRequest defines paging for the moderation list.
type AdminConversationListRequest struct {
	Page     int
	PageSize int
}

// AdminConversationResponse describes a conversation for moderators.
type AdminConversationResponse struct {
	ID            uint                `json:"id"`
	InternshipID  *uint               `json:"internshipId,omitempty"`
	Employer      ParticipantResponse `json:"employer"`
	Student       ParticipantResponse `json:"student"`
	MessageCount  int64               `json:"messageCount"`
	LastMessageAt *time.Time          `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// AdminConversationListResponse wraps moderation list results with pagination.
type AdminConversationListResponse struct {
	Items      []AdminConversationResponse `json:"items"`
	Pagination PaginationMeta              `json:"pagination"`
}

// AdminConversationDetailResponse is the full transcript of a conversation.
type AdminConversationDetailResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
	Employer     ParticipantResponse  `json:"employer"`
	Student      ParticipantResponse  `json:"student"`
}

// NewConversationResponse converts a model into a DTO.
func NewConversationResponse(model models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:            model.ID,
		EmployerID:    model.EmployerID,
		StudentID:     model.StudentID,
		InternshipID:  model.InternshipID,
		LastMessageAt: model.LastMessageAt,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewParticipantResponse converts a user into its public participant view.
func NewParticipantResponse(user models.User) ParticipantResponse {
	return ParticipantResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(model models.Message) MessageResponse {
	return MessageResponse{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		SenderID:       model.SenderID,
		Content:        model.Content,
		IsRead:         model.IsRead,
		CreatedAt:      model.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(items []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewMessageResponse(item))
	}
	return out
}

// SeedUser describes one account loaded through the seeding endpoint.
type SeedUser struct {
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Role        string `json:"role" validate:"required,oneof=student employer admin"`
	IsVerified  bool   `json:"isVerified"`
	IsSuspended bool   `json:"isSuspended"`
}

// SeedUsersRequest wraps a batch of accounts to upsert.
type SeedUsersRequest struct {
	Items []SeedUser `json:"items" validate:"required,min=1,max=500,dive"`
}
