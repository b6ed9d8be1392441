package models

import "time"

// Roles recognised by the marketplace.
const (
	RoleStudent  = "student"
	RoleEmployer = "employer"
	RoleAdmin    = "admin"
)

// User represents a marketplace account. Accounts are managed by the identity service; the
// messaging service only reads them, apart from the token-guarded seeding endpoint.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Phone        string    `gorm:"size:32" json:"phone"`
	Role         string    `gorm:"size:16;index;not null" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false" json:"is_verified"`
	IsSuspended  bool      `gorm:"not null;default:false" json:"is_suspended"`
	IsSuperAdmin bool      `gorm:"not null;default:false" json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
