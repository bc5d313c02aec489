package models

import (
	"gorm.io/gorm"
)

// Subscriber represents an audience member owned by a user. Only active
// subscribers are eligible for campaign dispatch.
type Subscriber struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex:idx_subscribers_user_email" json:"user_id"`

	Email    string `gorm:"not null;uniqueIndex:idx_subscribers_user_email" json:"email"`
	Name     string `json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
