package models

import (
	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name    *string `json:"name,omitempty"`
	Company *string `json:"company,omitempty"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations
	Campaigns    []Campaign    `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
	Subscribers  []Subscriber  `gorm:"foreignKey:UserID" json:"subscribers,omitempty"`
	Domains      []Domain      `gorm:"foreignKey:UserID" json:"domains,omitempty"`
	RelayAccount *RelayAccount `gorm:"foreignKey:UserID" json:"relay_account,omitempty"`
}
