package models

import (
	"gorm.io/gorm"
)

// Template represents a reusable email body for campaigns
type Template struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	Category    string `json:"category"`
}
