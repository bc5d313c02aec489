package models

import (
	"time"

	"gorm.io/gorm"
)

// Domain represents a sending domain owned by a user. A campaign's from
// address must belong to a verified domain before the bulk provider will
// accept it.
type Domain struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex:idx_domains_user_name" json:"user_id"`

	Name        string     `gorm:"not null;uniqueIndex:idx_domains_user_name" json:"name"`
	VerifyToken string     `gorm:"not null" json:"verify_token"`
	Verified    bool       `gorm:"default:false" json:"verified"`
	VerifiedAt  *time.Time `json:"verified_at"`

	// DNS records the owner is asked to publish
	SPFRecord   string `json:"spf_record"`
	DKIMRecord  string `json:"dkim_record"`
	DMARCRecord string `json:"dmarc_record"`
}
