package models

import (
	"time"

	"gorm.io/gorm"
)

// RelayAccount holds the personal mailbox relay credentials for a user.
// One account per user; the secret is AES-encrypted in the application
// layer before it reaches the database.
type RelayAccount struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	Address  string `gorm:"not null" json:"address"`
	FromName string `json:"from_name"`
	Secret   string `gorm:"not null" json:"-"` // Encrypted in application layer

	// ========= SMTP Configuration =========
	SMTPHost string `gorm:"default:'smtp.gmail.com'" json:"smtp_host"`
	SMTPPort int    `gorm:"default:587" json:"smtp_port"`

	// ========= IMAP Configuration (bounce polling) =========
	IMAPHost    string `gorm:"default:'imap.gmail.com'" json:"imap_host"`
	IMAPPort    int    `gorm:"default:993" json:"imap_port"`
	IMAPMailbox string `gorm:"default:'INBOX'" json:"imap_mailbox"`

	// ========= Usage Metrics =========
	// DailyLimit caps recipients per send call; SentToday is reported to
	// the owner but never enforced across calls.
	DailyLimit int `gorm:"default:500" json:"daily_limit"`
	SentToday  int `gorm:"default:0" json:"sent_today"`
	TotalSent  int `gorm:"default:0" json:"total_sent"`

	LastError *string    `json:"last_error"`
	LastUsed  *time.Time `json:"last_used"`
}

// Sanitize clears secret material before the account is returned to a client.
func (r *RelayAccount) Sanitize() {
	r.Secret = ""
}
