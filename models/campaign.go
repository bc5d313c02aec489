package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign lifecycle statuses. The status field doubles as the
// single-writer lock for dispatch: only a draft campaign may be
// claimed for sending.
const (
	CampaignStatusDraft   = "draft"
	CampaignStatusSending = "sending"
	CampaignStatusSent    = "sent"
	CampaignStatusFailed  = "failed"
)

// Provider choices for a campaign.
const (
	ProviderBulk  = "bulk"
	ProviderRelay = "relay"
)

var campaignTransitions = map[string][]string{
	CampaignStatusDraft:   {CampaignStatusSending},
	CampaignStatusSending: {CampaignStatusSent, CampaignStatusFailed},
}

// ValidCampaignTransition reports whether the campaign lifecycle permits
// moving from one status to another.
func ValidCampaignTransition(from, to string) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Campaign represents one composed message plus its recipient set and
// send/engagement state.
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name       string `gorm:"not null" json:"name"`
	Subject    string `gorm:"not null" json:"subject"`
	Body       string `gorm:"type:text" json:"body"`
	FromName   string `json:"from_name"`
	FromEmail  string `json:"from_email"`
	Provider   string `gorm:"default:'bulk'" json:"provider"` // bulk, relay
	TemplateID *uint  `json:"template_id,omitempty"`

	Status string     `gorm:"default:'draft'" json:"status"` // draft, sending, sent, failed
	SentAt *time.Time `json:"sent_at"`

	// Statistics (denormalized for performance). Open/click/bounce count
	// unique recipients, not raw events.
	TotalRecipients int `gorm:"default:0" json:"total_recipients"`
	SentCount       int `gorm:"default:0" json:"sent_count"`
	FailedCount     int `gorm:"default:0" json:"failed_count"`
	OpenCount       int `gorm:"default:0" json:"open_count"`
	ClickCount      int `gorm:"default:0" json:"click_count"`
	BounceCount     int `gorm:"default:0" json:"bounce_count"`

	// Relations
	Records []EmailRecord `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
}

// EmailRecord is the per-recipient delivery row for one campaign.
// Exactly one record exists per (campaign, recipient email).
type EmailRecord struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;uniqueIndex:idx_email_records_campaign_email" json:"campaign_id"`
	Email      string `gorm:"not null;uniqueIndex:idx_email_records_campaign_email" json:"email"`
	Name       string `json:"name"`

	// Send outcome
	Delivered bool       `gorm:"default:false" json:"delivered"`
	MessageID string     `json:"message_id"`
	SendError string     `json:"send_error,omitempty"`
	SentAt    *time.Time `json:"sent_at"`

	// Engagement. The boolean and timestamp reflect the first occurrence
	// only; the counters keep counting repeats.
	Opened    bool       `gorm:"default:false" json:"opened"`
	OpenedAt  *time.Time `json:"opened_at"`
	OpenCount int        `gorm:"default:0" json:"open_count"`

	Clicked    bool       `gorm:"default:false" json:"clicked"`
	ClickedAt  *time.Time `json:"clicked_at"`
	ClickCount int        `gorm:"default:0" json:"click_count"`

	Bounced      bool       `gorm:"default:false" json:"bounced"`
	BouncedAt    *time.Time `json:"bounced_at"`
	BounceReason string     `json:"bounce_reason,omitempty"`
}
