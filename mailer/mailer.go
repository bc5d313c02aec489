package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"mailblast/config"
	"mailblast/models"
)

// ErrAuth marks a provider authentication failure. Credentials are
// invariant across a batch, so the dispatcher treats this as fatal for
// every remaining recipient.
var ErrAuth = errors.New("provider authentication failed")

// Message is a fully rendered, per-recipient email. Adapters perform no
// templating; personalization and tracking instrumentation happen before
// the message reaches them.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
}

// Mailer is the single capability both providers implement: one send
// attempt for one recipient.
type Mailer interface {
	// Send transmits the message and returns the provider message id.
	Send(ctx context.Context, msg *Message) (string, error)

	// BatchLimit returns the maximum recipients accepted per dispatch
	// call. Zero means unlimited.
	BatchLimit() int

	// Name identifies the adapter in logs and outcomes.
	Name() string
}

// New builds the adapter for a provider choice. This is the only place
// that branches on the provider tag; everything downstream works against
// the Mailer interface.
func New(db *gorm.DB, provider string, userID uint) (Mailer, error) {
	switch provider {
	case models.ProviderBulk:
		if config.AppConfig.ResendAPIKey == "" {
			return NewDryRunMailer(), nil
		}
		return NewBulkMailer(config.AppConfig.ResendAPIKey), nil
	case models.ProviderRelay:
		return NewRelayMailer(db, userID, config.AppConfig.RelayDailyLimit)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// formatAddress renders "Name <addr>" or the bare address.
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

// isAuthError classifies provider errors that stem from bad or missing
// credentials rather than a single message.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"401", "403", "unauthorized", "invalid api key",
		"535", "534", "authentication", "username and password not accepted",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
