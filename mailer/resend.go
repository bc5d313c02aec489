package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// BulkMailer sends through the Resend transactional API. Stateless per
// call; the provider handles its own throughput, so no client-side
// pacing is applied.
type BulkMailer struct {
	client *resend.Client
}

func NewBulkMailer(apiKey string) *BulkMailer {
	return &BulkMailer{
		client: resend.NewClient(apiKey),
	}
}

func (m *BulkMailer) Name() string { return "bulk" }

// BatchLimit is zero: the bulk API accepts any batch size.
func (m *BulkMailer) BatchLimit() int { return 0 }

func (m *BulkMailer) Send(ctx context.Context, msg *Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    formatAddress(msg.FromName, msg.From),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	sent, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		if isAuthError(err) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("bulk send to %s failed: %w", msg.To, err)
	}

	return sent.Id, nil
}
