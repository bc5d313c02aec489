package mailer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// DryRunMailer simulates successful delivery without contacting any
// external service. It is selected when the bulk provider has no
// credentials, and by tests that need deterministic outcomes.
type DryRunMailer struct{}

func NewDryRunMailer() *DryRunMailer { return &DryRunMailer{} }

func (m *DryRunMailer) Name() string { return "dry-run" }

func (m *DryRunMailer) BatchLimit() int { return 0 }

// Send returns a message id derived from the recipient and subject, so
// the same input always simulates the same delivery.
func (m *DryRunMailer) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(msg.To + "|" + msg.Subject))
	return "dryrun-" + hex.EncodeToString(sum[:12]), nil
}
