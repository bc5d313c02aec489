package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

// RelayMailer sends through the owner's personal mailbox relay over
// SMTP. Stateful per owner: credentials are fetched by owner id, and
// every successful send is counted against the account's daily usage.
type RelayMailer struct {
	db      *gorm.DB
	account *models.RelayAccount
	dialer  *gomail.Dialer
}

// NewRelayMailer loads and decrypts the owner's relay credentials.
// Missing credentials are an authentication failure: the batch cannot
// be attempted at all.
func NewRelayMailer(db *gorm.DB, userID uint, defaultLimit int) (*RelayMailer, error) {
	var account models.RelayAccount
	if err := db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, fmt.Errorf("%w: no relay credentials for user %d", ErrAuth, userID)
	}

	secret, err := utils.Decrypt(account.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt relay secret: %v", ErrAuth, err)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: relay secret is empty for user %d", ErrAuth, userID)
	}

	if account.DailyLimit <= 0 {
		account.DailyLimit = defaultLimit
	}

	dialer := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.Address, secret)
	dialer.TLSConfig = &tls.Config{ServerName: account.SMTPHost}

	return &RelayMailer{
		db:      db,
		account: &account,
		dialer:  dialer,
	}, nil
}

func (m *RelayMailer) Name() string { return "relay" }

// BatchLimit is the owner-visible daily cap, enforced per dispatch call.
func (m *RelayMailer) BatchLimit() int { return m.account.DailyLimit }

func (m *RelayMailer) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The relay always transmits from its own mailbox address; a foreign
	// from header would be rewritten or rejected by the relay anyway.
	fromName := msg.FromName
	if fromName == "" {
		fromName = m.account.FromName
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), relayDomain(m.account.Address))

	gm := gomail.NewMessage()
	gm.SetHeader("From", formatAddress(fromName, m.account.Address))
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-Id", messageID)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		if isAuthError(err) {
			m.recordError(err)
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("relay send to %s failed: %w", msg.To, err)
	}

	m.recordUsage()
	return messageID, nil
}

func (m *RelayMailer) recordUsage() {
	m.db.Model(&models.RelayAccount{}).
		Where("id = ?", m.account.ID).
		Updates(map[string]interface{}{
			"sent_today": gorm.Expr("sent_today + ?", 1),
			"total_sent": gorm.Expr("total_sent + ?", 1),
			"last_used":  time.Now(),
		})
}

func (m *RelayMailer) recordError(err error) {
	msg := err.Error()
	m.db.Model(&models.RelayAccount{}).
		Where("id = ?", m.account.ID).
		Update("last_error", &msg)
}

func relayDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return "localhost"
}
