package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

// BounceWorker polls each relay mailbox over IMAP for delivery status
// notifications and folds them back into the delivery records.
type BounceWorker struct {
	db       *gorm.DB
	logger   *log.Logger
	interval time.Duration
}

func NewBounceWorker(db *gorm.DB, logger *log.Logger) *BounceWorker {
	return &BounceWorker{
		db:       db,
		logger:   logger,
		interval: 5 * time.Minute,
	}
}

func (bw *BounceWorker) Start(ctx context.Context) {
	bw.logger.Println("Starting bounce worker...")
	ticker := time.NewTicker(bw.interval)

	for {
		select {
		case <-ticker.C:
			bw.pollAllAccounts()
		case <-ctx.Done():
			bw.logger.Println("Stopping bounce worker...")
			ticker.Stop()
			return
		}
	}
}

func (bw *BounceWorker) pollAllAccounts() {
	var accounts []models.RelayAccount
	if err := bw.db.Where("imap_host IS NOT NULL AND imap_host != ''").Find(&accounts).Error; err != nil {
		bw.logger.Printf("Failed to fetch relay accounts: %v", err)
		return
	}

	for _, account := range accounts {
		if err := bw.pollAccount(&account); err != nil {
			bw.logger.Printf("Bounce poll failed for account %d: %v", account.ID, err)
		}
	}
}

func (bw *BounceWorker) pollAccount(account *models.RelayAccount) error {
	password, err := utils.Decrypt(account.Secret)
	if err != nil {
		return fmt.Errorf("failed to decrypt relay secret: %v", err)
	}

	imapAddr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	imapClient, err := client.DialTLS(imapAddr, &tls.Config{
		ServerName: account.IMAPHost,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(account.Address, password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	mailbox := "INBOX"
	if account.IMAPMailbox != "" {
		mailbox = account.IMAPMailbox
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	criteria.Header.Set("From", "mailer-daemon")
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %v", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	for msg := range messages {
		if err := bw.processBounceMessage(msg); err != nil {
			bw.logger.Printf("Failed to process bounce %d: %v", msg.SeqNum, err)
			continue
		}
	}

	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %v", err)
	}

	return nil
}

var failedRecipientRe = regexp.MustCompile(`(?i)(?:Final-Recipient:\s*rfc822;\s*|X-Failed-Recipients:\s*)([^\s<>;,]+@[^\s<>;,]+)`)

// processBounceMessage extracts the failed recipient address and the
// diagnostic line from a DSN and marks the matching record bounced.
func (bw *BounceWorker) processBounceMessage(msg *imap.Message) error {
	if msg.Body == nil {
		return fmt.Errorf("message body not found")
	}

	section := imap.BodySectionName{}
	literal, ok := msg.Body[&section]
	if !ok {
		return fmt.Errorf("message body not found")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return fmt.Errorf("failed to create message reader: %v", err)
	}

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed to read next part: %v", err)
		}

		b, err := io.ReadAll(p.Body)
		if err != nil {
			return fmt.Errorf("failed to read body: %v", err)
		}
		body.Write(b)
		body.WriteString("\n")
	}

	match := failedRecipientRe.FindStringSubmatch(body.String())
	if match == nil {
		// Not a DSN we can attribute; skip silently
		return nil
	}
	recipient := strings.ToLower(match[1])

	reason := extractDiagnostic(body.String())
	return bw.markBounced(recipient, reason)
}

// extractDiagnostic pulls the SMTP diagnostic line out of a DSN body.
func extractDiagnostic(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "diagnostic-code:") {
			return strings.TrimSpace(trimmed[len("diagnostic-code:"):])
		}
	}
	return "Delivery status notification"
}

// markBounced flips the most recent unbounced record for the address.
// The campaign aggregate counts unique bounced recipients, so it only
// moves when the conditional update wins.
func (bw *BounceWorker) markBounced(recipient, reason string) error {
	var record models.EmailRecord
	err := bw.db.Where("email = ? AND bounced = ?", recipient, false).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		// No record to attribute the bounce to
		return nil
	}

	now := time.Now()
	res := bw.db.Model(&models.EmailRecord{}).
		Where("id = ? AND bounced = ?", record.ID, false).
		Updates(map[string]interface{}{
			"bounced":       true,
			"bounced_at":    now,
			"bounce_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 && record.CampaignID != 0 {
		bw.db.Model(&models.Campaign{}).
			Where("id = ?", record.CampaignID).
			Update("bounce_count", gorm.Expr("bounce_count + ?", 1))
	}

	utils.LogEvent("bounce_recorded", map[string]interface{}{
		"campaign_id": record.CampaignID,
		"email":       recipient,
	})
	return nil
}
