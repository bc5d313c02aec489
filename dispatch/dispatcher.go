package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"mailblast/config"
	"mailblast/mailer"
	"mailblast/models"
	"mailblast/utils"
)

// Dispatch error taxonomy. Precondition errors leave the campaign
// untouched; provider-fatal errors mark it failed.
var (
	ErrNoRecipients     = errors.New("no eligible recipients")
	ErrCapacityExceeded = errors.New("recipient count exceeds provider capacity")
	ErrAlreadySending   = errors.New("campaign is not in draft")
)

// Outcome is the result of one send attempt. Never persisted standalone;
// it is folded into the recipient's EmailRecord and the campaign
// aggregate.
type Outcome struct {
	Email     string `json:"email"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result aggregates a whole dispatch.
type Result struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// QuickMessage is an ad hoc message for quick-send, with no backing
// campaign row.
type QuickMessage struct {
	Subject   string
	Body      string
	FromEmail string
	FromName  string
}

// Dispatcher fans one campaign out to its recipients through a provider
// adapter, one attempt per recipient, and folds the outcomes into the
// campaign aggregate.
type Dispatcher struct {
	db     *gorm.DB
	logger *log.Logger

	baseURL     string
	sendTimeout time.Duration

	newMailer  func(provider string, userID uint) (mailer.Mailer, error)
	newLimiter func(provider string) Limiter
	now        func() time.Time
}

func NewDispatcher(db *gorm.DB, logger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		db:          db,
		logger:      logger,
		baseURL:     config.AppConfig.AppURL,
		sendTimeout: 30 * time.Second,
		now:         time.Now,
	}
	d.newMailer = func(provider string, userID uint) (mailer.Mailer, error) {
		return mailer.New(db, provider, userID)
	}
	d.newLimiter = func(provider string) Limiter {
		if provider == models.ProviderRelay {
			return NewIntervalLimiter(config.AppConfig.RelaySendInterval)
		}
		return NoLimit{}
	}
	return d
}

// Run executes a full campaign dispatch: preconditions, atomic claim,
// per-recipient sends, delivery records, aggregate counters, and the
// final status transition.
func (d *Dispatcher) Run(ctx context.Context, campaign *models.Campaign, recipients []Recipient) (*Result, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	m, err := d.newMailer(campaign.Provider, campaign.UserID)
	if err != nil {
		// Provider-configuration failure before any attempt: the
		// campaign still moves through sending to failed so the owner
		// sees the outcome.
		if claimErr := d.claim(campaign, len(recipients)); claimErr == nil {
			d.finalize(campaign, &Result{}, models.CampaignStatusFailed)
		}
		return nil, err
	}

	// Capacity is checked before any message goes out: fail fast, not
	// partial.
	if limit := m.BatchLimit(); limit > 0 && len(recipients) > limit {
		return nil, fmt.Errorf("%w: %d recipients, cap %d", ErrCapacityExceeded, len(recipients), limit)
	}

	if err := d.claim(campaign, len(recipients)); err != nil {
		return nil, err
	}

	utils.LogEvent("campaign_dispatch_started", map[string]interface{}{
		"campaign_id": campaign.ID,
		"provider":    m.Name(),
		"recipients":  len(recipients),
	})

	limiter := d.newLimiter(campaign.Provider)
	tc := TrackingContext{BaseURL: d.baseURL, CampaignID: campaign.ID}
	result := &Result{}

	for _, r := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			d.finalize(campaign, result, models.CampaignStatusFailed)
			return result, fmt.Errorf("dispatch canceled: %w", err)
		}

		msg := &mailer.Message{
			From:     campaign.FromEmail,
			FromName: campaign.FromName,
			To:       r.Email,
			Subject:  RenderSubject(campaign.Subject, r),
			HTML:     RenderBody(campaign.Body, r, tc),
		}

		id, sendErr := d.send(ctx, m, msg)
		d.recordAttempt(campaign.ID, r, id, sendErr, result)

		// Credentials are invariant across a batch: an auth failure for
		// one recipient dooms every remaining one.
		if sendErr != nil && errors.Is(sendErr, mailer.ErrAuth) {
			d.finalize(campaign, result, models.CampaignStatusFailed)
			return result, sendErr
		}
	}

	d.finalize(campaign, result, models.CampaignStatusSent)
	return result, nil
}

// QuickSend dispatches an ad hoc message to an ad hoc recipient list.
// Same per-recipient semantics as Run, but no campaign row is claimed,
// no delivery records are created, and nothing is instrumented for
// tracking.
func (d *Dispatcher) QuickSend(ctx context.Context, userID uint, provider string, msg QuickMessage, recipients []Recipient) (*Result, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	m, err := d.newMailer(provider, userID)
	if err != nil {
		return nil, err
	}

	if limit := m.BatchLimit(); limit > 0 && len(recipients) > limit {
		return nil, fmt.Errorf("%w: %d recipients, cap %d", ErrCapacityExceeded, len(recipients), limit)
	}

	limiter := d.newLimiter(provider)
	result := &Result{}

	for _, r := range recipients {
		if err := limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("quick-send canceled: %w", err)
		}

		out := &mailer.Message{
			From:     msg.FromEmail,
			FromName: msg.FromName,
			To:       r.Email,
			Subject:  RenderSubject(msg.Subject, r),
			HTML:     RenderBody(msg.Body, r, TrackingContext{}),
		}

		id, sendErr := d.send(ctx, m, out)
		if sendErr != nil {
			result.Failed++
			result.Outcomes = append(result.Outcomes, Outcome{Email: r.Email, Error: sendErr.Error()})
			if errors.Is(sendErr, mailer.ErrAuth) {
				return result, sendErr
			}
			continue
		}
		result.Sent++
		result.Outcomes = append(result.Outcomes, Outcome{Email: r.Email, Success: true, MessageID: id})
	}

	return result, nil
}

// claim atomically transitions the campaign from draft to sending. The
// conditional update is the single-writer lock: a concurrent second
// claim for the same campaign id matches zero rows.
func (d *Dispatcher) claim(campaign *models.Campaign, totalRecipients int) error {
	res := d.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusDraft).
		Updates(map[string]interface{}{
			"status":           models.CampaignStatusSending,
			"total_recipients": totalRecipients,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadySending
	}
	campaign.Status = models.CampaignStatusSending
	campaign.TotalRecipients = totalRecipients
	return nil
}

// send runs one attempt under the per-send timeout so a hung provider
// call fails that recipient instead of stalling the whole batch.
func (d *Dispatcher) send(ctx context.Context, m mailer.Mailer, msg *mailer.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	type sendResult struct {
		id  string
		err error
	}
	done := make(chan sendResult, 1)
	go func() {
		id, err := m.Send(ctx, msg)
		done <- sendResult{id, err}
	}()

	select {
	case r := <-done:
		return r.id, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("send to %s timed out: %w", msg.To, ctx.Err())
	}
}

// recordAttempt creates the recipient's delivery record, bumps the
// campaign aggregate, and folds the outcome into the running result.
// Exactly one record per recipient. Counters move per attempt so a
// concurrent read during dispatch (stats, dashboard, the progress
// stream) always matches the records written so far.
func (d *Dispatcher) recordAttempt(campaignID uint, r Recipient, messageID string, sendErr error, result *Result) {
	now := d.now()
	record := models.EmailRecord{
		CampaignID: campaignID,
		Email:      r.Email,
		Name:       r.Name,
		SentAt:     &now,
	}

	counter := "sent_count"
	if sendErr != nil {
		record.SendError = sendErr.Error()
		counter = "failed_count"
		result.Failed++
		result.Outcomes = append(result.Outcomes, Outcome{Email: r.Email, Error: sendErr.Error()})
	} else {
		record.Delivered = true
		record.MessageID = messageID
		result.Sent++
		result.Outcomes = append(result.Outcomes, Outcome{Email: r.Email, Success: true, MessageID: messageID})
	}

	if err := d.db.Create(&record).Error; err != nil {
		d.logger.Printf("Failed to create delivery record for %s: %v", r.Email, err)
		return
	}

	if err := d.db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Update(counter, gorm.Expr(counter+" + ?", 1)).Error; err != nil {
		d.logger.Printf("Failed to update %s for campaign %d: %v", counter, campaignID, err)
	}
}

// finalize writes the terminal status. The counters have already been
// accumulated per attempt by recordAttempt.
func (d *Dispatcher) finalize(campaign *models.Campaign, result *Result, status string) {
	if !models.ValidCampaignTransition(campaign.Status, status) {
		d.logger.Printf("Refusing invalid transition %s -> %s for campaign %d", campaign.Status, status, campaign.ID)
		return
	}

	now := d.now()
	updates := map[string]interface{}{
		"status":  status,
		"sent_at": &now,
	}
	if err := d.db.Model(&models.Campaign{}).Where("id = ?", campaign.ID).Updates(updates).Error; err != nil {
		d.logger.Printf("Failed to finalize campaign %d: %v", campaign.ID, err)
		return
	}
	campaign.Status = status
	campaign.SentCount = result.Sent
	campaign.FailedCount = result.Failed
	campaign.SentAt = &now
}
