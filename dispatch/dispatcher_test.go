package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mailblast/config"
	"mailblast/mailer"
	"mailblast/models"
)

// fakeMailer lets tests script per-recipient outcomes.
type fakeMailer struct {
	limit int
	fail  map[string]error
	sent  []string
}

func (f *fakeMailer) Name() string    { return "fake" }
func (f *fakeMailer) BatchLimit() int { return f.limit }

func (f *fakeMailer) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	if err, ok := f.fail[msg.To]; ok {
		return "", err
	}
	f.sent = append(f.sent, msg.To)
	return "msg-" + msg.To, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Named shared-cache DSN so every pooled connection sees the same
	// in-memory database, isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func newTestDispatcher(t *testing.T, db *gorm.DB, fake *fakeMailer) *Dispatcher {
	t.Helper()
	d := NewDispatcher(db, log.New(io.Discard, "", 0))
	d.baseURL = "http://track.test"
	d.newMailer = func(provider string, userID uint) (mailer.Mailer, error) {
		return fake, nil
	}
	d.newLimiter = func(provider string) Limiter { return NoLimit{} }
	return d
}

func newDraftCampaign(t *testing.T, db *gorm.DB) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		UserID:    1,
		Name:      "launch",
		Subject:   "Hello {{name}}",
		Body:      "<p>Hi {{name}}</p>",
		FromEmail: "news@acme.test",
		Provider:  models.ProviderBulk,
		Status:    models.CampaignStatusDraft,
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

func TestRunPartialFailure(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeMailer{fail: map[string]error{
		"bad@test.com": errors.New("mailbox unavailable"),
	}}
	d := newTestDispatcher(t, db, fake)
	campaign := newDraftCampaign(t, db)

	recipients := []Recipient{
		{Email: "ok@test.com", Name: "Ok"},
		{Email: "bad@test.com"},
	}

	result, err := d.Run(context.Background(), campaign, recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Outcomes, 2)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusSent, reloaded.Status)
	assert.Equal(t, 2, reloaded.TotalRecipients)
	assert.Equal(t, 1, reloaded.SentCount)
	assert.Equal(t, 1, reloaded.FailedCount)
	assert.NotNil(t, reloaded.SentAt)

	var records []models.EmailRecord
	require.NoError(t, db.Where("campaign_id = ?", campaign.ID).Order("email").Find(&records).Error)
	require.Len(t, records, 2)
	assert.False(t, records[0].Delivered)
	assert.Contains(t, records[0].SendError, "mailbox unavailable")
	assert.True(t, records[1].Delivered)
	assert.Equal(t, "msg-ok@test.com", records[1].MessageID)
}

func TestRunNoRecipients(t *testing.T) {
	db := newTestDB(t)
	d := newTestDispatcher(t, db, &fakeMailer{})
	campaign := newDraftCampaign(t, db)

	_, err := d.Run(context.Background(), campaign, nil)
	assert.ErrorIs(t, err, ErrNoRecipients)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)
}

func TestRunCapacityExceeded(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeMailer{limit: 2}
	d := newTestDispatcher(t, db, fake)
	campaign := newDraftCampaign(t, db)

	recipients := []Recipient{
		{Email: "a@test.com"},
		{Email: "b@test.com"},
		{Email: "c@test.com"},
	}

	_, err := d.Run(context.Background(), campaign, recipients)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Empty(t, fake.sent)

	// Precondition failure leaves the campaign untouched
	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)

	var count int64
	db.Model(&models.EmailRecord{}).Where("campaign_id = ?", campaign.ID).Count(&count)
	assert.Zero(t, count)
}

func TestRunAuthFailureAbortsBatch(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeMailer{fail: map[string]error{
		"first@test.com": fmt.Errorf("%w: 401 unauthorized", mailer.ErrAuth),
	}}
	d := newTestDispatcher(t, db, fake)
	campaign := newDraftCampaign(t, db)

	recipients := []Recipient{
		{Email: "first@test.com"},
		{Email: "second@test.com"},
		{Email: "third@test.com"},
	}

	result, err := d.Run(context.Background(), campaign, recipients)
	assert.ErrorIs(t, err, mailer.ErrAuth)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, fake.sent)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusFailed, reloaded.Status)

	// Only the attempted recipient gets a record
	var count int64
	db.Model(&models.EmailRecord{}).Where("campaign_id = ?", campaign.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRunClaimConflict(t *testing.T) {
	db := newTestDB(t)
	d := newTestDispatcher(t, db, &fakeMailer{})
	campaign := newDraftCampaign(t, db)

	require.NoError(t, db.Model(campaign).Update("status", models.CampaignStatusSending).Error)

	_, err := d.Run(context.Background(), campaign, []Recipient{{Email: "a@test.com"}})
	assert.ErrorIs(t, err, ErrAlreadySending)
}

func TestRunMailerConstructionFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	d := newTestDispatcher(t, db, &fakeMailer{})
	d.newMailer = func(provider string, userID uint) (mailer.Mailer, error) {
		return nil, fmt.Errorf("%w: no relay account", mailer.ErrAuth)
	}
	campaign := newDraftCampaign(t, db)

	_, err := d.Run(context.Background(), campaign, []Recipient{{Email: "a@test.com"}})
	assert.ErrorIs(t, err, mailer.ErrAuth)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusFailed, reloaded.Status)
}

func TestRunCanceledContext(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeMailer{}
	d := newTestDispatcher(t, db, fake)
	campaign := newDraftCampaign(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Run(ctx, campaign, []Recipient{{Email: "a@test.com"}})
	require.Error(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Empty(t, fake.sent)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusFailed, reloaded.Status)
}

// hookMailer runs a callback before every successful send so tests can
// observe database state mid-dispatch.
type hookMailer struct {
	onSend func(to string)
}

func (h *hookMailer) Name() string    { return "hook" }
func (h *hookMailer) BatchLimit() int { return 0 }

func (h *hookMailer) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	if h.onSend != nil {
		h.onSend(msg.To)
	}
	return "msg-" + msg.To, nil
}

func TestRunCountersVisibleMidDispatch(t *testing.T) {
	db := newTestDB(t)
	campaign := newDraftCampaign(t, db)

	// While the second recipient is being sent, the first attempt must
	// already be reflected in both the records and the aggregate.
	hook := &hookMailer{onSend: func(to string) {
		if to != "second@test.com" {
			return
		}
		var mid models.Campaign
		require.NoError(t, db.First(&mid, campaign.ID).Error)
		assert.Equal(t, models.CampaignStatusSending, mid.Status)
		assert.Equal(t, 1, mid.SentCount)

		var records int64
		db.Model(&models.EmailRecord{}).
			Where("campaign_id = ? AND delivered = ?", campaign.ID, true).
			Count(&records)
		assert.Equal(t, int64(1), records)
	}}

	d := NewDispatcher(db, log.New(io.Discard, "", 0))
	d.baseURL = "http://track.test"
	d.newMailer = func(provider string, userID uint) (mailer.Mailer, error) { return hook, nil }
	d.newLimiter = func(provider string) Limiter { return NoLimit{} }

	recipients := []Recipient{
		{Email: "first@test.com"},
		{Email: "second@test.com"},
	}

	result, err := d.Run(context.Background(), campaign, recipients)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, 2, reloaded.SentCount)
	assert.Equal(t, 0, reloaded.FailedCount)
}

func TestQuickSendCreatesNoRecords(t *testing.T) {
	db := newTestDB(t)
	fake := &fakeMailer{}
	d := newTestDispatcher(t, db, fake)

	msg := QuickMessage{
		Subject:   "Hi {{name}}",
		Body:      "<p>Hello</p>",
		FromEmail: "me@acme.test",
	}
	recipients := []Recipient{
		{Email: "a@test.com"},
		{Email: "b@test.com"},
	}

	result, err := d.QuickSend(context.Background(), 1, models.ProviderBulk, msg, recipients)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)

	var count int64
	db.Model(&models.EmailRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestQuickSendUntracked(t *testing.T) {
	db := newTestDB(t)
	var captured []*mailer.Message
	fake := &fakeMailer{}
	d := newTestDispatcher(t, db, fake)
	d.newMailer = func(provider string, userID uint) (mailer.Mailer, error) {
		return capturingMailer{messages: &captured}, nil
	}

	msg := QuickMessage{Subject: "s", Body: `<a href="https://example.com">go</a>`}
	_, err := d.QuickSend(context.Background(), 1, models.ProviderBulk, msg, []Recipient{{Email: "a@test.com"}})
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.NotContains(t, captured[0].HTML, "/track/click")
	assert.NotContains(t, captured[0].HTML, "/track/open")
}

type capturingMailer struct {
	messages *[]*mailer.Message
}

func (c capturingMailer) Name() string    { return "capture" }
func (c capturingMailer) BatchLimit() int { return 0 }

func (c capturingMailer) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	*c.messages = append(*c.messages, msg)
	return "captured", nil
}
