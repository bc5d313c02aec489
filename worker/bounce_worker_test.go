package worker

import (
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
	"mailblast/models"
)

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func TestFailedRecipientPattern(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"Final-Recipient: rfc822; jane@test.com\nAction: failed", "jane@test.com"},
		{"X-Failed-Recipients: bob@example.org", "bob@example.org"},
		{"final-recipient: RFC822; Mixed@Case.com", "Mixed@Case.com"},
		{"nothing useful here", ""},
	}

	for _, tc := range cases {
		match := failedRecipientRe.FindStringSubmatch(tc.body)
		if tc.want == "" {
			assert.Nil(t, match, "body=%q", tc.body)
			continue
		}
		require.NotNil(t, match, "body=%q", tc.body)
		assert.Equal(t, tc.want, match[1])
	}
}

func TestExtractDiagnostic(t *testing.T) {
	body := "Action: failed\nDiagnostic-Code: smtp; 550 5.1.1 User unknown\nStatus: 5.1.1"
	assert.Equal(t, "smtp; 550 5.1.1 User unknown", extractDiagnostic(body))

	assert.Equal(t, "Delivery status notification", extractDiagnostic("no diagnostic line"))
}

func TestMarkBouncedCountsUniqueRecipientOnce(t *testing.T) {
	db := newWorkerDB(t)
	bw := NewBounceWorker(db, log.New(io.Discard, "", 0))

	campaign := models.Campaign{UserID: 1, Name: "launch", Subject: "hi", Status: models.CampaignStatusSent}
	require.NoError(t, db.Create(&campaign).Error)

	record := models.EmailRecord{CampaignID: campaign.ID, Email: "jane@test.com", Delivered: true}
	require.NoError(t, db.Create(&record).Error)

	require.NoError(t, bw.markBounced("jane@test.com", "550 user unknown"))
	require.NoError(t, bw.markBounced("jane@test.com", "550 user unknown"))

	var reloadedRecord models.EmailRecord
	require.NoError(t, db.First(&reloadedRecord, record.ID).Error)
	assert.True(t, reloadedRecord.Bounced)
	assert.Equal(t, "550 user unknown", reloadedRecord.BounceReason)
	assert.NotNil(t, reloadedRecord.BouncedAt)

	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.BounceCount)
}

func TestMarkBouncedUnknownRecipient(t *testing.T) {
	db := newWorkerDB(t)
	bw := NewBounceWorker(db, log.New(io.Discard, "", 0))

	// A DSN for an address we never sent to is dropped silently
	require.NoError(t, bw.markBounced("stranger@test.com", "550"))
}
