package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCampaignTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{CampaignStatusDraft, CampaignStatusSending, true},
		{CampaignStatusSending, CampaignStatusSent, true},
		{CampaignStatusSending, CampaignStatusFailed, true},
		{CampaignStatusDraft, CampaignStatusSent, false},
		{CampaignStatusDraft, CampaignStatusFailed, false},
		{CampaignStatusSent, CampaignStatusSending, false},
		{CampaignStatusSent, CampaignStatusDraft, false},
		{CampaignStatusFailed, CampaignStatusSending, false},
		{"", CampaignStatusSending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidCampaignTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
