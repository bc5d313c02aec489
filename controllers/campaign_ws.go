package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"mailblast/config"
	"mailblast/models"
	"mailblast/utils"
)

type campaignProgress struct {
	Status          string `json:"status"`
	TotalRecipients int    `json:"total_recipients"`
	SentCount       int    `json:"sent_count"`
	FailedCount     int    `json:"failed_count"`
	Percent         int    `json:"percent"`
}

// HandleCampaignProgressWS streams send progress for a campaign by
// polling its counters. The stream closes once the campaign leaves the
// sending state.
func HandleCampaignProgressWS(c *websocket.Conn) {
	defer c.Close()

	campaignID := utils.ParseUint(c.Params("id"))
	user, _ := c.Locals("user").(*models.User)
	if campaignID == 0 || user == nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var campaign models.Campaign
		if err := config.DB.Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
			log.Printf("Progress stream: campaign %d not found: %v", campaignID, err)
			return
		}

		progress := campaignProgress{
			Status:          campaign.Status,
			TotalRecipients: campaign.TotalRecipients,
			SentCount:       campaign.SentCount,
			FailedCount:     campaign.FailedCount,
		}
		if campaign.TotalRecipients > 0 {
			progress.Percent = (campaign.SentCount + campaign.FailedCount) * 100 / campaign.TotalRecipients
		}

		if err := c.WriteJSON(progress); err != nil {
			log.Printf("Progress stream: write failed: %v", err)
			return
		}

		if campaign.Status != models.CampaignStatusSending {
			return
		}

		<-ticker.C
	}
}
