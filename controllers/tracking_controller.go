package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

// TrackingController resolves pixel and redirect requests from mail
// clients into open/click state. Both endpoints are unauthenticated and
// must never reveal tracking state to the remote client.
type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Logger: logger,
	}
}

// HandleOpenTracking serves the 1x1 pixel and records the open. The
// response is always a 200 image: a missing or garbled record must look
// identical to a tracked one from the outside.
func (tc *TrackingController) HandleOpenTracking(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("campaignID"))
	email := c.Query("email")

	if campaignID != 0 && email != "" {
		tc.recordOpen(campaignID, email)
	}

	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	return c.Type("gif").Send(utils.TransparentPixel())
}

// HandleClickTracking records the click and redirects to the original
// destination. A missing destination is the one visible error here:
// there is nowhere to silently send the client.
func (tc *TrackingController) HandleClickTracking(c *fiber.Ctx) error {
	destination := c.Query("url")
	if destination == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing url parameter")
	}

	campaignID := utils.ParseUint(c.Query("campaignId"))
	email := c.Query("email")

	if campaignID != 0 && email != "" {
		tc.recordClick(campaignID, email)
	}

	return c.Redirect(destination, fiber.StatusFound)
}

// recordOpen applies first-open/repeat-open accounting. Both paths are
// single conditional UPDATEs, so overlapping requests from prefetching
// mail clients cannot lose updates or double-count the campaign
// aggregate: only the request that flips opened=false wins the first
// occurrence.
func (tc *TrackingController) recordOpen(campaignID uint, email string) {
	now := time.Now()

	res := tc.DB.Model(&models.EmailRecord{}).
		Where("campaign_id = ? AND email = ? AND opened = ?", campaignID, email, false).
		Updates(map[string]interface{}{
			"opened":     true,
			"opened_at":  now,
			"open_count": gorm.Expr("open_count + ?", 1),
		})
	if res.Error != nil {
		tc.Logger.Printf("Failed to record open for campaign %d: %v", campaignID, res.Error)
		return
	}

	if res.RowsAffected > 0 {
		// First open by this recipient: the campaign aggregate counts
		// unique openers, so it only moves here.
		tc.DB.Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			Update("open_count", gorm.Expr("open_count + ?", 1))
		return
	}

	// Repeat open, or an unknown record (matches zero rows and is
	// silently ignored either way).
	tc.DB.Model(&models.EmailRecord{}).
		Where("campaign_id = ? AND email = ? AND opened = ?", campaignID, email, true).
		Update("open_count", gorm.Expr("open_count + ?", 1))
}

// recordClick mirrors recordOpen for click state.
func (tc *TrackingController) recordClick(campaignID uint, email string) {
	now := time.Now()

	res := tc.DB.Model(&models.EmailRecord{}).
		Where("campaign_id = ? AND email = ? AND clicked = ?", campaignID, email, false).
		Updates(map[string]interface{}{
			"clicked":     true,
			"clicked_at":  now,
			"click_count": gorm.Expr("click_count + ?", 1),
		})
	if res.Error != nil {
		tc.Logger.Printf("Failed to record click for campaign %d: %v", campaignID, res.Error)
		return
	}

	if res.RowsAffected > 0 {
		tc.DB.Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			Update("click_count", gorm.Expr("click_count + ?", 1))
		return
	}

	tc.DB.Model(&models.EmailRecord{}).
		Where("campaign_id = ? AND email = ? AND clicked = ?", campaignID, email, true).
		Update("click_count", gorm.Expr("click_count + ?", 1))
}
