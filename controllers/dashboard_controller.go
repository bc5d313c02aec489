package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/models"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type dashboardTotals struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Opens   int64 `json:"opens"`
	Clicks  int64 `json:"clicks"`
	Bounces int64 `json:"bounces"`
}

// GetDashboard aggregates account-wide stats for the overview page.
func (dc *DashboardController) GetDashboard(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaignCount, subscriberCount, domainCount int64
	dc.DB.Model(&models.Campaign{}).Where("user_id = ?", user.ID).Count(&campaignCount)
	dc.DB.Model(&models.Subscriber{}).Where("user_id = ? AND is_active = ?", user.ID, true).Count(&subscriberCount)
	dc.DB.Model(&models.Domain{}).Where("user_id = ? AND verified = ?", user.ID, true).Count(&domainCount)

	var totals dashboardTotals
	row := dc.DB.Model(&models.Campaign{}).
		Where("user_id = ?", user.ID).
		Select("COALESCE(SUM(sent_count),0), COALESCE(SUM(failed_count),0), COALESCE(SUM(open_count),0), COALESCE(SUM(click_count),0), COALESCE(SUM(bounce_count),0)").
		Row()
	if err := row.Scan(&totals.Sent, &totals.Failed, &totals.Opens, &totals.Clicks, &totals.Bounces); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to aggregate stats",
		})
	}

	var recent []models.Campaign
	dc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Limit(5).Find(&recent)

	return c.JSON(fiber.Map{
		"campaigns":          campaignCount,
		"active_subscribers": subscriberCount,
		"verified_domains":   domainCount,
		"totals":             totals,
		"recent_campaigns":   recent,
	})
}
