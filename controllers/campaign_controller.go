package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/dispatch"
	"mailblast/models"
	"mailblast/utils"
)

type CampaignController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Dispatcher *dispatch.Dispatcher
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:         db,
		Logger:     logger,
		Dispatcher: dispatch.NewDispatcher(db, logger),
	}
}

type CreateCampaignRequest struct {
	Name       string `json:"name" validate:"required"`
	Subject    string `json:"subject" validate:"required"`
	Body       string `json:"body"`
	FromName   string `json:"from_name"`
	FromEmail  string `json:"from_email" validate:"omitempty,email"`
	Provider   string `json:"provider" validate:"omitempty,oneof=bulk relay"`
	TemplateID *uint  `json:"template_id"`
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	campaign := models.Campaign{
		UserID:     user.ID,
		Name:       req.Name,
		Subject:    req.Subject,
		Body:       req.Body,
		FromName:   req.FromName,
		FromEmail:  req.FromEmail,
		Provider:   req.Provider,
		TemplateID: req.TemplateID,
		Status:     models.CampaignStatusDraft,
	}
	if campaign.Provider == "" {
		campaign.Provider = models.ProviderBulk
	}

	// A template reference pre-fills the body at creation time
	if req.TemplateID != nil && req.Body == "" {
		var tmpl models.Template
		if err := cc.DB.Where("id = ? AND user_id = ?", *req.TemplateID, user.ID).First(&tmpl).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		campaign.Body = tmpl.HTMLContent
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	return c.JSON(campaigns)
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	return c.JSON(campaign)
}

type UpdateCampaignRequest struct {
	Name      *string `json:"name"`
	Subject   *string `json:"subject"`
	Body      *string `json:"body"`
	FromName  *string `json:"from_name"`
	FromEmail *string `json:"from_email" validate:"omitempty,email"`
	Provider  *string `json:"provider" validate:"omitempty,oneof=bulk relay"`
}

func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	// Only a draft may be edited; anything later is historical record
	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Only draft campaigns can be updated",
		})
	}

	var req UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Subject != nil {
		campaign.Subject = *req.Subject
	}
	if req.Body != nil {
		campaign.Body = *req.Body
	}
	if req.FromName != nil {
		campaign.FromName = *req.FromName
	}
	if req.FromEmail != nil {
		campaign.FromEmail = *req.FromEmail
	}
	if req.Provider != nil {
		campaign.Provider = *req.Provider
	}

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}

	return c.JSON(campaign)
}

// DeleteCampaign removes a campaign and cascades to its delivery records.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	tx := cc.DB.Begin()
	if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.EmailRecord{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete delivery records",
		})
	}
	if err := tx.Delete(&campaign).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{
		"message": "Campaign deleted successfully",
	})
}

// GetCampaignStats returns the aggregate counters plus the per-recipient
// detail rows.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var records []models.EmailRecord
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).Order("email").Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch delivery records",
		})
	}

	return c.JSON(fiber.Map{
		"campaign": fiber.Map{
			"id":               campaign.ID,
			"name":             campaign.Name,
			"status":           campaign.Status,
			"total_recipients": campaign.TotalRecipients,
			"sent_count":       campaign.SentCount,
			"failed_count":     campaign.FailedCount,
			"open_count":       campaign.OpenCount,
			"click_count":      campaign.ClickCount,
			"bounce_count":     campaign.BounceCount,
			"sent_at":          campaign.SentAt,
		},
		"recipients": records,
	})
}
