package controller

import (
	"log"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/config"
	"mailblast/models"
	"mailblast/utils"
)

type RelayController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewRelayController(db *gorm.DB, logger *log.Logger) *RelayController {
	return &RelayController{
		DB:     db,
		Logger: logger,
	}
}

type ConfigureRelayRequest struct {
	Address  string `json:"address" validate:"required,email"`
	FromName string `json:"from_name"`
	Secret   string `json:"secret" validate:"required"`

	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`

	IMAPHost    string `json:"imap_host"`
	IMAPPort    int    `json:"imap_port"`
	IMAPMailbox string `json:"imap_mailbox"`

	DailyLimit int `json:"daily_limit"`
}

// ConfigureRelay creates or replaces the owner's mailbox relay account.
// The app password is encrypted before it is stored.
func (rc *RelayController) ConfigureRelay(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req ConfigureRelayRequest
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

	if err := checkmail.ValidateFormat(req.Address); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid relay address",
		})
	}

	encrypted, err := utils.Encrypt(req.Secret)
	if err != nil {
		utils.LogError("relay_secret_encrypt_failed", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store credentials",
		})
	}

	account := models.RelayAccount{
		UserID:   user.ID,
		Address:  req.Address,
		FromName: req.FromName,
		Secret:   encrypted,
	}
	if req.SMTPHost != "" {
		account.SMTPHost = req.SMTPHost
	}
	if req.SMTPPort != 0 {
		account.SMTPPort = req.SMTPPort
	}
	if req.IMAPHost != "" {
		account.IMAPHost = req.IMAPHost
	}
	if req.IMAPPort != 0 {
		account.IMAPPort = req.IMAPPort
	}
	if req.IMAPMailbox != "" {
		account.IMAPMailbox = req.IMAPMailbox
	}
	if req.DailyLimit > 0 {
		account.DailyLimit = req.DailyLimit
	} else {
		account.DailyLimit = config.AppConfig.RelayDailyLimit
	}

	var existing models.RelayAccount
	err = rc.DB.Where("user_id = ?", user.ID).First(&existing).Error
	if err == nil {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
		account.TotalSent = existing.TotalSent
		if err := rc.DB.Save(&account).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update relay account",
			})
		}
	} else {
		if err := rc.DB.Create(&account).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create relay account",
			})
		}
	}

	utils.LogEvent("relay_configured", map[string]interface{}{
		"user_id": user.ID,
		"address": account.Address,
	})

	account.Sanitize()
	return c.JSON(account)
}

func (rc *RelayController) GetRelay(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var account models.RelayAccount
	if err := rc.DB.Where("user_id = ?", user.ID).First(&account).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No relay account configured",
		})
	}

	account.Sanitize()
	return c.JSON(account)
}

func (rc *RelayController) DeleteRelay(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := rc.DB.Where("user_id = ?", user.ID).Delete(&models.RelayAccount{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete relay account",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No relay account configured",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Relay account deleted successfully",
	})
}
