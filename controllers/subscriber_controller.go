package controller

import (
	"encoding/csv"
	"fmt"
	"log"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

type SubscriberController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSubscriberController(db *gorm.DB, logger *log.Logger) *SubscriberController {
	return &SubscriberController{
		DB:     db,
		Logger: logger,
	}
}

type CreateSubscriberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

func (sc *SubscriberController) CreateSubscriber(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateSubscriberRequest
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

	if err := checkmail.ValidateFormat(req.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email format",
		})
	}

	subscriber := models.Subscriber{
		UserID:   user.ID,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     req.Name,
		IsActive: true,
	}

	if err := sc.DB.Create(&subscriber).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Subscriber already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(subscriber)
}

func (sc *SubscriberController) GetSubscribers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var subscribers []models.Subscriber
	if err := sc.DB.Where("user_id = ?", user.ID).Order("email").Find(&subscribers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subscribers",
		})
	}

	return c.JSON(subscribers)
}

type UpdateSubscriberRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

func (sc *SubscriberController) UpdateSubscriber(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var subscriber models.Subscriber
	if err := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&subscriber).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subscriber not found",
		})
	}

	var req UpdateSubscriberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name != nil {
		subscriber.Name = *req.Name
	}
	if req.IsActive != nil {
		subscriber.IsActive = *req.IsActive
	}

	if err := sc.DB.Save(&subscriber).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscriber",
		})
	}

	return c.JSON(subscriber)
}

func (sc *SubscriberController) DeleteSubscriber(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := sc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Subscriber{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete subscriber",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subscriber not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Subscriber deleted successfully",
	})
}

// ImportSubscribers ingests a CSV body of "email,name" rows. Rows with
// an invalid email are skipped and reported, not fatal.
func (sc *SubscriberController) ImportSubscribers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	reader := csv.NewReader(strings.NewReader(string(c.Body())))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid CSV payload",
		})
	}

	imported := 0
	skipped := []string{}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(row[0]))
		if email == "" || email == "email" { // skip header row
			continue
		}
		if err := checkmail.ValidateFormat(email); err != nil {
			skipped = append(skipped, email)
			continue
		}

		name := ""
		if len(row) > 1 {
			name = strings.TrimSpace(row[1])
		}

		subscriber := models.Subscriber{
			UserID:   user.ID,
			Email:    email,
			Name:     name,
			IsActive: true,
		}
		if err := sc.DB.Where("user_id = ? AND email = ?", user.ID, email).
			FirstOrCreate(&subscriber).Error; err != nil {
			skipped = append(skipped, email)
			continue
		}
		imported++
	}

	return c.JSON(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
	})
}

// ExportSubscribers streams the owner's audience as CSV.
func (sc *SubscriberController) ExportSubscribers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var subscribers []models.Subscriber
	if err := sc.DB.Where("user_id = ?", user.ID).Order("email").Find(&subscribers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subscribers",
		})
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	_ = writer.Write([]string{"email", "name", "active"})
	for _, s := range subscribers {
		_ = writer.Write([]string{s.Email, s.Name, fmt.Sprintf("%t", s.IsActive)})
	}
	writer.Flush()

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="subscribers.csv"`)
	return c.SendString(sb.String())
}
