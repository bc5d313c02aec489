package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

type TemplateController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTemplateController(db *gorm.DB, logger *log.Logger) *TemplateController {
	return &TemplateController{
		DB:     db,
		Logger: logger,
	}
}

type TemplateRequest struct {
	Name        string `json:"name" validate:"required"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content" validate:"required"`
	Category    string `json:"category"`
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req TemplateRequest
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

	template := models.Template{
		UserID:      user.ID,
		Name:        req.Name,
		Subject:     req.Subject,
		HTMLContent: req.HTMLContent,
		Category:    req.Category,
	}

	if err := tc.DB.Create(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := tc.DB.Where("user_id = ?", user.ID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var templates []models.Template
	if err := query.Order("name").Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}

	return c.JSON(templates)
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var template models.Template
	if err := tc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(template)
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var template models.Template
	if err := tc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var req TemplateRequest
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

	template.Name = req.Name
	template.Subject = req.Subject
	template.HTMLContent = req.HTMLContent
	template.Category = req.Category

	if err := tc.DB.Save(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(template)
}

func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := tc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Template{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}
