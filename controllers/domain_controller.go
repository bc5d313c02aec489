package controller

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/likexian/whois"
	"gorm.io/gorm"

	"mailblast/models"
	"mailblast/utils"
)

type DomainController struct {
	DB     *gorm.DB
	Logger *log.Logger

	// lookupTXT is swappable for tests
	lookupTXT func(name string) ([]string, error)
}

func NewDomainController(db *gorm.DB, logger *log.Logger) *DomainController {
	return &DomainController{
		DB:        db,
		Logger:    logger,
		lookupTXT: net.LookupTXT,
	}
}

type CreateDomainRequest struct {
	Name string `json:"name" validate:"required,fqdn"`
}

// CreateDomain registers a sending domain and hands back the DNS
// records the owner must publish before the domain can be verified.
func (dc *DomainController) CreateDomain(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateDomainRequest
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

	name := strings.ToLower(strings.TrimSpace(req.Name))
	token := uuid.New().String()

	domain := models.Domain{
		UserID:      user.ID,
		Name:        name,
		VerifyToken: token,
		SPFRecord:   "v=spf1 include:_spf.resend.com ~all",
		DKIMRecord:  fmt.Sprintf("resend._domainkey.%s", name),
		DMARCRecord: "v=DMARC1; p=none;",
	}

	if err := dc.DB.Create(&domain).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Domain already registered",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"domain": domain,
		"dns_records": []fiber.Map{
			{"type": "TXT", "host": "@", "value": "mailblast-verify=" + token},
			{"type": "TXT", "host": "@", "value": domain.SPFRecord},
			{"type": "CNAME", "host": "resend._domainkey", "value": domain.DKIMRecord},
			{"type": "TXT", "host": "_dmarc", "value": domain.DMARCRecord},
		},
	})
}

func (dc *DomainController) GetDomains(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var domains []models.Domain
	if err := dc.DB.Where("user_id = ?", user.ID).Order("name").Find(&domains).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch domains",
		})
	}

	return c.JSON(domains)
}

// VerifyDomain looks up the domain's TXT records and marks it verified
// when the ownership token is found.
func (dc *DomainController) VerifyDomain(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var domain models.Domain
	if err := dc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&domain).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Domain not found",
		})
	}

	if domain.Verified {
		return c.JSON(fiber.Map{
			"verified": true,
			"message":  "Domain is already verified",
		})
	}

	records, err := dc.lookupTXT(domain.Name)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "DNS lookup failed: " + err.Error(),
		})
	}

	expected := "mailblast-verify=" + domain.VerifyToken
	found := false
	for _, record := range records {
		if strings.TrimSpace(record) == expected {
			found = true
			break
		}
	}

	if !found {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"verified": false,
			"error":    "Verification TXT record not found",
		})
	}

	now := time.Now()
	if err := dc.DB.Model(&domain).Updates(map[string]interface{}{
		"verified":    true,
		"verified_at": now,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update domain",
		})
	}

	utils.LogEvent("domain_verified", map[string]interface{}{
		"user_id": user.ID,
		"domain":  domain.Name,
	})

	return c.JSON(fiber.Map{
		"verified": true,
		"message":  "Domain verified successfully",
	})
}

// GetDomainInfo returns the raw whois record for the domain, useful
// when diagnosing registration or expiry issues.
func (dc *DomainController) GetDomainInfo(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var domain models.Domain
	if err := dc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&domain).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Domain not found",
		})
	}

	raw, err := whois.Whois(domain.Name)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Whois lookup failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"domain": domain.Name,
		"whois":  raw,
	})
}

func (dc *DomainController) DeleteDomain(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := dc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).Delete(&models.Domain{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete domain",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Domain not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Domain deleted successfully",
	})
}
