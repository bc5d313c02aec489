package controller

import (
	"errors"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"

	"mailblast/dispatch"
	"mailblast/mailer"
	"mailblast/models"
	"mailblast/utils"
)

type SendCampaignRequest struct {
	Provider string `json:"provider" validate:"required,oneof=bulk relay"`
}

// SendCampaign dispatches a draft campaign to the owner's active
// subscribers through the chosen provider.
func (cc *CampaignController) SendCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var req SendCampaignRequest
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

	// Early status check; the dispatcher's conditional claim still
	// guards against a concurrent request racing past this.
	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign is already sending or has been sent",
		})
	}

	campaign.Provider = req.Provider
	if err := cc.DB.Model(&campaign).Update("provider", req.Provider).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign provider",
		})
	}

	// The bulk provider sends from the campaign's own address, which
	// must belong to one of the owner's verified domains. The relay
	// always sends from its own mailbox address.
	if campaign.Provider == models.ProviderBulk && !cc.isAuthorizedSender(user.ID, campaign.FromEmail) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "From address does not belong to a verified sending domain",
		})
	}

	recipients, err := cc.listActiveRecipients(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subscribers",
		})
	}

	result, err := cc.Dispatcher.Run(c.UserContext(), &campaign, recipients)
	if err != nil {
		return cc.sendErrorResponse(c, result, err)
	}

	return c.JSON(fiber.Map{
		"sent":   result.Sent,
		"failed": result.Failed,
	})
}

type QuickSendRequest struct {
	Provider   string               `json:"provider" validate:"required,oneof=bulk relay"`
	Subject    string               `json:"subject" validate:"required"`
	Body       string               `json:"body" validate:"required"`
	FromName   string               `json:"from_name"`
	FromEmail  string               `json:"from_email" validate:"omitempty,email"`
	Recipients []dispatch.Recipient `json:"recipients" validate:"required,min=1"`
}

// QuickSend dispatches an ad hoc message to an ad hoc recipient list
// (typically CSV-imported), bypassing campaign bookkeeping: no delivery
// records and no aggregate counters.
func (cc *CampaignController) QuickSend(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req QuickSendRequest
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

	for _, r := range req.Recipients {
		if err := checkmail.ValidateFormat(r.Email); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid recipient email: " + r.Email,
			})
		}
	}

	if req.Provider == models.ProviderBulk && !cc.isAuthorizedSender(user.ID, req.FromEmail) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "From address does not belong to a verified sending domain",
		})
	}

	msg := dispatch.QuickMessage{
		Subject:   req.Subject,
		Body:      req.Body,
		FromEmail: req.FromEmail,
		FromName:  req.FromName,
	}

	result, err := cc.Dispatcher.QuickSend(c.UserContext(), user.ID, req.Provider, msg, req.Recipients)
	if err != nil {
		return cc.sendErrorResponse(c, result, err)
	}

	return c.JSON(fiber.Map{
		"sent":   result.Sent,
		"failed": result.Failed,
	})
}

// listActiveRecipients fetches the owner's active subscribers as
// dispatch recipients.
func (cc *CampaignController) listActiveRecipients(userID uint) ([]dispatch.Recipient, error) {
	var subscribers []models.Subscriber
	if err := cc.DB.Where("user_id = ? AND is_active = ?", userID, true).Find(&subscribers).Error; err != nil {
		return nil, err
	}

	recipients := make([]dispatch.Recipient, 0, len(subscribers))
	for _, s := range subscribers {
		recipients = append(recipients, dispatch.Recipient{Email: s.Email, Name: s.Name})
	}
	return recipients, nil
}

// isAuthorizedSender reports whether the from address belongs to one of
// the owner's verified sending domains.
func (cc *CampaignController) isAuthorizedSender(userID uint, fromAddress string) bool {
	at := strings.LastIndex(fromAddress, "@")
	if at < 0 {
		return false
	}
	domainName := strings.ToLower(fromAddress[at+1:])

	var count int64
	cc.DB.Model(&models.Domain{}).
		Where("user_id = ? AND name = ? AND verified = ?", userID, domainName, true).
		Count(&count)
	return count > 0
}

// sendErrorResponse maps dispatch errors onto the HTTP taxonomy.
func (cc *CampaignController) sendErrorResponse(c *fiber.Ctx, result *dispatch.Result, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrNoRecipients):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No eligible recipients",
		})
	case errors.Is(err, dispatch.ErrCapacityExceeded):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, dispatch.ErrAlreadySending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign is already sending or has been sent",
		})
	case errors.Is(err, mailer.ErrAuth):
		utils.LogError("provider_auth_failed", err, map[string]interface{}{
			"path": c.Path(),
		})
		resp := fiber.Map{"error": "Provider authentication failed"}
		if result != nil {
			resp["sent"] = result.Sent
			resp["failed"] = result.Failed
		}
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	default:
		utils.LogError("dispatch_failed", err, map[string]interface{}{
			"path": c.Path(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to dispatch campaign",
		})
	}
}
