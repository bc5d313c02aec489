package dispatch

import (
	"strings"

	"mailblast/utils"
)

// PlaceholderToken is the single substitution token supported in
// campaign subjects and bodies. Substitution is literal text
// replacement, not a template language.
const PlaceholderToken = "{{name}}"

// Recipient identifies one dispatch target.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName returns the recipient's name, falling back to the local
// part of the email address when none was supplied.
func (r Recipient) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return utils.LocalPart(r.Email)
}

// TrackingContext keys the instrumentation injected into a rendered
// body. A zero CampaignID disables instrumentation entirely, which is
// how quick-sends go out untracked.
type TrackingContext struct {
	BaseURL    string
	CampaignID uint
}

// RenderSubject personalizes a subject line for one recipient.
func RenderSubject(subject string, r Recipient) string {
	return strings.ReplaceAll(subject, PlaceholderToken, r.DisplayName())
}

// RenderBody personalizes a body and injects tracking instrumentation.
// The pixel is appended after personalization and link rewriting so its
// URL is never subject to substitution. Pure: same inputs always yield
// the same output.
func RenderBody(body string, r Recipient, tc TrackingContext) string {
	html := strings.ReplaceAll(body, PlaceholderToken, r.DisplayName())
	if tc.CampaignID == 0 {
		return html
	}
	html = utils.RewriteLinks(html, tc.BaseURL, tc.CampaignID, r.Email)
	return html + utils.TrackingPixel(tc.BaseURL, tc.CampaignID, r.Email)
}
