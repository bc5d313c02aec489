package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// GenerateTrackingPixelURL builds the open-tracking pixel URL for one
// (campaign, recipient) pair.
func GenerateTrackingPixelURL(baseURL string, campaignID uint, email string) string {
	return fmt.Sprintf("%s/track/open/%d?email=%s", baseURL, campaignID, url.QueryEscape(email))
}

// GenerateClickTrackURL builds a tracked redirect URL for one link.
func GenerateClickTrackURL(baseURL string, campaignID uint, email, originalURL string) string {
	return fmt.Sprintf("%s/track/click?campaignId=%d&email=%s&url=%s",
		baseURL, campaignID, url.QueryEscape(email), url.QueryEscape(originalURL))
}

// TrackingPixel renders the invisible 1x1 image tag appended to every
// tracked email body.
func TrackingPixel(baseURL string, campaignID uint, email string) string {
	return fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		GenerateTrackingPixelURL(baseURL, campaignID, email))
}

// RewriteLinks replaces every <a href="..."> destination with a tracked
// redirect through the click endpoint.
func RewriteLinks(html, baseURL string, campaignID uint, email string) string {
	const startTag = `<a href="`
	const endTag = `"`
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := GenerateClickTrackURL(baseURL, campaignID, email, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}

// TransparentPixel returns a 1x1 transparent GIF.
func TransparentPixel() []byte {
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}
