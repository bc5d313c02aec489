package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubject(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	assert.Equal(t, "Hi Jane!", RenderSubject("Hi {{name}}!", r))
}

func TestRenderSubjectLocalPartFallback(t *testing.T) {
	r := Recipient{Email: "jane.doe@test.com"}
	assert.Equal(t, "Hi jane.doe!", RenderSubject("Hi {{name}}!", r))
}

func TestRenderBodyReplacesAllOccurrences(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	body := "<p>{{name}}, welcome {{name}}</p>"
	out := RenderBody(body, r, TrackingContext{})
	assert.Equal(t, "<p>Jane, welcome Jane</p>", out)
}

func TestRenderBodyUntrackedWithoutCampaign(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	body := `<a href="https://example.com">go</a>`
	out := RenderBody(body, r, TrackingContext{BaseURL: "http://track.test"})
	assert.Equal(t, body, out)
}

func TestRenderBodyAppendsPixelLast(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	tc := TrackingContext{BaseURL: "http://track.test", CampaignID: 42}

	out := RenderBody("<p>Hi {{name}}</p>", r, tc)
	assert.True(t, strings.HasPrefix(out, "<p>Hi Jane</p>"))
	assert.Contains(t, out, "/track/open/42?email=jane%40test.com")
	assert.True(t, strings.HasSuffix(out, `style="display:none">`))
}

func TestRenderBodyRewritesLinks(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	tc := TrackingContext{BaseURL: "http://track.test", CampaignID: 42}

	out := RenderBody(`<a href="https://example.com/page">go</a>`, r, tc)
	assert.Contains(t, out, "/track/click?campaignId=42")
	assert.Contains(t, out, "url=https%3A%2F%2Fexample.com%2Fpage")
	assert.NotContains(t, out, `href="https://example.com/page"`)
}

func TestRenderBodyPixelURLNotSubstituted(t *testing.T) {
	// A malicious name must not leak into the tracking URLs
	r := Recipient{Email: "jane@test.com", Name: "{{name}}"}
	tc := TrackingContext{BaseURL: "http://track.test", CampaignID: 7}

	out := RenderBody("<p>{{name}}</p>", r, tc)
	assert.Contains(t, out, "/track/open/7?email=jane%40test.com")
}

func TestRenderBodyDeterministic(t *testing.T) {
	r := Recipient{Email: "jane@test.com", Name: "Jane"}
	tc := TrackingContext{BaseURL: "http://track.test", CampaignID: 42}
	body := `<p>Hi {{name}}</p><a href="https://example.com">go</a>`

	first := RenderBody(body, r, tc)
	second := RenderBody(body, r, tc)
	assert.Equal(t, first, second)
}
