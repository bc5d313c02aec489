package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteLinks(t *testing.T) {
	html := `<p>Hi</p><a href="https://a.test/one">one</a><a href="https://b.test/two">two</a>`
	out := RewriteLinks(html, "http://track.test", 9, "jane@test.com")

	assert.NotContains(t, out, `href="https://a.test/one"`)
	assert.NotContains(t, out, `href="https://b.test/two"`)
	assert.Contains(t, out, "http://track.test/track/click?campaignId=9&email=jane%40test.com&url=https%3A%2F%2Fa.test%2Fone")
	assert.Contains(t, out, "url=https%3A%2F%2Fb.test%2Ftwo")
}

func TestRewriteLinksNoAnchors(t *testing.T) {
	html := "<p>plain text, no links</p>"
	assert.Equal(t, html, RewriteLinks(html, "http://track.test", 9, "jane@test.com"))
}

func TestGenerateTrackingPixelURL(t *testing.T) {
	url := GenerateTrackingPixelURL("http://track.test", 42, "jane+tag@test.com")
	assert.Equal(t, "http://track.test/track/open/42?email=jane%2Btag%40test.com", url)
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "jane.doe", LocalPart("jane.doe@test.com"))
	assert.Equal(t, "no-at-sign", LocalPart("no-at-sign"))
}

func TestTransparentPixelIsGIF(t *testing.T) {
	pixel := TransparentPixel()
	assert.Equal(t, []byte("GIF89a"), pixel[:6])
}
