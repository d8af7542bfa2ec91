package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html, url string) *Document {
	t.Helper()
	doc, err := NewDocument(html, url)
	require.NoError(t, err)
	return doc
}

func TestDetectBlock_GoogleSorryPage(t *testing.T) {
	doc := mustDoc(t, "<html><body>blocked</body></html>", "https://www.google.com/sorry/index?continue=x")
	blocked, bt := DetectBlock(doc)
	assert.True(t, blocked)
	assert.Equal(t, BlockUnusualTraffic, bt)
}

func TestDetectBlock_UnusualTrafficText(t *testing.T) {
	doc := mustDoc(t, "<html><body><p>Our systems have detected unusual traffic from your computer network.</p></body></html>", "https://www.google.com/search?q=x")
	blocked, bt := DetectBlock(doc)
	assert.True(t, blocked)
	assert.Equal(t, BlockUnusualTraffic, bt)
}

func TestDetectBlock_Cloudflare(t *testing.T) {
	doc := mustDoc(t, "<html><body><h1>Checking your browser before accessing</h1></body></html>", "https://example.com")
	blocked, bt := DetectBlock(doc)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)
}

func TestDetectBlock_CaptchaWidget(t *testing.T) {
	doc := mustDoc(t, `<html><body><div class="g-recaptcha" data-sitekey="k"></div></body></html>`, "https://example.com")
	blocked, bt := DetectBlock(doc)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)
}

func TestDetectBlock_NilDocument(t *testing.T) {
	blocked, bt := DetectBlock(nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}

func TestDetectBlock_CleanPage(t *testing.T) {
	doc := mustDoc(t, "<html><body>Welcome to Cafe X. We protect this form with reCAPTCHA.</body></html>", "https://cafex.ca")
	blocked, bt := DetectBlock(doc)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
