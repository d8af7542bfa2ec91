package browser

import (
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone           BlockType = ""
	BlockCloudflare     BlockType = "cloudflare"
	BlockCaptcha        BlockType = "captcha"
	BlockUnusualTraffic BlockType = "unusual_traffic"
)

var captchaSelectors = strings.Join([]string{
	`iframe[src*="recaptcha"]`,
	`iframe[src*="hcaptcha"]`,
	`.g-recaptcha`,
	`.h-captcha`,
	`#captcha-form`,
	`form#challenge-form`,
}, ", ")

// DetectBlock checks a rendered page for anti-bot interstitials.
func DetectBlock(doc *Document) (bool, BlockType) {
	if doc == nil {
		return false, BlockNone
	}

	if strings.Contains(doc.URL(), "/sorry/") {
		return true, BlockUnusualTraffic
	}

	text := strings.ToLower(doc.VisibleText())

	if strings.Contains(text, "unusual traffic from your computer network") {
		return true, BlockUnusualTraffic
	}

	// Cloudflare challenge page markers.
	if strings.Contains(text, "checking your browser") ||
		doc.Has("#cf-browser-verification, #challenge-running") {
		return true, BlockCloudflare
	}

	if doc.Has(captchaSelectors) ||
		strings.Contains(text, "verify you are human") ||
		strings.Contains(text, "are you a robot") {
		return true, BlockCaptcha
	}

	return false, BlockNone
}
