package enrich

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,24}`)
	// phoneRe is anchored; ExtractPhone tries it at every number boundary. A
	// country code needs a "+" or is a bare 1 followed by a separator.
	phoneRe = regexp.MustCompile(`^(?:\+\d{1,3}[\s.\-]?|1[\s.\-])?(?:\(\d{3}\)|\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}`)

	streetRe = regexp.MustCompile(`(?i)\b\d{1,6}[a-z]?\s+(?:[a-z0-9.'\-]+\s+){1,4}?(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|crescent|cres|place|pl|highway|hwy|parkway|pkwy|terrace|trail|close)\b\.?`)
	postalRe = regexp.MustCompile(`(?i)\b(?:[a-z]\d[a-z][ \-]?\d[a-z]\d|\d{5}(?:-\d{4})?)\b`)
)

// assetTLDs are file extensions that look like TLDs in image names such as
// logo@2x.png.
var assetTLDs = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true,
	"webp": true, "bmp": true, "ico": true, "tif": true, "tiff": true,
	"css": true, "js": true, "mp4": true, "webm": true, "pdf": true,
}

// ExtractEmail returns the first plausible email address in text, lower-cased.
func ExtractEmail(text string) (string, bool) {
	for _, m := range emailRe.FindAllString(text, -1) {
		if email := sanitizeEmail(m); email != "" {
			return email, true
		}
	}
	return "", false
}

func sanitizeEmail(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "mailto:"), "MAILTO:")
	if idx := strings.Index(clean, "?"); idx != -1 {
		clean = clean[:idx]
	}
	if decoded, err := url.PathUnescape(clean); err == nil {
		clean = decoded
	}
	clean = strings.Trim(clean, "<>()[]{}.,;:\"'` ")

	match := emailRe.FindString(clean)
	if match == "" {
		return ""
	}
	match = strings.ToLower(match)
	tld := match[strings.LastIndex(match, ".")+1:]
	if assetTLDs[tld] {
		return ""
	}
	return match
}

// ExtractPhone returns the first phone number in text. A match needs an area
// code and 10 to 13 digits in total, and must not be part of a longer number.
func ExtractPhone(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if !startsPhone(text[i]) || (i > 0 && isDigit(text[i-1])) {
			continue
		}
		loc := phoneRe.FindStringIndex(text[i:])
		if loc == nil {
			continue
		}
		end := i + loc[1]
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		phone := text[i:end]
		if n := countDigits(phone); n >= 10 && n <= 13 {
			return phone, true
		}
	}
	return "", false
}

func startsPhone(c byte) bool {
	return isDigit(c) || c == '+' || c == '('
}

// ExtractAddress returns the first street address in text, extended through
// a trailing Canadian postal code or US ZIP when one follows closely.
func ExtractAddress(text string) (string, bool) {
	loc := streetRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	end := loc[1]

	tailEnd := end + 60
	if tailEnd > len(text) {
		tailEnd = len(text)
	}
	if p := postalRe.FindStringIndex(text[end:tailEnd]); p != nil {
		end += p[1]
	}

	addr := strings.Join(strings.Fields(text[loc[0]:end]), " ")
	return strings.TrimRight(addr, " ,"), true
}

// normalizeTel strips a tel: scheme.
func normalizeTel(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "tel:") {
		raw = raw[4:]
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			n++
		}
	}
	return n
}
