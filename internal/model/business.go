package model

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Source identifies which directory produced a record.
type Source string

const (
	SourceMapDirectory     Source = "map_directory"
	SourceListingDirectory Source = "listing_directory"
	SourceSearchEngine     Source = "search_engine"
)

// AllSources returns every known source in default priority order.
func AllSources() []Source {
	return []Source{
		SourceMapDirectory,
		SourceListingDirectory,
		SourceSearchEngine,
	}
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceMapDirectory, SourceListingDirectory, SourceSearchEngine:
		return true
	default:
		return false
	}
}

// Defaults applied when a source cannot resolve a value.
const (
	DefaultIndustry = "Business"
	UnknownCity     = "Unknown"
)

// Absent is the single sentinel for a missing optional field.
const Absent = ""

// IsAbsent reports whether an optional field is missing.
func IsAbsent(v string) bool {
	return strings.TrimSpace(v) == Absent
}

// BusinessRecord is one business listing as extracted from a source and
// later enriched. Source, Rank and ScrapedAt are fixed at creation.
type BusinessRecord struct {
	Title     string    `json:"title"`
	Industry  string    `json:"industry"`
	City      string    `json:"city"`
	URL       string    `json:"url"`
	Rank      int       `json:"rank"`
	Source    Source    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Rating    string    `json:"rating"`
}

// NewRecord creates a record with defaults applied. Returns false when the
// title is blank; such rows must not be emitted.
func NewRecord(src Source, rank int, title, city string, scrapedAt time.Time) (BusinessRecord, bool) {
	title = strings.TrimSpace(title)
	if title == "" || rank < 1 {
		return BusinessRecord{}, false
	}
	city = strings.TrimSpace(city)
	if city == "" {
		city = UnknownCity
	}
	return BusinessRecord{
		Title:     title,
		Industry:  DefaultIndustry,
		City:      city,
		Rank:      rank,
		Source:    src,
		ScrapedAt: scrapedAt.UTC(),
	}, true
}

// Key returns the record's identity key.
func (r BusinessRecord) Key() string {
	return IdentityKey(r.Title, r.City)
}

// HasContact reports whether both phone and email are present.
func (r BusinessRecord) HasContact() bool {
	return !IsAbsent(r.Phone) && !IsAbsent(r.Email)
}

// HasURL reports whether the record carries a candidate website.
func (r BusinessRecord) HasURL() bool {
	return !IsAbsent(r.URL)
}

// MissingFields lists the contact-related fields that are still absent.
func (r BusinessRecord) MissingFields() []string {
	var missing []string
	if IsAbsent(r.URL) {
		missing = append(missing, "url")
	}
	if IsAbsent(r.Phone) {
		missing = append(missing, "phone")
	}
	if IsAbsent(r.Email) {
		missing = append(missing, "email")
	}
	if IsAbsent(r.Address) {
		missing = append(missing, "address")
	}
	return missing
}

var (
	foldCaser = cases.Fold()
	// stripMarks removes combining marks after canonical decomposition so
	// "Café" and "Cafe" share a key.
	stripMarks = runes.Remove(runes.In(unicode.Mn))
)

// NormalizeKeyPart folds case, strips diacritics, trims and collapses
// whitespace.
func NormalizeKeyPart(s string) string {
	t := transform.Chain(norm.NFKD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = foldCaser.String(out)
	return strings.Join(strings.Fields(out), " ")
}

// IdentityKey builds the dedup key for a (title, city) pair.
func IdentityKey(title, city string) string {
	return NormalizeKeyPart(title) + "|" + NormalizeKeyPart(city)
}
