package enrich

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/navigate"
	"github.com/sells-group/listing-cli/internal/resilience"
)

// Fallback is what a web search recovered. Empty fields were not found.
type Fallback struct {
	URL     string
	Email   string
	Phone   string
	Address string
}

// Resolver finds a website for a business by searching for it, then scans
// that website for contact fields.
type Resolver struct {
	cfg      config.FallbackConfig
	country  string
	nav      *navigate.Navigator
	enricher *Enricher
	engine   string
	brand    string
	excluded []string
}

// NewResolver creates a Resolver.
func NewResolver(cfg config.FallbackConfig, country string, nav *navigate.Navigator, enricher *Enricher) *Resolver {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = "https://www.google.com"
	}
	excluded := make([]string, 0, len(cfg.ExcludedDomains))
	for _, d := range cfg.ExcludedDomains {
		if d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www."); d != "" {
			excluded = append(excluded, d)
		}
	}
	engine := resilience.HostOf(cfg.SearchBaseURL)
	return &Resolver{
		cfg:      cfg,
		country:  country,
		nav:      nav,
		enricher: enricher,
		engine:   engine,
		brand:    brandOf(engine),
		excluded: excluded,
	}
}

// Needs reports whether rec qualifies for a fallback search under the
// configured trigger: "any" when url, email or phone is absent, "contact"
// only when email or phone is absent.
func (r *Resolver) Needs(rec model.BusinessRecord) bool {
	contactMissing := model.IsAbsent(rec.Email) || model.IsAbsent(rec.Phone)
	if r.cfg.Trigger == "contact" {
		return contactMissing
	}
	return contactMissing || !rec.HasURL()
}

func (r *Resolver) searchURL(title, city string) string {
	parts := []string{title}
	if city != "" && city != model.UnknownCity {
		parts = append(parts, city)
	}
	if r.country != "" {
		parts = append(parts, r.country)
	}
	return strings.TrimRight(r.cfg.SearchBaseURL, "/") + "/search?q=" + url.QueryEscape(strings.Join(parts, " "))
}

// Resolve searches for title in city and scans the first external result.
// As with Enrich, a found email wins over a phone. Any failure yields a partially or fully empty Fallback, never an error.
func (r *Resolver) Resolve(ctx context.Context, s browser.Session, title, city string) Fallback {
	target := r.searchURL(title, city)
	log := zap.L().With(
		zap.String("component", "fallback"),
		zap.String("title", title),
		zap.String("url", target),
	)

	res, err := r.nav.Fetch(ctx, s, target, navigate.Options{})
	if err != nil {
		log.Info("fallback: search failed", zap.Error(err))
		return Fallback{}
	}

	link := r.FirstExternalLink(res.Document)
	if link == "" {
		log.Info("fallback: no external result")
		return Fallback{}
	}

	fb := Fallback{URL: link}
	c, err := r.enricher.Scan(ctx, s, link)
	if err != nil {
		log.Info("fallback: website unavailable", zap.String("website", link), zap.Error(err))
		return fb
	}
	c = c.Preferred()
	fb.Email, fb.Phone, fb.Address = c.Email, c.Phone, c.Address
	log.Debug("fallback: resolved", zap.String("website", link))
	return fb
}

// FirstExternalLink returns the first result link in document order that
// points off the search engine and off every excluded domain.
func (r *Resolver) FirstExternalLink(doc *browser.Document) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link := unwrapSearchLink(doc.Resolve(a.AttrOr("href", "")))
		if !isWebURL(link) {
			return true
		}
		if r.isExcluded(resilience.HostOf(link)) {
			return true
		}
		found = link
		return false
	})
	return found
}

func (r *Resolver) isExcluded(host string) bool {
	if host == "" {
		return true
	}
	if domainMatch(host, r.engine) {
		return true
	}
	// Regional engine domains such as maps.google.ca for www.google.com.
	if r.brand != "" && brandOf(host) == r.brand {
		return true
	}
	for _, d := range r.excluded {
		if domainMatch(host, d) {
			return true
		}
	}
	return false
}

// brandOf returns the label left of host's public suffix: "google" for
// maps.google.ca, "brave" for search.brave.com.
func brandOf(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	brand, _, _ := strings.Cut(etld1, ".")
	return brand
}

// domainMatch reports whether host is domain or one of its subdomains.
func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// unwrapSearchLink resolves /url?q=<target> redirect links.
func unwrapSearchLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if u.Path == "/url" {
		for _, key := range []string{"q", "url"} {
			if target := u.Query().Get(key); isWebURL(target) {
				return target
			}
		}
	}
	return link
}
