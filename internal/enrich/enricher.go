// Package enrich recovers missing contact fields by visiting a business's own
// website, and falls back to a generic web search when no website is known.
package enrich

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/navigate"
	"github.com/sells-group/listing-cli/internal/resilience"
)

// Status is the terminal state of one enrichment.
type Status string

const (
	// StatusSkipped means no navigation happened.
	StatusSkipped Status = "skipped"
	// StatusEmail means an email was found; phone was not consulted.
	StatusEmail Status = "email"
	// StatusPhone means no email was found but a phone was.
	StatusPhone Status = "phone"
	// StatusExhausted means every attempt came back empty. Fields stay absent.
	StatusExhausted Status = "exhausted"
)

// Outcome describes what Enrich did to a record.
type Outcome struct {
	Status   Status
	Attempts int
	Reason   string
}

// Contact is what a page scan recovered. Empty fields were not found.
type Contact struct {
	Email   string
	Phone   string
	Address string
}

// Empty reports whether neither email nor phone was found.
func (c Contact) Empty() bool { return c.Email == "" && c.Phone == "" }

// Preferred drops the phone when an email was found.
func (c Contact) Preferred() Contact {
	if c.Email != "" {
		c.Phone = ""
	}
	return c
}

var errNoContact = eris.New("enrich: no contact on page")

// Enricher fills phone, email and address from a record's website.
type Enricher struct {
	cfg      config.EnrichConfig
	nav      *navigate.Navigator
	verifier EmailVerifier
}

// New creates an Enricher. verifier may be nil.
func New(cfg config.EnrichConfig, nav *navigate.Navigator, verifier EmailVerifier) *Enricher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Enricher{cfg: cfg, nav: nav, verifier: verifier}
}

// NeedsEnrichment reports whether Enrich would navigate for rec, with the
// reason when it would not.
func NeedsEnrichment(rec model.BusinessRecord) (bool, string) {
	if rec.HasContact() {
		return false, "contact complete"
	}
	if !isWebURL(rec.URL) {
		return false, "no website"
	}
	return true, ""
}

// Enrich visits rec.URL up to the configured number of attempts and assigns
// the first contact found. An email wins over a phone. Present fields are
// never overwritten and no error is ever returned.
func (e *Enricher) Enrich(ctx context.Context, s browser.Session, rec *model.BusinessRecord) Outcome {
	log := zap.L().With(
		zap.String("component", "enrich"),
		zap.String("title", rec.Title),
		zap.String("url", rec.URL),
	)

	if ok, reason := NeedsEnrichment(*rec); !ok {
		log.Debug("enrich: skipped", zap.String("reason", reason))
		return Outcome{Status: StatusSkipped, Reason: reason}
	}

	var (
		found    Contact
		attempts int
	)
	retryCfg := resilience.LinearRetryConfig(e.cfg.MaxAttempts, e.cfg.RetryBackoffMs)
	retryCfg.OnRetry = resilience.RetryLogger("enrich", rec.URL)

	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		attempts++
		c, err := e.Scan(ctx, s, rec.URL)
		if err != nil {
			return err
		}
		if c.Empty() {
			return errNoContact
		}
		found = c
		return nil
	})
	if err != nil {
		log.Info("enrich: exhausted", zap.Int("attempts", attempts), zap.Error(err))
		return Outcome{Status: StatusExhausted, Attempts: attempts, Reason: err.Error()}
	}

	status := applyContact(rec, found)
	log.Info("enrich: contact found", zap.String("status", string(status)), zap.Int("attempts", attempts))
	return Outcome{Status: status, Attempts: attempts}
}

// applyContact assigns an email (and address) when one was found, otherwise
// the phone (and address). Present fields are kept.
func applyContact(rec *model.BusinessRecord, c Contact) Status {
	c = c.Preferred()
	status := StatusPhone
	if c.Email != "" {
		status = StatusEmail
		if model.IsAbsent(rec.Email) {
			rec.Email = c.Email
		}
	} else if model.IsAbsent(rec.Phone) {
		rec.Phone = c.Phone
	}
	if c.Address != "" && model.IsAbsent(rec.Address) {
		rec.Address = c.Address
	}
	return status
}

// Scan loads rawURL once (with navigation retries) and extracts every
// contact field it can find.
func (e *Enricher) Scan(ctx context.Context, s browser.Session, rawURL string) (Contact, error) {
	res, err := e.nav.Fetch(ctx, s, rawURL, navigate.Options{MaxRetries: e.cfg.NavigationRetries})
	if err != nil {
		return Contact{}, err
	}
	c := ScanDocument(res.Document)
	if c.Email != "" && e.verifier != nil && !e.verifier.Verify(ctx, c.Email) {
		zap.L().Debug("enrich: email rejected by verifier", zap.String("email", c.Email))
		c.Email = ""
	}
	return c, nil
}

// ScanDocument extracts contact fields from a rendered page. mailto: and
// tel: links are preferred over free text.
func ScanDocument(doc *browser.Document) Contact {
	var c Contact

	doc.Find(`a[href]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case c.Email == "" && strings.HasPrefix(lower, "mailto:"):
			c.Email = sanitizeEmail(href[len("mailto:"):])
		case c.Phone == "" && strings.HasPrefix(lower, "tel:"):
			if tel := normalizeTel(href); countDigits(tel) >= 10 && countDigits(tel) <= 13 {
				c.Phone = tel
			}
		}
		return c.Email == "" || c.Phone == ""
	})

	text := doc.VisibleText()
	if c.Email == "" {
		c.Email, _ = ExtractEmail(text)
	}
	if c.Phone == "" {
		c.Phone, _ = ExtractPhone(text)
	}
	c.Address, _ = ExtractAddress(text)
	return c
}

func isWebURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// BatchDelay returns the configured pause between enrichment batches.
func (e *Enricher) BatchDelay() time.Duration {
	return time.Duration(e.cfg.BatchDelayMs) * time.Millisecond
}

// Concurrency returns the configured batch size.
func (e *Enricher) Concurrency() int {
	if e.cfg.Concurrency <= 0 {
		return 1
	}
	return e.cfg.Concurrency
}
