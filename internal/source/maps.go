package source

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
)

const (
	mapsCardSelector   = ".Nv2PK"
	mapsFeedSelector   = `div[role="feed"]`
	mapsDetailSelector = "h1"
)

// consentScript dismisses the cookie consent dialog when present.
const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

// MapDirectory extracts result cards from the infinite-scroll map search.
type MapDirectory struct {
	cfg config.MapDirectoryConfig
	nav *navigate.Navigator
	now func() time.Time
}

// NewMapDirectory creates a MapDirectory adapter.
func NewMapDirectory(cfg config.MapDirectoryConfig, nav *navigate.Navigator) *MapDirectory {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.google.com"
	}
	return &MapDirectory{cfg: cfg, nav: nav, now: time.Now}
}

// Source implements Adapter.
func (m *MapDirectory) Source() model.Source { return model.SourceMapDirectory }

func (m *MapDirectory) searchURL(q model.Query) string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + "/maps/search/" + url.PathEscape(q.Text) + "/"
}

// Extract implements Adapter.
func (m *MapDirectory) Extract(ctx context.Context, s browser.Session, q model.Query) ([]model.BusinessRecord, error) {
	target := m.searchURL(q)
	log := zap.L().With(
		zap.String("component", "source"),
		zap.String("source", string(m.Source())),
		zap.String("url", target),
	)

	page, err := s.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "source: map_directory: open page")
	}
	defer func() { _ = page.Close() }()

	if _, err := m.nav.Navigate(ctx, page, target, navigate.Options{}); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: map_directory")
		}
		log.Warn("source: navigation failed, no results", zap.Error(err))
		return nil, nil
	}

	timeout := m.nav.Defaults().Timeout
	if err := withStep(ctx, timeout, func(ctx context.Context) error {
		return page.Evaluate(ctx, consentScript)
	}); err != nil {
		log.Debug("source: consent script failed", zap.Error(err))
	}

	if err := waitMarker(ctx, page, mapsCardSelector, timeout); err != nil {
		log.Warn("source: extraction mismatch", zap.Error(err))
		return nil, nil
	}

	pause := time.Duration(m.cfg.ScrollPauseMs) * time.Millisecond
	scrollBudget := timeout + time.Duration(m.cfg.ScrollIterations)*pause
	if err := withStep(ctx, scrollBudget, func(ctx context.Context) error {
		return page.Scroll(ctx, mapsFeedSelector, m.cfg.ScrollIterations, pause)
	}); err != nil {
		log.Debug("source: scroll failed, using loaded cards", zap.Error(err))
	}

	doc, err := captureDocument(ctx, page, timeout)
	if err != nil {
		log.Warn("source: capture failed", zap.Error(err))
		return nil, nil
	}

	records, links := parseMapCards(doc, q, m.now())

	if m.cfg.DetailPages {
		m.readDetails(ctx, page, records, links)
	}

	log.Info("source: extracted", zap.Int("count", len(records)))
	return records, nil
}

// parseMapCards returns records in card order plus each record's place link.
func parseMapCards(doc *browser.Document, q model.Query, scrapedAt time.Time) ([]model.BusinessRecord, []string) {
	var (
		records []model.BusinessRecord
		links   []string
	)
	doc.Find(mapsCardSelector).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if limitReached(len(records), q.MaxResults) {
			return false
		}

		title := browser.Text(card.Find(".qBF1Pd").First())
		if title == "" {
			title, _ = card.Find("a[aria-label]").First().Attr("aria-label")
		}
		rec, ok := model.NewRecord(model.SourceMapDirectory, len(records)+1, title, q.City, scrapedAt)
		if !ok {
			return true
		}

		rec.Industry = industryFromDescription(browser.Text(card.Find(".W4Efsd").First()))
		rec.Rating = browser.Text(card.Find(".MW4etd").First())

		link := ""
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			link = doc.Resolve(href)
		}
		rec.URL = link

		records = append(records, rec)
		links = append(links, link)
		return true
	})
	return records, links
}

// readDetails opens each place page on the same tab and fills phone, address
// and website. Failures leave the record as extracted.
func (m *MapDirectory) readDetails(ctx context.Context, page browser.Page, records []model.BusinessRecord, links []string) {
	log := zap.L().With(zap.String("component", "source"), zap.String("source", string(m.Source())))

	for i := range records {
		if ctx.Err() != nil {
			return
		}
		if links[i] == "" {
			continue
		}
		res, err := m.nav.Navigate(ctx, page, links[i], navigate.Options{ReadySelector: mapsDetailSelector})
		if err != nil {
			log.Debug("source: detail page skipped", zap.String("title", records[i].Title), zap.Error(err))
			continue
		}
		applyPlaceDetails(&records[i], res.Document)

		if err := withStep(ctx, m.nav.Defaults().Timeout, page.Back); err != nil {
			log.Debug("source: back navigation failed", zap.Error(err))
		}
	}
}

func applyPlaceDetails(rec *model.BusinessRecord, doc *browser.Document) {
	phoneBtn := doc.Find(`button[data-item-id^="phone"]`).First()
	if phone := browser.Text(phoneBtn); phone != "" {
		rec.Phone = phone
	} else if id, ok := phoneBtn.Attr("data-item-id"); ok {
		rec.Phone = strings.TrimPrefix(strings.TrimPrefix(id, "phone:"), "tel:")
	}

	if addr := browser.Text(doc.Find(`button[data-item-id="address"]`).First()); addr != "" {
		rec.Address = addr
	}

	if href, ok := doc.Find(`a[data-item-id="authority"]`).First().Attr("href"); ok {
		if site := doc.Resolve(href); site != "" {
			rec.URL = site
		}
	}
}
