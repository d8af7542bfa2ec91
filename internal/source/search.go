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
	"github.com/sells-group/listing-cli/internal/enrich"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/navigate"
)

const searchResultSelector = ".result"

// SearchEngine reads organic results from the HTML search endpoint.
type SearchEngine struct {
	cfg config.SearchEngineConfig
	nav *navigate.Navigator
	now func() time.Time
}

// NewSearchEngine creates a SearchEngine adapter.
func NewSearchEngine(cfg config.SearchEngineConfig, nav *navigate.Navigator) *SearchEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://html.duckduckgo.com"
	}
	return &SearchEngine{cfg: cfg, nav: nav, now: time.Now}
}

// Source implements Adapter.
func (e *SearchEngine) Source() model.Source { return model.SourceSearchEngine }

func (e *SearchEngine) searchURL(q model.Query) string {
	return strings.TrimRight(e.cfg.BaseURL, "/") + "/html/?q=" + url.QueryEscape(q.Text)
}

// Extract implements Adapter.
func (e *SearchEngine) Extract(ctx context.Context, s browser.Session, q model.Query) ([]model.BusinessRecord, error) {
	target := e.searchURL(q)
	log := zap.L().With(
		zap.String("component", "source"),
		zap.String("source", string(e.Source())),
		zap.String("url", target),
	)

	page, err := s.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "source: search_engine: open page")
	}
	defer func() { _ = page.Close() }()

	res, err := e.nav.Navigate(ctx, page, target, navigate.Options{})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: search_engine")
		}
		log.Warn("source: navigation failed, no results", zap.Error(err))
		return nil, nil
	}

	if !res.Document.Has(searchResultSelector) {
		log.Warn("source: extraction mismatch",
			zap.String("page_title", res.Document.Title()),
			zap.Error(ErrMarkerNotFound),
		)
		return nil, nil
	}

	records := parseSearchResults(res.Document, q, e.now())
	log.Info("source: extracted", zap.Int("count", len(records)))
	return records, nil
}

func parseSearchResults(doc *browser.Document, q model.Query, scrapedAt time.Time) []model.BusinessRecord {
	var records []model.BusinessRecord
	doc.Find(searchResultSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if limitReached(len(records), q.MaxResults) {
			return false
		}
		if el.HasClass("result--ad") {
			return true
		}

		link := el.Find(".result__a").First()
		rec, ok := model.NewRecord(model.SourceSearchEngine, len(records)+1, browser.Text(link), q.City, scrapedAt)
		if !ok {
			return true
		}
		if href, ok := link.Attr("href"); ok {
			rec.URL = unwrapRedirect(doc.Resolve(href), "uddg")
		}
		snippet := browser.Text(el.Find(".result__snippet").First())
		if phone, ok := enrich.ExtractPhone(snippet); ok {
			rec.Phone = phone
		}

		records = append(records, rec)
		return true
	})
	return records
}
