package source

import (
	"context"
	"fmt"
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

const listingSelector = ".listing__content"

// ListingDirectory walks the paginated directory search.
type ListingDirectory struct {
	cfg config.ListingDirectoryConfig
	nav *navigate.Navigator
	now func() time.Time
}

// NewListingDirectory creates a ListingDirectory adapter.
func NewListingDirectory(cfg config.ListingDirectoryConfig, nav *navigate.Navigator) *ListingDirectory {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.yellowpages.ca"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &ListingDirectory{cfg: cfg, nav: nav, now: time.Now}
}

// Source implements Adapter.
func (l *ListingDirectory) Source() model.Source { return model.SourceListingDirectory }

func (l *ListingDirectory) pageURL(q model.Query, n int) string {
	what, where := model.SearchTerms(q)
	u := fmt.Sprintf("%s/search/si/%d/%s", strings.TrimRight(l.cfg.BaseURL, "/"), n, url.PathEscape(what))
	if where != "" {
		u += "/" + url.PathEscape(where)
	}
	return u
}

// Extract implements Adapter.
func (l *ListingDirectory) Extract(ctx context.Context, s browser.Session, q model.Query) ([]model.BusinessRecord, error) {
	log := zap.L().With(zap.String("component", "source"), zap.String("source", string(l.Source())))

	page, err := s.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "source: listing_directory: open page")
	}
	defer func() { _ = page.Close() }()

	scrapedAt := l.now()
	var records []model.BusinessRecord

	for n := 1; n <= l.cfg.MaxPages && !limitReached(len(records), q.MaxResults); n++ {
		target := l.pageURL(q, n)
		plog := log.With(zap.String("url", target), zap.Int("page", n))

		res, err := l.nav.Navigate(ctx, page, target, navigate.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "source: listing_directory")
			}
			plog.Warn("source: navigation failed, stopping pagination", zap.Error(err))
			break
		}

		doc := res.Document
		if !doc.Has(listingSelector) {
			// Later pages without listings mark the end of the results.
			if n > 1 {
				break
			}
			if err := waitMarker(ctx, page, listingSelector, l.nav.Defaults().Timeout); err != nil {
				plog.Warn("source: extraction mismatch", zap.Error(err))
				break
			}
			if fresh, err := captureDocument(ctx, page, l.nav.Defaults().Timeout); err == nil {
				doc = fresh
			}
		}

		added := parseListings(doc, q, scrapedAt, &records)
		plog.Debug("source: page parsed", zap.Int("added", added))
		if added == 0 {
			break
		}
	}

	log.Info("source: extracted", zap.Int("count", len(records)))
	return records, nil
}

// parseListings appends the page's listings to records, continuing the rank
// sequence, and returns how many were added.
func parseListings(doc *browser.Document, q model.Query, scrapedAt time.Time, records *[]model.BusinessRecord) int {
	added := 0
	doc.Find(listingSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if limitReached(len(*records), q.MaxResults) {
			return false
		}

		name := el.Find(".listing__name--link").First()
		rec, ok := model.NewRecord(model.SourceListingDirectory, len(*records)+1, browser.Text(name), q.City, scrapedAt)
		if !ok {
			return true
		}

		profile := ""
		if href, ok := name.Attr("href"); ok {
			profile = doc.Resolve(href)
		}
		website := ""
		if href, ok := el.Find(".mlr__item--website a").First().Attr("href"); ok {
			website = unwrapRedirect(doc.Resolve(href), "redirect")
		}
		if website != "" {
			rec.URL = website
		} else {
			rec.URL = profile
		}

		rec.Phone = browser.Text(el.Find(".mlr__item--phone").First())
		rec.Address = browser.Text(el.Find(".listing__address").First())

		*records = append(*records, rec)
		added++
		return true
	})
	return added
}

// unwrapRedirect returns the target of tracking links such as
// /gourl/...?redirect=https%3A%2F%2Fexample.com; other links pass through.
func unwrapRedirect(link, param string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get(param); strings.HasPrefix(target, "http") {
		return target
	}
	return link
}
