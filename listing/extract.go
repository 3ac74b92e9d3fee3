// Package listing turns the upstream price aggregator's listing pages into
// raw station records.
package listing

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/pricefed/scraper"
)

// RawListing is one scraped station card before any cleaning. Prices maps a
// fuel code to the price text exactly as it appeared on the page.
type RawListing struct {
	StationName string
	Brand       *string
	Address     *string
	RawLocation string
	Prices      map[string]string
}

// Extract yields the station cards found in doc. The sequence is lazy and
// may be ranged over more than once; each pass walks the document again and
// yields the same records.
func Extract(doc *goquery.Document, cfg scraper.ListingConfig, rules []scraper.FuelRule) iter.Seq[RawListing] {
	return func(yield func(RawListing) bool) {
		if doc == nil || cfg.CardSelector == "" {
			return
		}

		cards := doc.Find(cfg.CardSelector)
		for i := range cards.Length() {
			if !yield(extractCard(cards.Eq(i), cfg, rules)) {
				return
			}
		}
	}
}

// ExtractHTML parses r and extracts its station cards.
func ExtractHTML(r io.Reader, cfg scraper.ListingConfig, rules []scraper.FuelRule) (iter.Seq[RawListing], error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return Extract(doc, cfg, rules), nil
}

func extractCard(card *goquery.Selection, cfg scraper.ListingConfig, rules []scraper.FuelRule) RawListing {
	listing := RawListing{
		StationName: selectText(card, cfg.NameSelector),
		Brand:       optionalText(card, cfg.BrandSelector),
		Address:     optionalText(card, cfg.AddressSelector),
		RawLocation: selectText(card, cfg.LocationSelector),
		Prices:      map[string]string{},
	}

	if cfg.PriceBlockSelector == "" {
		return listing
	}

	card.Find(cfg.PriceBlockSelector).Each(func(_ int, block *goquery.Selection) {
		label := selectText(block, cfg.FuelLabelSelector)
		price := selectText(block, cfg.PriceSelector)
		if label == "" || price == "" {
			return
		}

		code, ok := scraper.MatchFuel(label, rules)
		if !ok {
			return
		}

		// The first block for a code wins; aggregators sometimes repeat a
		// fuel with a loyalty-card price below the regular one.
		if _, seen := listing.Prices[code]; !seen {
			listing.Prices[code] = price
		}
	})

	return listing
}

// selectText returns the whitespace-normalized text of the first match of
// selector within s, or "" when the selector is empty or matches nothing.
func selectText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func optionalText(s *goquery.Selection, selector string) *string {
	text := selectText(s, selector)
	if text == "" {
		return nil
	}
	return &text
}
