package listing

import (
	"bytes"
	"context"
	"log"

	"github.com/pevans/pricefed/scraper"
)

// DefaultMaxPages bounds a single collection against a source that never
// stops returning cards.
const DefaultMaxPages = 200

// Reasons a collection stopped.
const (
	StopFetchFailed = "fetch_failed"
	StopNoRecords   = "no_records"
	StopMaxPages    = "max_pages"
	StopCancelled   = "cancelled"
)

// Collector walks the listing pages of a region in order.
type Collector struct {
	Source   PageSource
	Config   scraper.ListingConfig
	Rules    []scraper.FuelRule
	MaxPages int
}

// CollectResult is everything gathered for one region.
type CollectResult struct {
	Listings     []RawListing
	PagesFetched int
	StopReason   string
}

// Collect fetches pages 1, 2, ... until the source fails, a page yields no
// cards, or MaxPages is reached. Neither of the first two is an error. The
// only error is cancellation of ctx, checked before every fetch; the pages
// collected so far are returned with it.
func (c *Collector) Collect(ctx context.Context, region int) (*CollectResult, error) {
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	result := &CollectResult{StopReason: StopMaxPages}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			result.StopReason = StopCancelled
			return result, err
		}

		body, err := c.Source.Fetch(ctx, region, page)
		if err != nil || len(body) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.StopReason = StopCancelled
				return result, ctxErr
			}
			log.Printf("INFO: Page %d of region %d unavailable, stopping: %v", page, region, err)
			result.StopReason = StopFetchFailed
			return result, nil
		}
		result.PagesFetched++

		records, err := ExtractHTML(bytes.NewReader(body), c.Config, c.Rules)
		if err != nil {
			log.Printf("WARN: Page %d of region %d is not valid HTML, stopping: %v", page, region, err)
			result.StopReason = StopNoRecords
			return result, nil
		}

		found := 0
		for record := range records {
			result.Listings = append(result.Listings, record)
			found++
		}

		if found == 0 {
			result.StopReason = StopNoRecords
			return result, nil
		}
	}

	log.Printf("WARN: Region %d reached the page limit (%d)", region, maxPages)
	return result, nil
}
