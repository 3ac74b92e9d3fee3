package prices

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pevans/pricefed/geo"
	"github.com/pevans/pricefed/listing"
)

// CityResolver maps a raw listing location to a canonical city name, or to
// geo.Unusable.
type CityResolver interface {
	Resolve(raw string) string
}

// Record is one station's price for one fuel, ready to be persisted.
type Record struct {
	City        string
	StationName string
	Brand       *string
	Address     *string
	FuelCode    string
	Price       float64
	// Imputed is set when Price is a group median rather than an observed
	// value.
	Imputed    bool
	ObservedAt time.Time
}

// Report counts what cleaning did to one run's listings.
type Report struct {
	Listings      int `json:"listings"`
	DroppedNoName int `json:"dropped_no_name"`
	DroppedNoCity int `json:"dropped_no_city"`
	Prices        int `json:"prices"`
	MissingPrices int `json:"missing_prices"`
	Imputed       int `json:"imputed"`
	Unfillable    int `json:"unfillable"`
	Records       int `json:"records"`
}

// Cleaner resolves cities and imputes missing prices.
type Cleaner struct {
	Resolver CityResolver
}

// NewCleaner creates a cleaner using resolver for locations.
func NewCleaner(resolver CityResolver) *Cleaner {
	return &Cleaner{Resolver: resolver}
}

type entry struct {
	record Record
	group  string
	valid  bool
}

// Clean converts a whole run's listings into records. Medians are computed
// per (city, fuel) over everything passed in, so it must be called once with
// the complete run rather than page by page. Output order follows input
// order; within a listing, fuels are ordered by code.
func (c *Cleaner) Clean(listings []listing.RawListing, observedAt time.Time) ([]Record, Report) {
	report := Report{Listings: len(listings)}

	var entries []entry
	present := map[string][]float64{}

	for _, l := range listings {
		name := strings.Join(strings.Fields(l.StationName), " ")
		if name == "" {
			report.DroppedNoName++
			continue
		}

		city := c.Resolver.Resolve(l.RawLocation)
		if city == geo.Unusable {
			report.DroppedNoCity++
			continue
		}

		codes := make([]string, 0, len(l.Prices))
		for code := range l.Prices {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			report.Prices++

			e := entry{
				record: Record{
					City:        city,
					StationName: name,
					Brand:       l.Brand,
					Address:     l.Address,
					FuelCode:    code,
					ObservedAt:  observedAt,
				},
				group: geo.Key(city) + "\x00" + code,
			}

			if price, ok := ParsePrice(l.Prices[code]); ok {
				e.record.Price = price
				e.valid = true
				present[e.group] = append(present[e.group], price)
			} else {
				report.MissingPrices++
			}

			entries = append(entries, e)
		}
	}

	medians := make(map[string]float64, len(present))
	for group, values := range present {
		if m, ok := Median(values); ok {
			medians[group] = m
		}
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if !e.valid {
			m, ok := medians[e.group]
			if !ok {
				report.Unfillable++
				continue
			}
			e.record.Price = m
			e.record.Imputed = true
			report.Imputed++
		}
		records = append(records, e.record)
	}
	report.Records = len(records)

	if report.DroppedNoCity > 0 || report.DroppedNoName > 0 || report.Unfillable > 0 {
		log.Printf("WARN: Cleaning dropped %d listings without city, %d without name, %d unfillable prices",
			report.DroppedNoCity, report.DroppedNoName, report.Unfillable)
	}
	log.Printf("INFO: Cleaned %d listings into %d price records (%d imputed)",
		report.Listings, report.Records, report.Imputed)

	return records, report
}
