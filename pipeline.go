// Package pricefed runs the fuel price ingestion pipeline: it walks the
// upstream listing pages of a region, cleans the prices, archives the
// snapshot and stores one price per station, fuel and day.
package pricefed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/pricefed/archive"
	"github.com/pevans/pricefed/geo"
	"github.com/pevans/pricefed/listing"
	"github.com/pevans/pricefed/prices"
	"github.com/pevans/pricefed/scraper"
	"github.com/pevans/pricefed/store"
)

// Custom errors for pipeline runs
var (
	ErrNoPages       = errors.New("no listing pages could be fetched")
	ErrRunInProgress = errors.New("an ingestion run is already in progress")
)

// Summary reports what one run did. It is returned even when the run fails
// so that partial counts stay visible.
type Summary struct {
	RunID           uuid.UUID     `json:"run_id"`
	Region          int           `json:"region"`
	PagesFetched    int           `json:"pages_fetched"`
	StopReason      string        `json:"stop_reason"`
	Listings        int           `json:"listings"`
	Records         int           `json:"records"`
	CitiesCreated   int           `json:"cities_created"`
	StationsCreated int           `json:"stations_created"`
	PricesWritten   int           `json:"prices_written"`
	PricesSkipped   int           `json:"prices_skipped"`
	UnknownFuel     int           `json:"unknown_fuel"`
	Cleaning        prices.Report `json:"cleaning"`
	ArchivePath     string        `json:"archive_path,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// PipelineDeps are the collaborators of a Pipeline.
type PipelineDeps struct {
	Store     *store.Store
	Source    listing.PageSource
	Selectors scraper.ListingConfig
	FuelRules []scraper.FuelRule
	// Normalizer canonicalizes location text; nil uses the defaults.
	Normalizer     *geo.Normalizer
	DetectRadiusKm float64
	MaxPages       int
	// Archiver, when set, receives each run's cleaned records.
	Archiver *archive.Archiver
	Metrics  *Metrics
	Now      func() time.Time
}

// Pipeline runs ingestion passes. At most one pass runs at a time per
// Pipeline.
type Pipeline struct {
	deps    PipelineDeps
	running sync.Mutex
	active  atomic.Bool
}

// NewPipeline creates a pipeline from deps.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Normalizer == nil {
		deps.Normalizer = geo.NewNormalizer(geo.DefaultNormalizerConfig())
	}
	if deps.FuelRules == nil {
		deps.FuelRules = scraper.DefaultFuelRules()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Pipeline{deps: deps}
}

// RunFullParsing collects every listing page of region, cleans the result
// as a whole and stores it. It returns ErrRunInProgress when another pass is
// active, ErrNoPages when not even the first page could be fetched, and any
// store error. Records committed before a store error are kept.
func (p *Pipeline) RunFullParsing(ctx context.Context, region int) (*Summary, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	p.active.Store(true)
	defer p.active.Store(false)
	p.deps.Metrics.setRunning(true)
	defer p.deps.Metrics.setRunning(false)

	summary := &Summary{Region: region, StartedAt: p.deps.Now()}

	run, err := p.deps.Store.CreateRun(ctx, region, summary.StartedAt)
	if err != nil {
		return summary, fmt.Errorf("failed to start run: %w", err)
	}
	summary.RunID = run.RunID
	log.Printf("INFO: Run %s starting for region %d", run.RunID, region)

	runErr := p.run(ctx, region, summary)

	summary.FinishedAt = p.deps.Now()
	finishedAt := summary.FinishedAt
	run.FinishedAt = &finishedAt
	run.PagesFetched = summary.PagesFetched
	run.Listings = summary.Listings
	run.Records = summary.Records
	run.CitiesCreated = summary.CitiesCreated
	run.StationsCreated = summary.StationsCreated
	run.PricesWritten = summary.PricesWritten
	run.PricesSkipped = summary.PricesSkipped

	// The journal row is closed even when ctx was cancelled mid-run.
	if err := p.deps.Store.FinishRun(context.WithoutCancel(ctx), run, runErr); err != nil {
		log.Printf("ERROR: Failed to finish run %s: %v", run.RunID, err)
	}

	p.deps.Metrics.observe(summary, runErr)

	if runErr != nil {
		log.Printf("ERROR: Run %s failed after %d pages: %v", run.RunID, summary.PagesFetched, runErr)
		return summary, runErr
	}

	log.Printf("INFO: Run %s finished: %d pages, %d records, %d cities, %d stations, %d prices written, %d skipped",
		run.RunID, summary.PagesFetched, summary.Records, summary.CitiesCreated,
		summary.StationsCreated, summary.PricesWritten, summary.PricesSkipped)

	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, region int, summary *Summary) error {
	collector := &listing.Collector{
		Source:   p.deps.Source,
		Config:   p.deps.Selectors,
		Rules:    p.deps.FuelRules,
		MaxPages: p.deps.MaxPages,
	}

	collected, err := collector.Collect(ctx, region)
	if collected != nil {
		summary.PagesFetched = collected.PagesFetched
		summary.StopReason = collected.StopReason
		summary.Listings = len(collected.Listings)
	}
	if err != nil {
		return err
	}
	if collected.PagesFetched == 0 {
		return ErrNoPages
	}

	centroids, err := p.deps.Store.CityCentroids(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cities: %w", err)
	}
	resolver := &geo.Resolver{
		Normalizer: p.deps.Normalizer,
		Cities:     centroids,
		RadiusKm:   p.deps.DetectRadiusKm,
	}

	records, report := prices.NewCleaner(resolver).Clean(collected.Listings, summary.StartedAt)
	summary.Cleaning = report
	summary.Records = len(records)

	if p.deps.Archiver != nil {
		path, err := p.deps.Archiver.Write(ctx, records)
		if err != nil {
			log.Printf("WARN: Failed to archive run %s: %v", summary.RunID, err)
		}
		summary.ArchivePath = path
	}

	result, err := store.NewWriter(p.deps.Store).Write(ctx, records)
	if result != nil {
		summary.CitiesCreated = result.CitiesCreated
		summary.StationsCreated = result.StationsCreated
		summary.PricesWritten = result.PricesWritten
		summary.PricesSkipped = result.PricesSkipped
		summary.UnknownFuel = result.UnknownFuel
	}
	if err != nil {
		return fmt.Errorf("failed to store prices: %w", err)
	}

	return nil
}

// Running reports whether a pass is active.
func (p *Pipeline) Running() bool {
	return p.active.Load()
}

// ShouldRun reports whether the data is older than threshold, or absent.
// The age counts from the newer of the last stored price and the last
// succeeded run, so a run that only re-saw today's prices still refreshes
// it.
func (p *Pipeline) ShouldRun(ctx context.Context, threshold time.Duration) (bool, error) {
	last, err := p.deps.Store.LastPriceTimestamp(ctx)
	if err != nil {
		return false, err
	}

	lastRun, err := p.deps.Store.LastSuccessfulRunAt(ctx)
	if err != nil {
		return false, err
	}
	if lastRun != nil && (last == nil || lastRun.After(*last)) {
		last = lastRun
	}

	return IsStale(last, p.deps.Now(), threshold), nil
}

// IsStale reports true when nothing has been recorded yet or when the last
// record is more than threshold older than now.
func IsStale(last *time.Time, now time.Time, threshold time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) > threshold
}
