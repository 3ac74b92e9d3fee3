package pricefed

import (
	"context"
	"fmt"
	"log"

	"github.com/pevans/pricefed/archive"
	"github.com/pevans/pricefed/config"
	"github.com/pevans/pricefed/geo"
	"github.com/pevans/pricefed/listing"
	"github.com/pevans/pricefed/store"
	"github.com/prometheus/client_golang/prometheus"
)

// App is a fully wired pipeline and the store it writes to.
type App struct {
	Config   *config.FileConfig
	Store    *store.Store
	Pipeline *Pipeline
	Updater  *UpdateService
	Metrics  *Metrics
}

// OpenApp opens the store described by cfg, seeds its reference data and
// builds the pipeline and update service. Metrics are registered with reg
// when it is non-nil.
func OpenApp(ctx context.Context, cfg *config.FileConfig, reg prometheus.Registerer) (*App, error) {
	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := st.SeedFuelTypes(ctx, cfg.FuelTypes); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to seed fuel types: %w", err)
	}
	for _, city := range cfg.Geography.Cities {
		if _, err := st.SeedCity(ctx, city.Name, city.Lat, city.Lon); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to seed city %s: %w", city.Name, err)
		}
	}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		var mirror archive.Uploader
		if cfg.Archive.S3 != nil {
			uploader, err := archive.NewS3Uploader(ctx, *cfg.Archive.S3)
			if err != nil {
				log.Printf("WARN: Archive mirror disabled: %v", err)
			} else {
				mirror = uploader
			}
		}
		archiver = archive.New(cfg.Archive.Dir, mirror)
	}

	var metrics *Metrics
	if reg != nil {
		metrics = NewMetrics(reg)
	}

	pipeline := NewPipeline(PipelineDeps{
		Store:          st,
		Source:         listing.NewHTTPSource(cfg.Source.HTTPSourceConfig()),
		Selectors:      cfg.Selectors,
		FuelRules:      cfg.FuelRules,
		Normalizer:     geo.NewNormalizer(cfg.Geography.NormalizerConfig),
		DetectRadiusKm: cfg.Geography.DetectRadiusKm,
		MaxPages:       cfg.Source.MaxPages,
		Archiver:       archiver,
		Metrics:        metrics,
	})

	updater := NewUpdateService(pipeline, &UpdateConfig{
		Region:             cfg.Source.Region,
		StalenessThreshold: cfg.Update.StalenessThreshold,
		CheckInterval:      cfg.Update.CheckInterval,
	})

	return &App{
		Config:   cfg,
		Store:    st,
		Pipeline: pipeline,
		Updater:  updater,
		Metrics:  metrics,
	}, nil
}

// OpenForReading opens the store described by cfg without seeding reference
// data or building a source. The app has no update service; its pipeline
// only answers ShouldRun.
func OpenForReading(cfg *config.FileConfig) (*App, error) {
	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &App{
		Config:   cfg,
		Store:    st,
		Pipeline: NewPipeline(PipelineDeps{Store: st}),
	}, nil
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}
