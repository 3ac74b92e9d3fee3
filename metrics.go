package pricefed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the run counters exported on /metrics.
type Metrics struct {
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	PagesFetched    prometheus.Counter
	Listings        prometheus.Counter
	Dropped         *prometheus.CounterVec
	Imputed         prometheus.Counter
	Prices          *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
	RunInProgress   prometheus.Gauge
	CitiesCreated   prometheus.Counter
	StationsCreated prometheus.Counter
}

// NewMetrics registers the run metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefed_runs_total",
			Help: "Ingestion runs by outcome.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricefed_run_duration_seconds",
			Help:    "Wall time of ingestion runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricefed_pages_fetched_total",
			Help: "Listing pages fetched from the upstream.",
		}),
		Listings: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricefed_listings_total",
			Help: "Station cards extracted from listing pages.",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefed_dropped_total",
			Help: "Listings or prices dropped during cleaning by reason.",
		}, []string{"reason"}),
		Imputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricefed_prices_imputed_total",
			Help: "Missing prices filled with the city and fuel median.",
		}),
		Prices: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefed_prices_total",
			Help: "Price records by store outcome.",
		}, []string{"outcome"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pricefed_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pricefed_run_in_progress",
			Help: "1 while an ingestion run is active.",
		}),
		CitiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricefed_cities_created_total",
			Help: "Cities created on first sighting.",
		}),
		StationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pricefed_stations_created_total",
			Help: "Competitor stations created on first sighting.",
		}),
	}
}

// observe records one finished run. m may be nil.
func (m *Metrics) observe(s *Summary, runErr error) {
	if m == nil || s == nil {
		return
	}

	status := "succeeded"
	if runErr != nil {
		status = "failed"
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())

	m.PagesFetched.Add(float64(s.PagesFetched))
	m.Listings.Add(float64(s.Listings))
	m.Dropped.WithLabelValues("no_city").Add(float64(s.Cleaning.DroppedNoCity))
	m.Dropped.WithLabelValues("no_name").Add(float64(s.Cleaning.DroppedNoName))
	m.Dropped.WithLabelValues("unfillable").Add(float64(s.Cleaning.Unfillable))
	m.Dropped.WithLabelValues("unknown_fuel").Add(float64(s.UnknownFuel))
	m.Imputed.Add(float64(s.Cleaning.Imputed))
	m.Prices.WithLabelValues("written").Add(float64(s.PricesWritten))
	m.Prices.WithLabelValues("skipped").Add(float64(s.PricesSkipped))
	m.CitiesCreated.Add(float64(s.CitiesCreated))
	m.StationsCreated.Add(float64(s.StationsCreated))

	if runErr == nil {
		m.LastSuccess.Set(float64(s.FinishedAt.Unix()))
	}
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.RunInProgress.Set(1)
	} else {
		m.RunInProgress.Set(0)
	}
}
