// Package config holds the pricefed configuration file format and its
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pevans/pricefed/archive"
	"github.com/pevans/pricefed/geo"
	"github.com/pevans/pricefed/listing"
	"github.com/pevans/pricefed/scraper"
	"github.com/pevans/pricefed/store"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultRegion is the upstream region id of Ulyanovsk oblast.
const DefaultRegion = 46

// SourceConfig describes the upstream listing source.
type SourceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Region            int           `yaml:"region"`
	MaxPages          int           `yaml:"max_pages"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
}

// HTTPSourceConfig converts to the listing package's settings.
func (s SourceConfig) HTTPSourceConfig() listing.HTTPSourceConfig {
	cfg := listing.DefaultHTTPSourceConfig()
	cfg.BaseURL = s.BaseURL
	cfg.Timeout = s.Timeout
	cfg.RequestsPerSecond = s.RequestsPerSecond
	if s.UserAgent != "" {
		cfg.UserAgent = s.UserAgent
	}
	return cfg
}

// CityConfig is a city centroid known ahead of time.
type CityConfig struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// GeographyConfig controls city normalization and coordinate detection.
// Aliases in a file are added to the defaults; lists replace them.
type GeographyConfig struct {
	geo.NormalizerConfig `yaml:",inline"`
	DetectRadiusKm       float64      `yaml:"detect_radius_km"`
	Cities               []CityConfig `yaml:"cities"`
}

// UpdateConfig controls the staleness-gated updater.
type UpdateConfig struct {
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	CheckInterval      time.Duration `yaml:"check_interval"`
}

// ArchiveConfig controls the CSV snapshot written by each run.
type ArchiveConfig struct {
	Enabled bool              `yaml:"enabled"`
	Dir     string            `yaml:"dir"`
	S3      *archive.S3Config `yaml:"s3,omitempty"`
}

// FileConfig represents the structure of ~/.pricefed/config.yaml.
type FileConfig struct {
	Storage   store.StorageConfig   `yaml:"storage"`
	Source    SourceConfig          `yaml:"source"`
	Selectors scraper.ListingConfig `yaml:"selectors"`
	FuelRules []scraper.FuelRule    `yaml:"fuel_rules"`
	FuelTypes []store.FuelType      `yaml:"fuel_types"`
	Geography GeographyConfig       `yaml:"geography"`
	Update    UpdateConfig          `yaml:"update"`
	Archive   ArchiveConfig         `yaml:"archive"`
}

// Default returns the configuration used when no file is present.
func Default() *FileConfig {
	source := listing.DefaultHTTPSourceConfig()

	return &FileConfig{
		Storage: store.StorageConfig{Type: store.TypeSQLite, DSN: "pricefed.db"},
		Source: SourceConfig{
			BaseURL:           source.BaseURL,
			Region:            DefaultRegion,
			MaxPages:          listing.DefaultMaxPages,
			Timeout:           source.Timeout,
			RequestsPerSecond: source.RequestsPerSecond,
			UserAgent:         source.UserAgent,
		},
		Selectors: scraper.DefaultListingConfig(),
		FuelRules: scraper.DefaultFuelRules(),
		FuelTypes: store.DefaultFuelTypes(),
		Geography: GeographyConfig{
			NormalizerConfig: geo.DefaultNormalizerConfig(),
			DetectRadiusKm:   geo.DefaultDetectRadiusKm,
			Cities: []CityConfig{
				{Name: "Ульяновск", Lat: 54.3142, Lon: 48.4031},
				{Name: "Димитровград", Lat: 54.2138, Lon: 49.6184},
			},
		},
		Update: UpdateConfig{
			StalenessThreshold: 12 * time.Hour,
			CheckInterval:      30 * time.Minute,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Dir:     "archive",
		},
	}
}

// RedactedValue is shown in place of secrets.
const RedactedValue = "REDACTED"

// Redacted returns a copy of c with the database DSN and object storage
// credentials masked. SQLite paths are kept. The copy shares slices and
// maps with c.
func (c *FileConfig) Redacted() *FileConfig {
	out := *c
	if out.Storage.Type == store.TypePostgres && out.Storage.DSN != "" {
		out.Storage.DSN = RedactedValue
	}
	if c.Archive.S3 != nil {
		s3 := *c.Archive.S3
		if s3.AccessKey != "" {
			s3.AccessKey = RedactedValue
		}
		if s3.SecretKey != "" {
			s3.SecretKey = RedactedValue
		}
		out.Archive.S3 = &s3
	}
	return &out
}

// Validate reports every problem found in the configuration.
func (c *FileConfig) Validate() error {
	var problems []string

	switch c.Storage.Type {
	case store.TypeSQLite, store.TypePostgres:
	default:
		problems = append(problems, fmt.Sprintf("storage.type %q must be sqlite or postgres", c.Storage.Type))
	}
	if c.Storage.DSN == "" {
		problems = append(problems, "storage.dsn is required")
	}

	if c.Source.BaseURL == "" {
		problems = append(problems, "source.base_url is required")
	}
	if c.Source.Region <= 0 {
		problems = append(problems, "source.region must be positive")
	}
	if c.Source.MaxPages <= 0 {
		problems = append(problems, "source.max_pages must be positive")
	}
	if c.Source.Timeout <= 0 {
		problems = append(problems, "source.timeout must be positive")
	}
	if c.Source.RequestsPerSecond < 0 {
		problems = append(problems, "source.requests_per_second must not be negative")
	}

	if c.Selectors.CardSelector == "" || c.Selectors.NameSelector == "" {
		problems = append(problems, "selectors.card_selector and selectors.name_selector are required")
	}

	if len(c.FuelRules) == 0 {
		problems = append(problems, "fuel_rules must not be empty")
	}
	for i, rule := range c.FuelRules {
		if rule.Code == "" || len(rule.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("fuel_rules[%d] needs a code and keywords", i))
		}
	}

	seen := map[string]bool{}
	for i, ft := range c.FuelTypes {
		if ft.Code == "" || ft.Name == "" {
			problems = append(problems, fmt.Sprintf("fuel_types[%d] needs a code and name", i))
		}
		if seen[ft.Code] {
			problems = append(problems, fmt.Sprintf("fuel_types code %q is duplicated", ft.Code))
		}
		seen[ft.Code] = true
	}

	if c.Geography.DetectRadiusKm < 0 {
		problems = append(problems, "geography.detect_radius_km must not be negative")
	}
	for _, city := range c.Geography.Cities {
		if city.Name == "" || city.Lat < -90 || city.Lat > 90 || city.Lon < -180 || city.Lon > 180 {
			problems = append(problems, fmt.Sprintf("geography.cities entry %q has an invalid name or coordinates", city.Name))
		}
	}

	if c.Update.StalenessThreshold <= 0 {
		problems = append(problems, "update.staleness_threshold must be positive")
	}
	if c.Update.CheckInterval <= 0 {
		problems = append(problems, "update.check_interval must be positive")
	}

	if c.Archive.Enabled && c.Archive.Dir == "" {
		problems = append(problems, "archive.dir is required when the archive is enabled")
	}
	if c.Archive.S3 != nil && c.Archive.S3.Bucket == "" {
		problems = append(problems, "archive.s3.bucket is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
