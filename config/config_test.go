package config

import (
	"testing"
	"time"

	"github.com/pevans/pricefed/archive"
	"github.com/pevans/pricefed/scraper"
	"github.com/pevans/pricefed/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault_IsValid verifies the defaults pass validation
func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, store.TypeSQLite, cfg.Storage.Type)
	assert.Equal(t, DefaultRegion, cfg.Source.Region)
	assert.Equal(t, "https://russiabase.ru/prices", cfg.Source.BaseURL)
	assert.Len(t, cfg.FuelTypes, 4)
	assert.Equal(t, 7.0, cfg.Geography.DetectRadiusKm)
}

// TestValidate_Problems verifies each kind of bad value is reported
func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FileConfig)
		want   string
	}{
		{"storage type", func(c *FileConfig) { c.Storage.Type = "mysql" }, "storage.type"},
		{"storage dsn", func(c *FileConfig) { c.Storage.DSN = "" }, "storage.dsn"},
		{"base url", func(c *FileConfig) { c.Source.BaseURL = "" }, "source.base_url"},
		{"max pages", func(c *FileConfig) { c.Source.MaxPages = 0 }, "source.max_pages"},
		{"timeout", func(c *FileConfig) { c.Source.Timeout = 0 }, "source.timeout"},
		{"rate", func(c *FileConfig) { c.Source.RequestsPerSecond = -1 }, "requests_per_second"},
		{"selectors", func(c *FileConfig) { c.Selectors.CardSelector = "" }, "selectors.card_selector"},
		{"no rules", func(c *FileConfig) { c.FuelRules = nil }, "fuel_rules must not be empty"},
		{"bad rule", func(c *FileConfig) { c.FuelRules = []scraper.FuelRule{{Code: "AI92"}} }, "fuel_rules[0]"},
		{"duplicate fuel", func(c *FileConfig) {
			c.FuelTypes = append(c.FuelTypes, store.FuelType{Code: "AI92", Name: "again"})
		}, "duplicated"},
		{"radius", func(c *FileConfig) { c.Geography.DetectRadiusKm = -1 }, "detect_radius_km"},
		{"city", func(c *FileConfig) { c.Geography.Cities = []CityConfig{{Name: "X", Lat: 91}} }, "geography.cities"},
		{"staleness", func(c *FileConfig) { c.Update.StalenessThreshold = 0 }, "staleness_threshold"},
		{"interval", func(c *FileConfig) { c.Update.CheckInterval = -time.Second }, "check_interval"},
		{"archive dir", func(c *FileConfig) { c.Archive.Dir = "" }, "archive.dir"},
		{"bucket", func(c *FileConfig) { c.Archive.S3 = &archive.S3Config{} }, "archive.s3.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestValidate_DisabledArchiveNeedsNoDir verifies dir is optional when off
func TestValidate_DisabledArchiveNeedsNoDir(t *testing.T) {
	cfg := Default()
	cfg.Archive = ArchiveConfig{}
	assert.NoError(t, cfg.Validate())
}

// TestSourceConfig_HTTPSourceConfig verifies the conversion keeps settings
func TestSourceConfig_HTTPSourceConfig(t *testing.T) {
	src := SourceConfig{
		BaseURL:           "http://localhost/prices",
		Timeout:           3 * time.Second,
		RequestsPerSecond: 0,
	}

	got := src.HTTPSourceConfig()
	assert.Equal(t, "http://localhost/prices", got.BaseURL)
	assert.Equal(t, 3*time.Second, got.Timeout)
	assert.Zero(t, got.RequestsPerSecond)
	assert.NotEmpty(t, got.UserAgent, "an empty user agent falls back to the default")
}

// TestRedacted verifies secrets are masked without touching the original
func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Storage = store.StorageConfig{Type: store.TypePostgres, DSN: "postgres://user:pw@db/prices"}
	cfg.Archive.S3 = &archive.S3Config{Bucket: "prices", AccessKey: "AKIA", SecretKey: "secret"}

	out := cfg.Redacted()
	assert.Equal(t, RedactedValue, out.Storage.DSN)
	assert.Equal(t, RedactedValue, out.Archive.S3.AccessKey)
	assert.Equal(t, RedactedValue, out.Archive.S3.SecretKey)
	assert.Equal(t, "prices", out.Archive.S3.Bucket)

	assert.Equal(t, "postgres://user:pw@db/prices", cfg.Storage.DSN)
	assert.Equal(t, "secret", cfg.Archive.S3.SecretKey)

	sqlite := Default().Redacted()
	assert.Equal(t, "pricefed.db", sqlite.Storage.DSN)
}
