package geo

import (
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func testCities() []CityCentroid {
	return []CityCentroid{
		{ID: 1, Name: "Ульяновск", Lat: ptr(54.3142), Lon: ptr(48.4031)},
		{ID: 2, Name: "Димитровград", Lat: ptr(54.2138), Lon: ptr(49.6184)},
		{ID: 3, Name: "Без координат"},
	}
}

// TestDetectCity_WithinRadius verifies a nearby point resolves to its city
func TestDetectCity_WithinRadius(t *testing.T) {
	id, ok := DetectCity(54.33, 48.40, testCities(), DefaultDetectRadiusKm)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

// TestDetectCity_OutsideRadius verifies a highway point resolves to nothing
func TestDetectCity_OutsideRadius(t *testing.T) {
	// Roughly halfway between the two cities.
	_, ok := DetectCity(54.26, 49.0, testCities(), DefaultDetectRadiusKm)
	assert.False(t, ok)
}

// TestDetectCity_Nearest verifies the strictly nearest city wins
func TestDetectCity_Nearest(t *testing.T) {
	cities := []CityCentroid{
		{ID: 7, Name: "Far", Lat: ptr(54.35), Lon: ptr(48.40)},
		{ID: 8, Name: "Near", Lat: ptr(54.32), Lon: ptr(48.40)},
	}
	id, ok := DetectCity(54.31, 48.40, cities, 10)
	require.True(t, ok)
	assert.Equal(t, int64(8), id)
}

// TestDetectCity_TieBreaksOnLowestID verifies deterministic ties
func TestDetectCity_TieBreaksOnLowestID(t *testing.T) {
	cities := []CityCentroid{
		{ID: 9, Name: "B", Lat: ptr(54.30), Lon: ptr(48.40)},
		{ID: 4, Name: "A", Lat: ptr(54.30), Lon: ptr(48.40)},
	}
	id, ok := DetectCity(54.30, 48.41, cities, DefaultDetectRadiusKm)
	require.True(t, ok)
	assert.Equal(t, int64(4), id)
}

// TestDetectCity_InvalidInput verifies NaN and out-of-range points
func TestDetectCity_InvalidInput(t *testing.T) {
	_, ok := DetectCity(91, 48.4, testCities(), DefaultDetectRadiusKm)
	assert.False(t, ok)

	_, ok = DetectCity(54.3, 48.4, nil, DefaultDetectRadiusKm)
	assert.False(t, ok)
}

// TestDistanceKm verifies the great-circle distance is in kilometres
func TestDistanceKm(t *testing.T) {
	a := s2.LatLngFromDegrees(0, 0)
	b := s2.LatLngFromDegrees(0, 1)
	assert.InDelta(t, 111.19, DistanceKm(a, b), 0.05)
}

// TestParseCoordinates verifies coordinate pair recognition
func TestParseCoordinates(t *testing.T) {
	lat, lon, ok := ParseCoordinates("54.3142, 48.4031")
	require.True(t, ok)
	assert.InDelta(t, 54.3142, lat, 1e-9)
	assert.InDelta(t, 48.4031, lon, 1e-9)

	_, _, ok = ParseCoordinates("54.3142 48.4031")
	assert.True(t, ok)

	for _, raw := range []string{"60,3", "Ульяновск", "54.3", "", "154.1, 200.5"} {
		_, _, ok := ParseCoordinates(raw)
		assert.False(t, ok, "raw %q", raw)
	}
}

// TestResolver_Resolve verifies coordinate and text resolution
func TestResolver_Resolve(t *testing.T) {
	r := &Resolver{
		Normalizer: NewNormalizer(DefaultNormalizerConfig()),
		Cities:     testCities(),
		RadiusKm:   DefaultDetectRadiusKm,
	}

	assert.Equal(t, "Ульяновск", r.Resolve("54.32, 48.41"))
	assert.Equal(t, Unusable, r.Resolve("54.26, 49.00"))
	assert.Equal(t, "Димитровград", r.Resolve("Мелекесский район"))
	assert.Equal(t, Unusable, r.Resolve("60.3"))
}
