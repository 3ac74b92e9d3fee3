package geo

import (
	"math"
	"regexp"
	"strconv"

	"github.com/golang/geo/s2"
)

const (
	// DefaultDetectRadiusKm is how far a point may lie from a city centroid
	// and still belong to that city. Points beyond it are on a highway.
	DefaultDetectRadiusKm = 7.0

	earthRadiusKm = 6371.0088

	// Distances closer than this are treated as equal.
	tieToleranceKm = 1e-9
)

// Both halves need a fractional part so that a decimal-comma number such as
// "60,3" is never mistaken for a pair.
var coordinatePair = regexp.MustCompile(`^\s*(-?\d{1,3}\.\d+)\s*[,;\s]\s*(-?\d{1,3}\.\d+)\s*$`)

// CityCentroid is a known city with its stored centre point.
type CityCentroid struct {
	ID   int64
	Name string
	Lat  *float64
	Lon  *float64
}

// DetectCity returns the id of the city whose centroid is nearest to
// (lat, lon), provided it lies within radiusKm. Cities without coordinates
// are ignored. Equidistant candidates resolve to the lowest id.
func DetectCity(lat, lon float64, cities []CityCentroid, radiusKm float64) (int64, bool) {
	if !validLatLon(lat, lon) {
		return 0, false
	}
	if radiusKm <= 0 {
		radiusKm = DefaultDetectRadiusKm
	}

	point := s2.LatLngFromDegrees(lat, lon)

	var (
		bestID   int64
		bestDist = math.Inf(1)
		found    bool
	)

	for _, city := range cities {
		if city.Lat == nil || city.Lon == nil {
			continue
		}

		dist := DistanceKm(point, s2.LatLngFromDegrees(*city.Lat, *city.Lon))
		if dist > radiusKm {
			continue
		}

		switch {
		case !found, dist < bestDist-tieToleranceKm:
			bestID, bestDist, found = city.ID, dist, true
		case math.Abs(dist-bestDist) <= tieToleranceKm && city.ID < bestID:
			bestID = city.ID
		}
	}

	return bestID, found
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b s2.LatLng) float64 {
	return float64(a.Distance(b)) * earthRadiusKm
}

// ParseCoordinates recognizes a "lat, lon" or "lat lon" pair in decimal
// degrees, e.g. "54.3142, 48.4031".
func ParseCoordinates(raw string) (lat, lon float64, ok bool) {
	m := coordinatePair.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}

	if !validLatLon(lat, lon) {
		return 0, 0, false
	}

	return lat, lon, true
}

func validLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Resolver turns whatever an upstream listing carries as its location into a
// canonical city name. Coordinates are matched against the known cities;
// anything else goes through the Normalizer.
type Resolver struct {
	Normalizer *Normalizer
	Cities     []CityCentroid
	RadiusKm   float64
}

// Resolve returns the canonical city for raw, or Unusable.
func (r *Resolver) Resolve(raw string) string {
	if lat, lon, ok := ParseCoordinates(raw); ok {
		id, found := DetectCity(lat, lon, r.Cities, r.RadiusKm)
		if !found {
			return Unusable
		}
		for _, city := range r.Cities {
			if city.ID == id {
				return city.Name
			}
		}
		return Unusable
	}

	return r.Normalizer.Normalize(raw)
}
