package store

import (
	"time"

	"github.com/google/uuid"
)

// StationType tells which station table a price row points at.
type StationType string

const (
	StationOur        StationType = "our"
	StationCompetitor StationType = "competitor"
)

// City is a canonical city. Lat and Lon are its centroid when known.
type City struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// CompetitorStation is a third-party fuel station, unique per city by its
// normalized name.
type CompetitorStation struct {
	ID          int64    `json:"id"`
	StationName string   `json:"station_name"`
	Brand       *string  `json:"brand,omitempty"`
	Address     *string  `json:"address,omitempty"`
	CityID      int64    `json:"city_id"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// OurStation is the operator's own placeholder station in a city.
type OurStation struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	CityID  int64   `json:"city_id"`
}

// FuelType is a fuel grade known to the store.
type FuelType struct {
	ID   int64  `json:"id"`
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// FuelPrice is one observed price of one fuel at one station on one date.
type FuelPrice struct {
	ID          int64       `json:"id"`
	StationType StationType `json:"station_type"`
	StationID   int64       `json:"station_id"`
	FuelTypeID  int64       `json:"fuel_type_id"`
	Price       float64     `json:"price"`
	Date        string      `json:"date"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one journaled ingestion run.
type Run struct {
	RunID           uuid.UUID  `json:"run_id"`
	Region          int        `json:"region"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	PagesFetched    int        `json:"pages_fetched"`
	Listings        int        `json:"listings"`
	Records         int        `json:"records"`
	CitiesCreated   int        `json:"cities_created"`
	StationsCreated int        `json:"stations_created"`
	PricesWritten   int        `json:"prices_written"`
	PricesSkipped   int        `json:"prices_skipped"`
	Error           *string    `json:"error,omitempty"`
}

// DefaultFuelTypes returns the fuel grades seeded into a fresh database.
func DefaultFuelTypes() []FuelType {
	return []FuelType{
		{Code: "AI92", Name: "АИ-92"},
		{Code: "AI95", Name: "АИ-95"},
		{Code: "DIESEL", Name: "ДТ"},
		{Code: "GAS", Name: "Газ"},
	}
}
