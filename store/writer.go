package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/pevans/pricefed/geo"
	"github.com/pevans/pricefed/prices"
)

// WriteResult counts what one Write call changed.
type WriteResult struct {
	CitiesCreated      int `json:"cities_created"`
	StationsCreated    int `json:"stations_created"`
	OurStationsCreated int `json:"our_stations_created"`
	PricesWritten      int `json:"prices_written"`
	PricesSkipped      int `json:"prices_skipped"`
	UnknownFuel        int `json:"unknown_fuel"`
}

type stationKey struct {
	cityID int64
	name   string
}

// Writer resolves each record's city and station, creating them on first
// sight, and stores its price once per station, fuel and day.
type Writer struct {
	store *Store

	cities   map[string]*City
	stations map[stationKey]*CompetitorStation
}

// NewWriter creates a writer for store. A writer caches identities between
// calls and is not safe for concurrent use.
func NewWriter(store *Store) *Writer {
	return &Writer{
		store:    store,
		cities:   make(map[string]*City),
		stations: make(map[stationKey]*CompetitorStation),
	}
}

// pending holds what one record's transaction created, applied to the
// caches and counters only once it commits.
type pending struct {
	city         *City
	station      *CompetitorStation
	cityCreated  bool
	ourCreated   bool
	stationNew   bool
	priceWritten bool
	priceSkipped bool
	unknownFuel  bool
}

// Write stores records one transaction at a time. It stops at the first
// record that fails and returns the counts so far together with the error;
// records committed before it stay written.
func (w *Writer) Write(ctx context.Context, records []prices.Record) (*WriteResult, error) {
	result := &WriteResult{}

	fuelIDs, err := w.fuelTypeIDs(ctx)
	if err != nil {
		return result, err
	}

	unknown := map[string]int{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := w.writeRecord(ctx, rec, fuelIDs)
		if err != nil {
			log.Printf("ERROR: Failed to store %s / %s / %s: %v", rec.City, rec.StationName, rec.FuelCode, err)
			return result, fmt.Errorf("failed to write record for %s in %s: %w", rec.StationName, rec.City, err)
		}

		w.cities[geo.Key(p.city.Name)] = p.city
		w.stations[stationKey{p.city.ID, geo.Key(p.station.StationName)}] = p.station

		if p.cityCreated {
			result.CitiesCreated++
		}
		if p.ourCreated {
			result.OurStationsCreated++
		}
		if p.stationNew {
			result.StationsCreated++
		}
		switch {
		case p.unknownFuel:
			result.UnknownFuel++
			unknown[rec.FuelCode]++
		case p.priceWritten:
			result.PricesWritten++
		case p.priceSkipped:
			result.PricesSkipped++
		}
	}

	for code, n := range unknown {
		log.Printf("WARN: Skipped %d prices with unknown fuel type %s", n, code)
	}
	log.Printf("INFO: Stored %d prices (%d already present), created %d cities and %d stations",
		result.PricesWritten, result.PricesSkipped, result.CitiesCreated, result.StationsCreated)

	return result, nil
}

func (w *Writer) writeRecord(ctx context.Context, rec prices.Record, fuelIDs map[string]int64) (*pending, error) {
	p := &pending{}

	err := w.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := w.resolveCity(ctx, tx, rec.City, p); err != nil {
			return err
		}
		if err := w.resolveStation(ctx, tx, rec, p); err != nil {
			return err
		}

		fuelID, ok := fuelIDs[rec.FuelCode]
		if !ok {
			p.unknownFuel = true
			return nil
		}

		price := &FuelPrice{
			StationType: StationCompetitor,
			StationID:   p.station.ID,
			FuelTypeID:  fuelID,
			Price:       rec.Price,
			Date:        rec.ObservedAt.Format(DateLayout),
			CreatedAt:   rec.ObservedAt,
		}

		exists, err := w.store.priceExists(ctx, tx, price)
		if err != nil {
			return err
		}
		if exists {
			p.priceSkipped = true
			return nil
		}

		inserted, err := w.store.insertPrice(ctx, tx, price)
		if err != nil {
			return err
		}
		p.priceWritten = inserted
		p.priceSkipped = !inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (w *Writer) resolveCity(ctx context.Context, tx *sql.Tx, name string, p *pending) error {
	key := geo.Key(name)
	if city, ok := w.cities[key]; ok {
		p.city = city
		return nil
	}

	city, err := w.store.findCityByKey(ctx, tx, key)
	switch {
	case errors.Is(err, ErrCityNotFound):
		city, err = w.store.insertCity(ctx, tx, name, nil, nil)
		if err != nil {
			return err
		}
		p.cityCreated = true
	case err != nil:
		return err
	}

	// The placeholder is checked on the first sighting of a city in a
	// writer's lifetime, which also covers cities created elsewhere.
	created, err := w.store.ensureOurStation(ctx, tx, city)
	if err != nil {
		return err
	}
	p.ourCreated = created
	p.city = city
	return nil
}

func (w *Writer) resolveStation(ctx context.Context, tx *sql.Tx, rec prices.Record, p *pending) error {
	key := stationKey{p.city.ID, geo.Key(rec.StationName)}
	if st, ok := w.stations[key]; ok {
		p.station = st
		return nil
	}

	st, err := w.store.findStationByKey(ctx, tx, key.cityID, key.name)
	if err == nil {
		p.station = st
		return nil
	}
	if !errors.Is(err, ErrStationNotFound) {
		return err
	}

	st = &CompetitorStation{
		StationName: rec.StationName,
		Brand:       rec.Brand,
		Address:     rec.Address,
		CityID:      p.city.ID,
	}
	if err := w.store.insertStation(ctx, tx, st); err != nil {
		return err
	}
	p.station = st
	p.stationNew = true
	return nil
}

func (w *Writer) fuelTypeIDs(ctx context.Context) (map[string]int64, error) {
	types, err := w.store.ListFuelTypes(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(types))
	for _, ft := range types {
		ids[ft.Code] = ft.ID
	}
	return ids, nil
}
