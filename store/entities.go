package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pevans/pricefed/geo"
)

// OurStationName is the name given to the placeholder station created for
// each new city.
func OurStationName(city string) string {
	return "HelpMeOil - " + city
}

func (s *Store) findCityByKey(ctx context.Context, q querier, key string) (*City, error) {
	var city City
	var lat, lon sql.NullFloat64

	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id, name, lat, lon FROM cities WHERE name_key = ?`), key,
	).Scan(&city.ID, &city.Name, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query city: %w", err)
	}

	city.Lat = floatPtr(lat)
	city.Lon = floatPtr(lon)
	return &city, nil
}

func (s *Store) insertCity(ctx context.Context, q querier, name string, lat, lon *float64) (*City, error) {
	city := &City{Name: name, Lat: lat, Lon: lon}

	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO cities (name, name_key, lat, lon) VALUES (?, ?, ?, ?) RETURNING id`),
		name, geo.Key(name), nullableFloat(lat), nullableFloat(lon),
	).Scan(&city.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert city: %w", err)
	}

	return city, nil
}

// ensureOurStation creates the placeholder station for city unless one
// exists. It reports whether a row was created.
func (s *Store) ensureOurStation(ctx context.Context, q querier, city *City) (bool, error) {
	res, err := q.ExecContext(ctx,
		s.rebind(`INSERT INTO our_stations (name, address, city_id) VALUES (?, ?, ?)
			ON CONFLICT (city_id) DO NOTHING`),
		OurStationName(city.Name), city.Name, city.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert our station: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) findStationByKey(ctx context.Context, q querier, cityID int64, key string) (*CompetitorStation, error) {
	var st CompetitorStation
	var brand, address sql.NullString
	var lat, lon sql.NullFloat64

	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id, station_name, brand, address, city_id, lat, lon
			FROM competitor_stations WHERE city_id = ? AND name_key = ?`),
		cityID, key,
	).Scan(&st.ID, &st.StationName, &brand, &address, &st.CityID, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query station: %w", err)
	}

	st.Brand = stringPtr(brand)
	st.Address = stringPtr(address)
	st.Lat = floatPtr(lat)
	st.Lon = floatPtr(lon)
	return &st, nil
}

func (s *Store) insertStation(ctx context.Context, q querier, st *CompetitorStation) error {
	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO competitor_stations (station_name, name_key, brand, address, city_id, lat, lon)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		st.StationName, geo.Key(st.StationName),
		nullableString(st.Brand), nullableString(st.Address),
		st.CityID, nullableFloat(st.Lat), nullableFloat(st.Lon),
	).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("failed to insert station: %w", err)
	}
	return nil
}

func (s *Store) priceExists(ctx context.Context, q querier, p *FuelPrice) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM fuel_prices
			WHERE station_id = ? AND station_type = ? AND fuel_type_id = ? AND price_date = ?`),
		p.StationID, string(p.StationType), p.FuelTypeID, p.Date,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query price: %w", err)
	}
	return true, nil
}

// insertPrice stores p unless a price for the same key exists. It reports
// whether a row was inserted.
func (s *Store) insertPrice(ctx context.Context, q querier, p *FuelPrice) (bool, error) {
	var competitorID, ourID any
	switch p.StationType {
	case StationCompetitor:
		competitorID = p.StationID
	case StationOur:
		ourID = p.StationID
	default:
		return false, fmt.Errorf("invalid station type %q", p.StationType)
	}

	res, err := q.ExecContext(ctx,
		s.rebind(`INSERT INTO fuel_prices (
				station_type, station_id, competitor_station_id, our_station_id,
				fuel_type_id, price, price_date, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (station_id, station_type, fuel_type_id, price_date) DO NOTHING`),
		string(p.StationType), p.StationID, competitorID, ourID,
		p.FuelTypeID, p.Price, p.Date, formatTime(&p.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert price: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// SeedFuelTypes inserts any of seeds whose code is not yet stored. Existing
// names are left alone.
func (s *Store) SeedFuelTypes(ctx context.Context, seeds []FuelType) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, ft := range seeds {
			_, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO fuel_types (code, name) VALUES (?, ?) ON CONFLICT (code) DO NOTHING`),
				ft.Code, ft.Name,
			)
			if err != nil {
				return fmt.Errorf("failed to seed fuel type %s: %w", ft.Code, err)
			}
		}
		return nil
	})
}

// ListFuelTypes returns all fuel types ordered by code.
func (s *Store) ListFuelTypes(ctx context.Context) ([]FuelType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM fuel_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fuel types: %w", err)
	}
	defer rows.Close()

	var types []FuelType
	for rows.Next() {
		var ft FuelType
		if err := rows.Scan(&ft.ID, &ft.Code, &ft.Name); err != nil {
			return nil, fmt.Errorf("failed to scan fuel type: %w", err)
		}
		types = append(types, ft)
	}
	return types, rows.Err()
}

// SeedCity stores a city with known coordinates, creating it and its
// placeholder station if needed. Coordinates of an existing city are only
// filled in when it has none.
func (s *Store) SeedCity(ctx context.Context, name string, lat, lon float64) (*City, error) {
	var city *City
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.findCityByKey(ctx, tx, geo.Key(name))
		switch {
		case errors.Is(err, ErrCityNotFound):
			found, err = s.insertCity(ctx, tx, name, &lat, &lon)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		case found.Lat == nil || found.Lon == nil:
			_, err = tx.ExecContext(ctx,
				s.rebind(`UPDATE cities SET lat = ?, lon = ? WHERE id = ?`), lat, lon, found.ID)
			if err != nil {
				return fmt.Errorf("failed to update city coordinates: %w", err)
			}
			found.Lat, found.Lon = &lat, &lon
		}

		if _, err := s.ensureOurStation(ctx, tx, found); err != nil {
			return err
		}
		city = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return city, nil
}

// GetCityByName looks up a city by name, ignoring case and spacing.
func (s *Store) GetCityByName(ctx context.Context, name string) (*City, error) {
	return s.findCityByKey(ctx, s.db, geo.Key(name))
}

// ListCities returns all cities ordered by id.
func (s *Store) ListCities(ctx context.Context) ([]City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, lat, lon FROM cities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	var cities []City
	for rows.Next() {
		var c City
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.Name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		c.Lat = floatPtr(lat)
		c.Lon = floatPtr(lon)
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// CityCentroids returns every city in the form the geography resolver
// expects.
func (s *Store) CityCentroids(ctx context.Context) ([]geo.CityCentroid, error) {
	cities, err := s.ListCities(ctx)
	if err != nil {
		return nil, err
	}

	centroids := make([]geo.CityCentroid, len(cities))
	for i, c := range cities {
		centroids[i] = geo.CityCentroid{ID: c.ID, Name: c.Name, Lat: c.Lat, Lon: c.Lon}
	}
	return centroids, nil
}

// ListStations returns the competitor stations of a city ordered by id.
func (s *Store) ListStations(ctx context.Context, cityID int64) ([]CompetitorStation, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, station_name, brand, address, city_id, lat, lon
			FROM competitor_stations WHERE city_id = ? ORDER BY id`), cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []CompetitorStation
	for rows.Next() {
		var st CompetitorStation
		var brand, address sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&st.ID, &st.StationName, &brand, &address, &st.CityID, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		st.Brand = stringPtr(brand)
		st.Address = stringPtr(address)
		st.Lat = floatPtr(lat)
		st.Lon = floatPtr(lon)
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// CountOurStations returns how many placeholder stations exist for a city.
func (s *Store) CountOurStations(ctx context.Context, cityID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM our_stations WHERE city_id = ?`), cityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count our stations: %w", err)
	}
	return n, nil
}

// ListPrices returns all prices for a station ordered by date then fuel.
func (s *Store) ListPrices(ctx context.Context, stationType StationType, stationID int64) ([]FuelPrice, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, station_type, station_id, fuel_type_id, price, price_date, created_at
			FROM fuel_prices WHERE station_type = ? AND station_id = ?
			ORDER BY price_date, fuel_type_id`), string(stationType), stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []FuelPrice
	for rows.Next() {
		var p FuelPrice
		var st, createdAt string
		if err := rows.Scan(&p.ID, &st, &p.StationID, &p.FuelTypeID, &p.Price, &p.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		p.StationType = StationType(st)
		p.CreatedAt = parseTime(createdAt)
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// CountPrices returns the number of stored prices.
func (s *Store) CountPrices(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fuel_prices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}

// LastPriceTimestamp returns when the most recent price was written, or nil
// when the store holds no prices.
func (s *Store) LastPriceTimestamp(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM fuel_prices`).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last price: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}

	t := parseTime(last.String)
	return &t, nil
}
