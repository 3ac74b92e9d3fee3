package store

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		name_key TEXT NOT NULL UNIQUE,
		lat REAL,
		lon REAL
	)`,
	`CREATE TABLE IF NOT EXISTS competitor_stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_name TEXT NOT NULL,
		name_key TEXT NOT NULL,
		brand TEXT,
		address TEXT,
		city_id INTEGER NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		lat REAL,
		lon REAL,
		UNIQUE (city_id, name_key)
	)`,
	`CREATE TABLE IF NOT EXISTS our_stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		city_id INTEGER NOT NULL UNIQUE REFERENCES cities(id) ON DELETE CASCADE,
		lat REAL,
		lon REAL
	)`,
	`CREATE TABLE IF NOT EXISTS fuel_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fuel_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_type TEXT NOT NULL CHECK (station_type IN ('our', 'competitor')),
		station_id INTEGER NOT NULL,
		competitor_station_id INTEGER REFERENCES competitor_stations(id) ON DELETE CASCADE,
		our_station_id INTEGER REFERENCES our_stations(id) ON DELETE CASCADE,
		fuel_type_id INTEGER NOT NULL REFERENCES fuel_types(id),
		price REAL NOT NULL CHECK (price > 0),
		price_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CHECK (
			(station_type = 'competitor' AND competitor_station_id = station_id AND our_station_id IS NULL) OR
			(station_type = 'our' AND our_station_id = station_id AND competitor_station_id IS NULL)
		),
		UNIQUE (station_id, station_type, fuel_type_id, price_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fuel_prices_created_at ON fuel_prices (created_at)`,
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id TEXT PRIMARY KEY,
		region INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		listings INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		cities_created INTEGER NOT NULL DEFAULT 0,
		stations_created INTEGER NOT NULL DEFAULT 0,
		prices_written INTEGER NOT NULL DEFAULT 0,
		prices_skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		name_key TEXT NOT NULL UNIQUE,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS competitor_stations (
		id BIGSERIAL PRIMARY KEY,
		station_name TEXT NOT NULL,
		name_key TEXT NOT NULL,
		brand TEXT,
		address TEXT,
		city_id BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		UNIQUE (city_id, name_key)
	)`,
	`CREATE TABLE IF NOT EXISTS our_stations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		city_id BIGINT NOT NULL UNIQUE REFERENCES cities(id) ON DELETE CASCADE,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS fuel_types (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fuel_prices (
		id BIGSERIAL PRIMARY KEY,
		station_type TEXT NOT NULL CHECK (station_type IN ('our', 'competitor')),
		station_id BIGINT NOT NULL,
		competitor_station_id BIGINT REFERENCES competitor_stations(id) ON DELETE CASCADE,
		our_station_id BIGINT REFERENCES our_stations(id) ON DELETE CASCADE,
		fuel_type_id BIGINT NOT NULL REFERENCES fuel_types(id),
		price DOUBLE PRECISION NOT NULL CHECK (price > 0),
		price_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CHECK (
			(station_type = 'competitor' AND competitor_station_id = station_id AND our_station_id IS NULL) OR
			(station_type = 'our' AND our_station_id = station_id AND competitor_station_id IS NULL)
		),
		UNIQUE (station_id, station_type, fuel_type_id, price_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fuel_prices_created_at ON fuel_prices (created_at)`,
	`CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id TEXT PRIMARY KEY,
		region INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		listings INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		cities_created INTEGER NOT NULL DEFAULT 0,
		stations_created INTEGER NOT NULL DEFAULT 0,
		prices_written INTEGER NOT NULL DEFAULT 0,
		prices_skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT
	)`,
}
