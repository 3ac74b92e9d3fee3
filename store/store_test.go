package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/pricefed/prices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

// Test helper: create a seeded test store
func createTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(StorageConfig{Type: TypeSQLite, DSN: dbPath})
	require.NoError(t, err, "should create store")
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SeedFuelTypes(context.Background(), DefaultFuelTypes()))
	return store
}

func record(city, station, code string, price float64, at time.Time) prices.Record {
	return prices.Record{City: city, StationName: station, FuelCode: code, Price: price, ObservedAt: at}
}

// TestOpen_RejectsUnknownType verifies only sqlite and postgres are accepted
func TestOpen_RejectsUnknownType(t *testing.T) {
	_, err := Open(StorageConfig{Type: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnknownStorageType)
}

// TestOpen_ReopensExistingDatabase verifies schema creation is idempotent
func TestOpen_ReopensExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.SeedFuelTypes(context.Background(), DefaultFuelTypes()))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	types, err := second.ListFuelTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 4)
}

// TestRebind verifies placeholders are only rewritten for postgres
func TestRebind(t *testing.T) {
	q := `SELECT 1 FROM t WHERE a = ? AND b = ?`
	assert.Equal(t, q, (&Store{}).rebind(q))
	assert.Equal(t, `SELECT 1 FROM t WHERE a = $1 AND b = $2`, (&Store{postgres: true}).rebind(q))
}

// TestSeedFuelTypes_Idempotent verifies seeding twice keeps one row per code
func TestSeedFuelTypes_Idempotent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedFuelTypes(ctx, []FuelType{{Code: "AI92", Name: "renamed"}}))

	types, err := store.ListFuelTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 4)
	assert.Equal(t, "AI92", types[0].Code)
	assert.Equal(t, "АИ-92", types[0].Name, "existing names are not overwritten")
}

// TestWrite_CreatesCityStationAndPlaceholder verifies first sightings
func TestWrite_CreatesCityStationAndPlaceholder(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	brand := "Лукойл"
	rec := record("Ulyanovsk", "АЗС 1", "AI92", 59.10, day)
	rec.Brand = &brand

	result, err := NewWriter(store).Write(ctx, []prices.Record{
		rec,
		record("Ulyanovsk", "АЗС 1", "AI95", 64.20, day),
	})
	require.NoError(t, err)

	assert.Equal(t, &WriteResult{
		CitiesCreated:      1,
		StationsCreated:    1,
		OurStationsCreated: 1,
		PricesWritten:      2,
	}, result)

	city, err := store.GetCityByName(ctx, "ulyanovsk")
	require.NoError(t, err)
	assert.Equal(t, "Ulyanovsk", city.Name)

	stations, err := store.ListStations(ctx, city.ID)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, &brand, stations[0].Brand)
	assert.Nil(t, stations[0].Address)

	n, err := store.CountOurStations(ctx, city.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := store.ListPrices(ctx, StationCompetitor, stations[0].ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "2026-10-15", stored[0].Date)
	assert.Equal(t, StationCompetitor, stored[0].StationType)
	assert.InDelta(t, 59.10, stored[0].Price, 1e-9)
	assert.InDelta(t, 64.20, stored[1].Price, 1e-9)
}

// TestWrite_RerunIsIdempotent verifies a second write of the same day adds
// nothing
func TestWrite_RerunIsIdempotent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	records := []prices.Record{
		record("Ulyanovsk", "АЗС 1", "AI92", 59.10, day),
		record("Ulyanovsk", "АЗС 2", "AI92", 59.30, day),
		record("Inza", "АЗС 3", "DIESEL", 70.00, day),
	}

	_, err := NewWriter(store).Write(ctx, records)
	require.NoError(t, err)

	second, err := NewWriter(store).Write(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, &WriteResult{PricesSkipped: 3}, second)

	count, err := store.CountPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	cities, err := store.ListCities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 2)
}

// TestWrite_NextDayAddsHistory verifies a new date is a new price row
func TestWrite_NextDayAddsHistory(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	w := NewWriter(store)

	_, err := w.Write(ctx, []prices.Record{record("Inza", "АЗС 3", "AI92", 55, day)})
	require.NoError(t, err)
	result, err := w.Write(ctx, []prices.Record{record("Inza", "АЗС 3", "AI92", 56, day.Add(24*time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PricesWritten)

	count, err := store.CountPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestWrite_IdentityIgnoresCaseAndSpacing verifies names are matched by key
func TestWrite_IdentityIgnoresCaseAndSpacing(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := NewWriter(store).Write(ctx, []prices.Record{
		record("Inza", "АЗС  Север", "AI92", 55, day),
	})
	require.NoError(t, err)

	result, err := NewWriter(store).Write(ctx, []prices.Record{
		record("INZA", "азс север", "AI95", 60, day),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.CitiesCreated)
	assert.Equal(t, 0, result.StationsCreated)
	assert.Equal(t, 1, result.PricesWritten)

	city, err := store.GetCityByName(ctx, "inza")
	require.NoError(t, err)
	assert.Equal(t, "Inza", city.Name, "first sighting keeps its spelling")

	stations, err := store.ListStations(ctx, city.ID)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "АЗС  Север", stations[0].StationName)
}

// TestWrite_ExistingStationNotOverwritten verifies later brands are ignored
func TestWrite_ExistingStationNotOverwritten(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	first, second := "Лукойл", "Роснефть"
	a := record("Inza", "АЗС 3", "AI92", 55, day)
	a.Brand = &first
	b := record("Inza", "АЗС 3", "AI95", 60, day)
	b.Brand = &second

	_, err := NewWriter(store).Write(ctx, []prices.Record{a})
	require.NoError(t, err)
	_, err = NewWriter(store).Write(ctx, []prices.Record{b})
	require.NoError(t, err)

	city, err := store.GetCityByName(ctx, "Inza")
	require.NoError(t, err)
	stations, err := store.ListStations(ctx, city.ID)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, &first, stations[0].Brand)
}

// TestWrite_UnknownFuelSkipped verifies an unseeded code does not fail the run
func TestWrite_UnknownFuelSkipped(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	result, err := NewWriter(store).Write(ctx, []prices.Record{
		record("Inza", "АЗС 3", "AI92PLUS", 58, day),
		record("Inza", "АЗС 3", "AI92", 55, day),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnknownFuel)
	assert.Equal(t, 1, result.PricesWritten)
	assert.Equal(t, 1, result.StationsCreated)
}

// TestWrite_OnePlaceholderPerCity verifies repeated writers never add a
// second placeholder
func TestWrite_OnePlaceholderPerCity(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		result, err := NewWriter(store).Write(ctx, []prices.Record{
			record("Inza", "АЗС 3", "AI92", 55, day.Add(time.Duration(i)*24*time.Hour)),
		})
		require.NoError(t, err)
		if i > 0 {
			assert.Equal(t, 0, result.OurStationsCreated)
		}
	}

	city, err := store.GetCityByName(ctx, "Inza")
	require.NoError(t, err)
	n, err := store.CountOurStations(ctx, city.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestWrite_CancelledContext verifies cancellation stops before writing
func TestWrite_CancelledContext(t *testing.T) {
	store := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWriter(store).Write(ctx, []prices.Record{record("Inza", "АЗС 3", "AI92", 55, day)})
	assert.True(t, errors.Is(err, context.Canceled))

	count, err := store.CountPrices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TestWrite_FailureKeepsEarlierRecords verifies a failing record stops the
// write, rolls back only its own changes and keeps what was committed
func TestWrite_FailureKeepsEarlierRecords(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	records := []prices.Record{
		record("Inza", "АЗС 1", "AI92", 55.10, day),
		record("Inza", "АЗС 2", "AI95", 60.20, day),
		record("Barysh", "АЗС 3", "AI92", -1, day),
		record("Inza", "АЗС 4", "AI92", 56.00, day),
	}

	result, err := NewWriter(store).Write(ctx, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "АЗС 3")
	require.NotNil(t, result)
	assert.Equal(t, 2, result.PricesWritten)
	assert.Equal(t, 2, result.StationsCreated)
	assert.Equal(t, 1, result.CitiesCreated)

	count, err := store.CountPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.GetCityByName(ctx, "Barysh")
	assert.ErrorIs(t, err, ErrCityNotFound, "the failing record's city is rolled back")

	inza, err := store.GetCityByName(ctx, "Inza")
	require.NoError(t, err)
	stations, err := store.ListStations(ctx, inza.ID)
	require.NoError(t, err)
	assert.Len(t, stations, 2, "records after the failure are not written")
}

// TestLastPriceTimestamp verifies empty and populated stores
func TestLastPriceTimestamp(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	last, err := store.LastPriceTimestamp(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = NewWriter(store).Write(ctx, []prices.Record{
		record("Inza", "АЗС 3", "AI92", 55, day),
		record("Inza", "АЗС 4", "AI92", 55, day.Add(90*time.Minute)),
	})
	require.NoError(t, err)

	last, err = store.LastPriceTimestamp(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(day.Add(90*time.Minute)))
}

// TestSeedCity verifies centroid seeding creates the city and placeholder
// and only fills missing coordinates
func TestSeedCity(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := NewWriter(store).Write(ctx, []prices.Record{record("Inza", "АЗС 3", "AI92", 55, day)})
	require.NoError(t, err)

	city, err := store.SeedCity(ctx, "Inza", 53.85, 46.35)
	require.NoError(t, err)
	require.NotNil(t, city.Lat)
	assert.Equal(t, 53.85, *city.Lat)

	again, err := store.SeedCity(ctx, "inza", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, city.ID, again.ID)
	assert.Equal(t, 53.85, *again.Lat, "known coordinates are kept")

	centroids, err := store.CityCentroids(ctx)
	require.NoError(t, err)
	require.Len(t, centroids, 1)
	assert.Equal(t, "Inza", centroids[0].Name)

	n, err := store.CountOurStations(ctx, city.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestRuns verifies the run journal lifecycle
func TestRuns(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, 46, time.Now())
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)

	run.PagesFetched = 3
	run.PricesWritten = 10
	require.NoError(t, store.FinishRun(ctx, run, nil))

	time.Sleep(2 * time.Millisecond)
	failed, err := store.CreateRun(ctx, 46, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, failed, errors.New("boom")))

	got, err := store.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, got.Status)
	assert.Equal(t, 3, got.PagesFetched)
	assert.Equal(t, 10, got.PricesWritten)
	require.NotNil(t, got.FinishedAt)
	assert.Nil(t, got.Error)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, failed.RunID, runs[0].RunID, "newest first")
	require.NotNil(t, runs[0].Error)
	assert.Equal(t, "boom", *runs[0].Error)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// TestLastSuccessfulRunAt verifies only succeeded runs count
func TestLastSuccessfulRunAt(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	last, err := store.LastSuccessfulRunAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	finished := day.Add(time.Hour)
	ok, err := store.CreateRun(ctx, 46, day)
	require.NoError(t, err)
	ok.FinishedAt = &finished
	require.NoError(t, store.FinishRun(ctx, ok, nil))

	later := day.Add(5 * time.Hour)
	failed, err := store.CreateRun(ctx, 46, day.Add(4*time.Hour))
	require.NoError(t, err)
	failed.FinishedAt = &later
	require.NoError(t, store.FinishRun(ctx, failed, errors.New("boom")))

	last, err = store.LastSuccessfulRunAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, finished.Equal(*last), "got %s", last)
}

// TestRuns_NotFound verifies unknown run ids
func TestRuns_NotFound(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.FinishRun(ctx, &Run{RunID: uuid.New()}, nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestPostgres_RerunIsIdempotent runs the writer against a real server when
// PRICEFED_TEST_POSTGRES_DSN is set
func TestPostgres_RerunIsIdempotent(t *testing.T) {
	dsn := os.Getenv("PRICEFED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRICEFED_TEST_POSTGRES_DSN not set")
	}

	store, err := Open(StorageConfig{Type: TypePostgres, DSN: dsn})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SeedFuelTypes(ctx, DefaultFuelTypes()))

	city := "Test City " + uuid.NewString()
	records := []prices.Record{record(city, "АЗС 1", "AI92", 59.10, day)}

	_, err = NewWriter(store).Write(ctx, records)
	require.NoError(t, err)

	second, err := NewWriter(store).Write(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, second.PricesSkipped)
	assert.Equal(t, 0, second.CitiesCreated)
}
