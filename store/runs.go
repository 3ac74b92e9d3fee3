package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRun journals the start of a run for region.
func (s *Store) CreateRun(ctx context.Context, region int, startedAt time.Time) (*Run, error) {
	run := &Run{
		RunID:     uuid.New(),
		Region:    region,
		Status:    RunRunning,
		StartedAt: startedAt.UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO ingest_runs (run_id, region, status, started_at) VALUES (?, ?, ?, ?)`),
		run.RunID.String(), run.Region, run.Status, formatTime(&run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// FinishRun records the outcome of run. A nil runErr marks it succeeded.
// run.FinishedAt is set to now unless the caller already set it.
func (s *Store) FinishRun(ctx context.Context, run *Run, runErr error) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	run.Status = RunSucceeded
	run.Error = nil
	if runErr != nil {
		msg := runErr.Error()
		run.Status = RunFailed
		run.Error = &msg
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE ingest_runs SET
				status = ?, finished_at = ?, pages_fetched = ?, listings = ?, records = ?,
				cities_created = ?, stations_created = ?, prices_written = ?, prices_skipped = ?,
				error = ?
			WHERE run_id = ?`),
		run.Status, formatTime(run.FinishedAt), run.PagesFetched, run.Listings, run.Records,
		run.CitiesCreated, run.StationsCreated, run.PricesWritten, run.PricesSkipped,
		nullableString(run.Error), run.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}

	return nil
}

const runColumns = `run_id, region, status, started_at, finished_at, pages_fetched, listings,
	records, cities_created, stations_created, prices_written, prices_skipped, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var runID, startedAt string
	var finishedAt, runErr sql.NullString

	err := row.Scan(
		&runID, &run.Region, &run.Status, &startedAt, &finishedAt,
		&run.PagesFetched, &run.Listings, &run.Records,
		&run.CitiesCreated, &run.StationsCreated, &run.PricesWritten, &run.PricesSkipped,
		&runErr,
	)
	if err != nil {
		return nil, err
	}

	run.RunID, err = uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	run.Error = stringPtr(runErr)

	return &run, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+runColumns+` FROM ingest_runs WHERE run_id = ?`), runID.String())

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LastSuccessfulRunAt returns when the most recent succeeded run finished,
// or nil when no run has succeeded.
func (s *Store) LastSuccessfulRunAt(ctx context.Context) (*time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT MAX(finished_at) FROM ingest_runs WHERE status = ?`), RunSucceeded,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last successful run: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}

	t := parseTime(last.String)
	return &t, nil
}
