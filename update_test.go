package pricefed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpdateService(t *testing.T, src *pageSource) *UpdateService {
	p, _ := newTestPipeline(t, createTestStore(t), src)
	return NewUpdateService(p, &UpdateConfig{
		Region:             testRegion,
		StalenessThreshold: 12 * time.Hour,
		CheckInterval:      time.Hour,
	})
}

// TestNewUpdateService_DefaultConfig verifies nil config uses defaults
func TestNewUpdateService_DefaultConfig(t *testing.T) {
	us := NewUpdateService(nil, nil)
	assert.Equal(t, DefaultUpdateConfig(), us.config)
}

// TestUpdateService_RunIfStale verifies only stale data triggers a run
func TestUpdateService_RunIfStale(t *testing.T) {
	us := newTestUpdateService(t, &pageSource{pages: ulyanovskPages()})
	ctx := context.Background()

	summary, ran, err := us.RunIfStale(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, summary.PricesWritten)

	summary, ran, err = us.RunIfStale(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "fresh data is not fetched again")
	assert.Nil(t, summary)
}

// TestUpdateService_RunNowIgnoresStaleness verifies the forced path
func TestUpdateService_RunNowIgnoresStaleness(t *testing.T) {
	us := newTestUpdateService(t, &pageSource{pages: ulyanovskPages()})
	ctx := context.Background()

	_, err := us.RunNow(ctx)
	require.NoError(t, err)

	summary, err := us.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PricesSkipped)

	status := us.Status()
	assert.False(t, status.Running)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, summary.RunID, status.LastRun.RunID)
	assert.Nil(t, status.LastError)
}

// TestUpdateService_FailureRecorded verifies failed runs show up in status
func TestUpdateService_FailureRecorded(t *testing.T) {
	us := newTestUpdateService(t, &pageSource{})

	_, err := us.RunNow(context.Background())
	require.ErrorIs(t, err, ErrNoPages)

	status := us.Status()
	require.NotNil(t, status.LastError)
	assert.Contains(t, *status.LastError, "no listing pages")
}

// TestUpdateService_RunChecksOnStartAndStops verifies the loop runs once on
// start and returns after Stop
func TestUpdateService_RunChecksOnStartAndStops(t *testing.T) {
	src := &pageSource{pages: ulyanovskPages()}
	us := newTestUpdateService(t, src)

	done := make(chan error, 1)
	go func() { done <- us.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return us.Status().LastRun != nil
	}, 2*time.Second, 10*time.Millisecond)

	us.Stop()
	us.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update service did not stop")
	}
	assert.NotNil(t, us.Status().LastCheckAt)
}

// TestUpdateService_RunStopsOnCancel verifies context cancellation ends Run
func TestUpdateService_RunStopsOnCancel(t *testing.T) {
	us := newTestUpdateService(t, &pageSource{pages: ulyanovskPages()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- us.Run(ctx) }()

	require.Eventually(t, func() bool {
		return us.Status().LastCheckAt != nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("update service did not stop")
	}
}

// TestUpdateService_RunNowAfterStop verifies stopped services refuse runs
func TestUpdateService_RunNowAfterStop(t *testing.T) {
	src := &pageSource{pages: ulyanovskPages()}
	us := newTestUpdateService(t, src)
	us.Stop()

	summary, err := us.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)
	assert.Nil(t, summary)
	assert.Empty(t, src.requests, "nothing is fetched")

	_, ran, err := us.RunIfStale(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)
	assert.True(t, ran)
}

// TestUpdateService_ConcurrentRunNowDuringStop verifies forced runs racing
// with shutdown either complete before Run returns or are refused
func TestUpdateService_ConcurrentRunNowDuringStop(t *testing.T) {
	us := newTestUpdateService(t, &pageSource{pages: ulyanovskPages()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- us.Run(ctx) }()

	require.Eventually(t, func() bool {
		return us.Status().LastCheckAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := us.RunNow(context.Background())
			errs <- err
		}()
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("update service did not stop")
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrRunInProgress) {
			assert.ErrorIs(t, err, ErrServiceStopped)
		}
	}

	_, err := us.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)
}
