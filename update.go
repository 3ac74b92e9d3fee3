package pricefed

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrServiceStopped is returned by RunNow once the service is stopping.
var ErrServiceStopped = errors.New("update service is stopped")

// UpdateConfig holds configuration for the update service.
type UpdateConfig struct {
	Region int
	// StalenessThreshold is how old the newest stored price may get before
	// a run is started.
	StalenessThreshold time.Duration
	// CheckInterval is how often staleness is checked.
	CheckInterval time.Duration
}

// DefaultUpdateConfig returns the default updater settings.
func DefaultUpdateConfig() *UpdateConfig {
	return &UpdateConfig{
		Region:             46,
		StalenessThreshold: 12 * time.Hour,
		CheckInterval:      30 * time.Minute,
	}
}

// UpdateStatus is a snapshot of the update service's state.
type UpdateStatus struct {
	Running     bool       `json:"running"`
	LastCheckAt *time.Time `json:"last_check_at,omitempty"`
	LastRun     *Summary   `json:"last_run,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
}

// UpdateService is a background service that starts a pipeline run whenever
// the stored prices are stale, checking on start and then periodically.
type UpdateService struct {
	pipeline *Pipeline
	config   *UpdateConfig
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	status  UpdateStatus
	stopped bool
}

// NewUpdateService creates a new update service.
func NewUpdateService(pipeline *Pipeline, config *UpdateConfig) *UpdateService {
	if config == nil {
		config = DefaultUpdateConfig()
	}

	return &UpdateService{
		pipeline: pipeline,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Run starts the update loop. It runs until Stop() is called or the context
// is cancelled.
func (us *UpdateService) Run(ctx context.Context) error {
	log.Println("Update service starting")

	us.check(ctx)

	ticker := time.NewTicker(us.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Update service stopping (context cancelled)")
			us.markStopped()
			us.wg.Wait()
			return ctx.Err()
		case <-us.stopChan:
			log.Println("Update service stopping")
			us.wg.Wait()
			return nil
		case <-ticker.C:
			us.check(ctx)
		}
	}
}

// Stop signals the update service to stop gracefully. Runs already in
// progress finish; new ones are rejected with ErrServiceStopped.
func (us *UpdateService) Stop() {
	us.markStopped()
	us.stopOnce.Do(func() { close(us.stopChan) })
}

// markStopped rejects further runs. Every wg.Add happens under mu before
// this, so a later wg.Wait sees them all.
func (us *UpdateService) markStopped() {
	us.mu.Lock()
	us.stopped = true
	us.mu.Unlock()
}

// check runs the pipeline if the stored data is stale. Failures are logged
// and never stop the loop.
func (us *UpdateService) check(ctx context.Context) {
	now := time.Now()
	us.mu.Lock()
	us.status.LastCheckAt = &now
	us.mu.Unlock()

	stale, err := us.pipeline.ShouldRun(ctx, us.config.StalenessThreshold)
	if err != nil {
		log.Printf("ERROR: Staleness check failed: %v", err)
		us.recordError(err)
		return
	}
	if !stale {
		log.Printf("INFO: Prices are fresh (threshold %s), skipping run", us.config.StalenessThreshold)
		return
	}

	if _, err := us.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) && !errors.Is(err, ErrServiceStopped) {
		log.Printf("ERROR: Scheduled run failed: %v", err)
	}
}

// RunNow runs the pipeline immediately, regardless of staleness.
func (us *UpdateService) RunNow(ctx context.Context) (*Summary, error) {
	us.mu.Lock()
	if us.stopped {
		us.mu.Unlock()
		return nil, ErrServiceStopped
	}
	us.wg.Add(1)
	us.mu.Unlock()
	defer us.wg.Done()

	summary, err := us.pipeline.RunFullParsing(ctx, us.config.Region)

	us.mu.Lock()
	defer us.mu.Unlock()
	if errors.Is(err, ErrRunInProgress) {
		return nil, err
	}
	us.status.LastRun = summary
	us.status.LastError = nil
	if err != nil {
		msg := err.Error()
		us.status.LastError = &msg
	}

	return summary, err
}

// RunIfStale runs the pipeline only when the stored data is stale. It
// reports whether a run was started.
func (us *UpdateService) RunIfStale(ctx context.Context) (*Summary, bool, error) {
	stale, err := us.pipeline.ShouldRun(ctx, us.config.StalenessThreshold)
	if err != nil {
		return nil, false, err
	}
	if !stale {
		return nil, false, nil
	}

	summary, err := us.RunNow(ctx)
	return summary, true, err
}

// Status returns a snapshot of the service state.
func (us *UpdateService) Status() UpdateStatus {
	us.mu.Lock()
	defer us.mu.Unlock()

	status := us.status
	status.Running = us.pipeline.Running()
	return status
}

func (us *UpdateService) recordError(err error) {
	us.mu.Lock()
	defer us.mu.Unlock()

	msg := err.Error()
	us.status.LastError = &msg
}
