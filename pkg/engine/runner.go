package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RunnerConfig configures the background maintenance runner.
type RunnerConfig struct {
	// ScanInterval is how often the compliance scan runs. Zero disables it.
	ScanInterval time.Duration

	// ScanScope narrows periodic scans to one environment. Empty scans all.
	ScanScope string

	// PurgeInterval is how often the retention purge runs. Zero disables it.
	PurgeInterval time.Duration

	// RetentionDays is the retention window applied by periodic purges.
	RetentionDays int

	// PurgeDryRun makes periodic purges count instead of delete.
	PurgeDryRun bool

	// Actor is recorded as the actor of scheduled scans and purges.
	Actor string
}

// Runner drives periodic compliance scans and retention purges. Each job
// runs on its own ticker, and a tick is skipped when the previous run of
// the same job is still in flight.
type Runner struct {
	scanner *Scanner
	purger  *Purger
	config  RunnerConfig
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a background runner. Either the scanner or the purger
// may be nil when the corresponding job is disabled.
func NewRunner(scanner *Scanner, purger *Purger, config RunnerConfig, logger zerolog.Logger) *Runner {
	if config.Actor == "" {
		config.Actor = "scheduler"
	}
	return &Runner{
		scanner: scanner,
		purger:  purger,
		config:  config,
		logger:  logger.With().Str("component", "maintenance-runner").Logger(),
	}
}

// Start launches the background jobs. Calling Start on a running runner is
// an error.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("runner already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	if r.scanner != nil && r.config.ScanInterval > 0 {
		r.wg.Add(1)
		go r.loop(runCtx, "scan", r.config.ScanInterval, func(ctx context.Context) error {
			_, err := r.scanner.Scan(ctx, r.config.ScanScope, r.config.Actor)
			return err
		})
	}

	if r.purger != nil && r.config.PurgeInterval > 0 {
		r.wg.Add(1)
		go r.loop(runCtx, "purge", r.config.PurgeInterval, func(ctx context.Context) error {
			_, err := r.purger.Purge(ctx, r.config.RetentionDays, r.config.PurgeDryRun, r.config.Actor)
			return err
		})
	}

	r.logger.Info().
		Dur("scan_interval", r.config.ScanInterval).
		Dur("purge_interval", r.config.PurgeInterval).
		Msg("Maintenance runner started")

	return nil
}

// Stop cancels the background jobs and waits for in-flight runs to finish,
// bounded by the given context.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info().Msg("Maintenance runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown timeout")
	}
}

// loop runs one job on its ticker until the context is cancelled. The
// inFlight guard keeps at most one run of the job active; a tick that
// arrives mid-run is dropped rather than queued.
func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	defer r.wg.Done()

	logger := r.logger.With().Str("job", name).Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var inFlight sync.Mutex

	for {
		select {
		case <-ticker.C:
			if !inFlight.TryLock() {
				logger.Warn().Msg("Previous run still active, skipping tick")
				continue
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer inFlight.Unlock()
				if err := job(ctx); err != nil && ctx.Err() == nil {
					logger.Error().Err(err).Msg("Scheduled job failed")
				}
			}()

		case <-ctx.Done():
			return
		}
	}
}
