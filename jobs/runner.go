package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/akshitha1024/traceback/matching"
	"github.com/akshitha1024/traceback/privacy"
	"github.com/akshitha1024/traceback/settlement"
)

// Runner drives the periodic background work: the hourly match recompute,
// the privacy publish sweep, and the daily retention purge.
type Runner struct {
	scheduler  *matching.Scheduler
	sweeper    *privacy.Sweeper
	settlement *settlement.Service

	matchInterval time.Duration
	purgeInterval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRunner(scheduler *matching.Scheduler, sweeper *privacy.Sweeper, settlement *settlement.Service, matchInterval, purgeInterval time.Duration) *Runner {
	return &Runner{
		scheduler:     scheduler,
		sweeper:       sweeper,
		settlement:    settlement,
		matchInterval: matchInterval,
		purgeInterval: purgeInterval,
	}
}

// Start launches the background loops. Each loop runs its job once
// immediately, then on its interval until Stop or context cancellation.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})

	r.wg.Add(2)
	go r.loop(ctx, r.matchInterval, r.matchPass)
	go r.loop(ctx, r.purgeInterval, r.purgePass)
}

// Stop signals the loops to exit and waits for them.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, job func(context.Context)) {
	defer r.wg.Done()

	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) matchPass(ctx context.Context) {
	stats, err := r.scheduler.RunOnce(ctx)
	switch {
	case errors.Is(err, matching.ErrPassActive):
		log.Printf("jobs: match pass skipped, previous pass still running")
	case err != nil:
		log.Printf("jobs: match pass: %v", err)
	default:
		log.Printf("jobs: match pass done: found=%d scored=%d skipped=%d stored=%d notified=%d pruned=%d",
			stats.FoundProcessed, stats.PairsScored, stats.PairsSkipped,
			stats.MatchesStored, stats.NotificationsSent, stats.Pruned)
	}

	sent, err := r.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("jobs: privacy sweep: %v", err)
	} else if sent > 0 {
		log.Printf("jobs: privacy sweep announced %d notifications", sent)
	}
}

func (r *Runner) purgePass(ctx context.Context) {
	if err := r.settlement.Purge(ctx); err != nil {
		log.Printf("jobs: retention purge: %v", err)
	}
}
