/*
scheduler.go - Automated monthly billing scheduler

PURPOSE:
  Periodically checks whether the previous calendar month can be billed
  (reading and covering invoice both present, bills not yet generated)
  and runs billing automatically when it can.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets the month before the current one; the current month's reading
    cannot exist before the month ends
  - Skips periods whose bills already exist (billing is idempotent anyway,
    the skip just avoids log noise)
  - Missing inputs are normal, not errors: the reading or invoice may simply
    not have been entered yet

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBilling endpoint (manual runs)
  - billing/manager.go: The run itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hausnet/splitmeter/billing"
)

// BillingScheduler runs monthly billing without operator involvement.
type BillingScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(handler *Handler) *BillingScheduler {
	return &BillingScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndProcess()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndProcess()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()

	// Bill the month that just closed.
	period := billing.YearMonth{Year: now.Year(), Month: now.Month()}.Prev()

	existing, err := bs.Handler.Bills.BillsForPeriod(ctx, period)
	if err != nil {
		log.Printf("[Scheduler] Error checking bills for %s: %v", period, err)
		return
	}
	if len(existing) > 0 {
		return
	}

	result, err := bs.Handler.Manager.Run(ctx, period)
	if err != nil {
		if billing.IsNotFound(err) {
			// Reading or invoice not entered yet; try again next tick.
			return
		}
		log.Printf("[Scheduler] Billing run for %s failed: %v", period, err)
		return
	}

	log.Printf("[Scheduler] Billed %s: %d bills, %d warnings",
		period, len(result.Bills), len(result.Warnings))
	for _, warn := range result.Warnings {
		log.Printf("[Scheduler] %s: %s", period, warn.String())
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (bs *BillingScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(bs.CheckInterval)
}
