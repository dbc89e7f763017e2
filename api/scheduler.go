/*
scheduler.go - Automated overdue sweep

PURPOSE:
  Periodically marks Sent invoices whose due date has passed as Overdue,
  so the invoice list reflects reality without an operator clicking the
  admin endpoint.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sweeps once immediately on start, then on every tick
  - Idempotent: already-Overdue invoices are never touched again

USAGE:
  scheduler := NewOverdueScheduler(accounting, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/accounting.go: MarkOverdue
  - handlers.go: MarkOverdue endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/crm-engine/ledger"
)

// OverdueScheduler flips past-due Sent invoices to Overdue on a timer.
type OverdueScheduler struct {
	Accounting    *ledger.Accounting
	CheckInterval time.Duration
	Enabled       bool
	Log           *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a scheduler with a 1h default interval.
func NewOverdueScheduler(accounting *ledger.Accounting, log *zap.Logger) *OverdueScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverdueScheduler{
		Accounting:    accounting,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("overdue scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.Log.Info("overdue scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("overdue scheduler stopped")
	}
}

func (s *OverdueScheduler) run() {
	defer s.wg.Done()

	// Sweep immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *OverdueScheduler) sweep() {
	ctx := context.Background()
	marked, err := s.Accounting.MarkOverdue(ctx, time.Now())
	if err != nil {
		s.Log.Error("overdue sweep failed", zap.Error(err))
		return
	}
	if marked > 0 {
		s.Log.Info("overdue sweep completed", zap.Int("marked", marked))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *OverdueScheduler) RunNow() {
	s.sweep()
}
