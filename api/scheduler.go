/*
scheduler.go - Periodic ledger reconciliation

PURPOSE:
  Periodically runs reservation.Reconcile over the whole store and logs
  every seat or wallet that breaks a ledger invariant. It never repairs
  anything: a discrepancy means a bug or a manual database edit and needs
  a human.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Keeps the last successful report (LastReport), served by
    GET /api/admin/reconciliation?cached=true
  - Can be started again after Stop

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GetReconciliation endpoint (on-demand report)
  - reservation/reconcile.go: The checks themselves
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/seat-ledger/reservation"
)

// ReconciliationScheduler runs ledger reconciliation on an interval.
type ReconciliationScheduler struct {
	Store         reservation.ReconcileStore
	CheckInterval time.Duration
	Enabled       bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *reservation.Report
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store reservation.ReconcileStore, log *zap.Logger) *ReconciliationScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconciliationScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.log.Info("reconciliation scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker.C, rs.stop)

	rs.log.Info("reconciliation scheduler started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	ticker, stop := rs.ticker, rs.stop
	rs.ticker, rs.stop = nil, nil
	rs.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		rs.wg.Wait()
		rs.log.Info("reconciliation scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-tick:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow runs one reconciliation and returns its report.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (reservation.Report, error) {
	start := time.Now()
	report, err := reservation.Reconcile(ctx, rs.Store)
	if err != nil {
		rs.log.Error("reconciliation failed", zap.Error(err))
		return reservation.Report{}, err
	}

	for _, s := range report.Seats {
		rs.log.Error("seat out of sync with tickets",
			zap.String("seat_id", string(s.SeatID)),
			zap.String("bus_id", string(s.BusID)),
			zap.Int("number", s.Number),
			zap.Bool("booked", s.Booked),
			zap.Int("paid_tickets", s.PaidTickets))
	}
	for _, wd := range report.Wallets {
		rs.log.Error("wallet balance out of sync with history",
			zap.String("user_id", string(wd.UserID)),
			zap.String("balance", wd.Balance.StringFixed(2)),
			zap.String("expected", wd.Expected.StringFixed(2)))
	}
	rs.log.Info("reconciliation completed",
		zap.Int("seats_checked", report.SeatsChecked),
		zap.Int("wallets_checked", report.WalletsChecked),
		zap.Bool("clean", report.Clean()),
		zap.Duration("took", time.Since(start)))

	rs.mu.Lock()
	rs.last = &report
	rs.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent successful report.
func (rs *ReconciliationScheduler) LastReport() (reservation.Report, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.last == nil {
		return reservation.Report{}, false
	}
	return *rs.last, true
}
