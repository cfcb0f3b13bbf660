package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/vizion-pay/vizion_core/internal/ledger"
	"github.com/vizion-pay/vizion_core/internal/wallet"
)

// Runner periodically releases matured reserves and advances settlement
// dates for wallets whose schedule has come due.
type Runner struct {
	wallets  wallet.Repository
	ledger   ledger.Ledger
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewRunner constructs a settlement runner.
func NewRunner(wallets wallet.Repository, led ledger.Ledger, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		wallets:  wallets,
		ledger:   led,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				settled, err := r.RunOnce(context.Background(), time.Now().UTC())
				if err != nil {
					r.logger.Error("settlement batch failed", "error", err)
					continue
				}
				if settled > 0 {
					r.logger.Info("settlement batch complete", "wallets", settled)
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight batch to finish.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

// RunOnce settles every wallet due at asOf and returns how many were touched.
// A failure on one wallet is logged and does not block the others.
func (r *Runner) RunOnce(ctx context.Context, asOf time.Time) (int, error) {
	due, err := r.wallets.DueForSettlement(ctx, asOf)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, w := range due {
		if _, err := r.ledger.Settle(ctx, w.ID, asOf); err != nil {
			r.logger.Error("wallet settlement failed", "wallet_id", w.ID, "error", err)
			continue
		}
		settled++
	}
	return settled, nil
}
