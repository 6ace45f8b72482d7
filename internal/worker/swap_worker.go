package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/montero-exchange/ledger/internal/observability"
	"github.com/montero-exchange/ledger/internal/service"
)

// SwapWorker periodically settles due swaps.
type SwapWorker struct {
	svc      *service.SwapService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSwapWorker constructs a worker with a default one-minute interval.
func NewSwapWorker(svc *service.SwapService) *SwapWorker {
	return &SwapWorker{
		svc:      svc,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *SwapWorker) WithInterval(interval time.Duration) *SwapWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *SwapWorker) Start(ctx context.Context) {
	zap.L().Info("swap worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Catch up on anything that came due while the process was down.
	w.ProcessOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("swap worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("swap worker stop signal received")
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SwapWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SwapWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce runs a single sweep.
func (w *SwapWorker) ProcessOnce(ctx context.Context) {
	if _, _, err := w.svc.RunSweep(ctx); err != nil {
		observability.IncrementWorkerRun("swap_sweep", "failed")
		zap.L().Error("swap sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("swap_sweep", "success")
}
