package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/bookswap/internal/domain"
	"github.com/yourorg/bookswap/internal/observability/metrics"
	"github.com/yourorg/bookswap/internal/reliability/retry"
)

// StatsWorker periodically refreshes the listing gauges from the store so
// dashboards track availability without instrumenting every write path.
// It only reads; domain state is never mutated from here.
type StatsWorker struct {
	books    domain.BookRepository
	requests domain.RequestRepository
	logger   *slog.Logger
	interval time.Duration
	retryCfg *retry.Config
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(
	books domain.BookRepository,
	requests domain.RequestRepository,
	logger *slog.Logger,
	interval time.Duration,
) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}

	return &StatsWorker{
		books:    books,
		requests: requests,
		logger:   logger,
		interval: interval,
		retryCfg: retry.DefaultConfig(),
	}
}

// Start begins the refresh loop and blocks until ctx is cancelled
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatsWorker) refresh(ctx context.Context) {
	available, err := retry.Do(ctx, w.retryCfg, w.logger, "CountAvailable", func(ctx context.Context) (int, error) {
		return w.books.CountAvailable(ctx)
	})
	if err != nil {
		w.logger.Error("failed to count available books", slog.String("error", err.Error()))
	} else {
		metrics.SetAvailableBooks(available)
	}

	pending, err := retry.Do(ctx, w.retryCfg, w.logger, "CountPending", func(ctx context.Context) (int, error) {
		return w.requests.CountPending(ctx)
	})
	if err != nil {
		w.logger.Error("failed to count pending requests", slog.String("error", err.Error()))
	} else {
		metrics.SetPendingRequests(pending)
	}
}
