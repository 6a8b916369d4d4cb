// Package worker runs the background half of the hub: the recurring
// distribution ticks and the ledger deposit listener.
package worker

import (
	"context"
	"time"

	"govhub/internal/distribution"
	"govhub/internal/ledger"
	"govhub/internal/settlement"
	"govhub/internal/store"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type Worker struct {
	Store     *store.Store
	Scheduler *distribution.Scheduler
	Engine    *settlement.Engine

	Interval   time.Duration
	ConfirmTTL time.Duration
	HubOwner   ledger.Principal
	WSEndpoint string

	Log *zap.Logger
}

// Run arms one recurring job per registered distribution model, rescans for
// newly registered models, sweeps stale verifying orders, and blocks until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	armed := map[int64]bool{}
	armModels := func() {
		ids, err := w.Store.ListDistributionModelIDs(ctx)
		if err != nil {
			w.Log.Error("list distribution models", zap.Error(err))
			return
		}
		for _, id := range ids {
			if armed[id] {
				continue
			}
			modelID := id
			_, err := sched.NewJob(
				gocron.DurationJob(w.Interval),
				gocron.NewTask(func() {
					if err := w.Scheduler.RunModel(ctx, modelID); err != nil {
						w.Log.Error("distribution tick failed", zap.Int64("model", modelID), zap.Error(err))
					}
				}),
			)
			if err != nil {
				w.Log.Error("arm distribution timer", zap.Int64("model", modelID), zap.Error(err))
				continue
			}
			armed[modelID] = true
			w.Log.Info("distribution timer armed", zap.Int64("model", modelID), zap.Duration("interval", w.Interval))
		}
	}
	armModels()

	if _, err := sched.NewJob(
		gocron.DurationJob(w.Interval),
		gocron.NewTask(func() {
			armModels()
			w.sweepStaleVerifying(ctx)
		}),
	); err != nil {
		return err
	}

	sched.Start()
	go w.RunWS(ctx)

	<-ctx.Done()
	return sched.Shutdown()
}

func (w *Worker) sweepStaleVerifying(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.ConfirmTTL)
	n, err := w.Store.TimeOutStaleVerifying(ctx, cutoff)
	if err != nil {
		w.Log.Error("sweep stale verifying orders", zap.Error(err))
		return
	}
	if n > 0 {
		w.Log.Warn("timed out stale verifying orders", zap.Int64("count", n))
	}
}
