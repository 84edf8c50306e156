package application

import (
	"context"
	"log/slog"
	"time"
)

const sweepLimit = 100

// Reconciler periodically re-runs the completion check for tickets
// whose image count already meets the target but whose status is
// still CREATED — the window left by a crash between the image insert
// and TryComplete. TryComplete is idempotent, so sweeping a ticket
// that is about to complete on the worker path is harmless.
type Reconciler struct {
	Repo        RepositoryAPI
	Coordinator *Coordinator
	Interval    time.Duration
	Log         *slog.Logger
}

func NewReconciler(repo RepositoryAPI, coord *Coordinator, interval time.Duration, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{Repo: repo, Coordinator: coord, Interval: interval, Log: log}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.Log.Error("reconciliation sweep failed", "error", err)
			}
		}
	}
}

func (r *Reconciler) Sweep(ctx context.Context) error {
	ids, err := r.Repo.StalledTickets(ctx, sweepLimit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		res, err := r.Coordinator.TryComplete(ctx, id)
		if err != nil {
			r.Log.Error("reconciliation failed for ticket", "ticket_id", id, "error", err)
			continue
		}
		if res == Transitioned {
			r.Log.Warn("recovered stalled ticket", "ticket_id", id)
		}
	}
	return nil
}
