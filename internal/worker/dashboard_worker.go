// Package worker keeps exported dashboards in step with hisaab changes.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hisaab/internal/aggregate"
	"hisaab/internal/amqp"
	"hisaab/internal/log"
	"hisaab/internal/sheets"
	"hisaab/internal/storage"
)

// DashboardWorker recomputes an owner's dashboard whenever one of their
// hisaabs changes and hands it to a sheets.DashboardWriter.
type DashboardWorker struct {
	store       storage.HisaabStore
	writer      sheets.DashboardWriter
	logger      *log.Logger
	concurrency int
}

func NewDashboardWorker(store storage.HisaabStore, writer sheets.DashboardWriter, logger *log.Logger, concurrency int) *DashboardWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DashboardWorker{
		store:       store,
		writer:      writer,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: concurrency,
	}
}

// HandleHisaabEvent implements amqp.Handler. A returned error makes the
// consumer requeue the message.
func (w *DashboardWorker) HandleHisaabEvent(ctx context.Context, evt *amqp.HisaabEvent) error {
	w.logger.InfoContext(ctx, "Processing hisaab event",
		log.FieldEventType, evt.Type,
		log.FieldHisaabID, evt.HisaabID,
		log.FieldOwnerID, evt.OwnerID)

	if err := w.SyncOwner(ctx, evt.OwnerID); err != nil {
		return fmt.Errorf("sync dashboard for %s event: %w", evt.Type, err)
	}
	return nil
}

// SyncOwner recomputes and writes one owner's dashboard.
func (w *DashboardWorker) SyncOwner(ctx context.Context, ownerID string) error {
	records, err := w.store.Find(ctx, storage.Filter{OwnerID: ownerID})
	if err != nil {
		return fmt.Errorf("load hisaabs: %w", err)
	}
	d := aggregate.Build(records, ownerID)
	if err := w.writer.WriteDashboard(ctx, d); err != nil {
		return fmt.Errorf("write dashboard: %w", err)
	}
	return nil
}

// StartupSync rewrites every owner's dashboard, covering events missed while
// the worker was down. Owners that fail are logged and counted; the first
// error is returned after all owners were attempted.
func (w *DashboardWorker) StartupSync(ctx context.Context) error {
	owners, err := w.store.OwnerIDs(ctx)
	if err != nil {
		return fmt.Errorf("list owners for startup sync: %w", err)
	}
	if len(owners) == 0 {
		w.logger.InfoContext(ctx, "No dashboards to sync on startup")
		return nil
	}

	results := make([]error, len(owners))
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, owner := range owners {
		g.Go(func() error {
			results[i] = w.SyncOwner(ctx, owner)
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failed := 0
	for i, err := range results {
		if err == nil {
			continue
		}
		failed++
		w.logger.ErrorContext(ctx, "Startup dashboard sync failed",
			log.FieldOwnerID, owners[i],
			log.FieldError, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(owners),
		"synced", len(owners)-failed,
		"errors", failed)
	return firstErr
}
