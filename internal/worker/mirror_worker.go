// Package worker copies saved budget documents into the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

// DefaultConcurrency bounds the number of parallel mirror writes during a
// backfill.
const DefaultConcurrency = 4

// MirrorWorker handles budget saved messages by reading the document back
// from the store and writing it to the mirror.
type MirrorWorker struct {
	store       ports.DocumentStore
	mirror      ports.BudgetMirror
	logger      *log.Logger
	concurrency int
}

func NewMirrorWorker(store ports.DocumentStore, mirror ports.BudgetMirror, concurrency int, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &MirrorWorker{
		store:       store,
		mirror:      mirror,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: concurrency,
	}
}

// HandleBudgetSaved processes a single message from AMQP. A returned error
// makes the consumer requeue the message.
func (w *MirrorWorker) HandleBudgetSaved(ctx context.Context, msg *amqp.BudgetSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing budget saved message",
		log.FieldDocKey, msg.Key,
		log.FieldUserID, msg.UserID,
		log.FieldMonth, string(msg.Month))

	return w.mirrorKey(ctx, msg.Key)
}

func (w *MirrorWorker) mirrorKey(ctx context.Context, key string) error {
	doc, found, err := w.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get budget document %s: %w", key, err)
	}
	if !found {
		// Deleted after the message was published; nothing left to copy.
		w.logger.WarnContext(ctx, "Budget document not found, skipping mirror", log.FieldDocKey, key)
		return nil
	}

	if err := w.mirror.WriteBudget(ctx, doc); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror budget",
			log.FieldDocKey, key,
			log.FieldOperation, log.OpMirror,
			log.FieldError, err)
		return fmt.Errorf("mirror budget %s: %w", key, err)
	}

	w.logger.InfoContext(ctx, "Successfully mirrored budget",
		log.FieldDocKey, key,
		log.FieldItems, len(doc.Items))
	return nil
}

// Backfill mirrors every stored month of userID. It is run at worker
// startup to recover from messages lost while the worker was down. Writes
// go to distinct sheets, so they run in parallel; the first failure cancels
// the rest.
func (w *MirrorWorker) Backfill(ctx context.Context, lister ports.MonthLister, userID string) (int, error) {
	months, err := lister.Months(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list budget months: %w", err)
	}
	if len(months) == 0 {
		w.logger.InfoContext(ctx, "No stored budgets found on startup", log.FieldUserID, userID)
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, month := range months {
		key := core.DocumentKey(userID, month)
		g.Go(func() error {
			return w.mirrorKey(gctx, key)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	w.logger.InfoContext(ctx, "Startup mirror completed",
		log.FieldUserID, userID,
		"total", len(months))
	return len(months), nil
}
