// Package worker mirrors ledger mutations and dispatched summaries from the
// queue into the spreadsheet.
package worker

import (
	"context"
	"fmt"

	"uscite/internal/amqp"
	"uscite/internal/core"
	applog "uscite/internal/log"
	"uscite/internal/sheets"
	"uscite/internal/storage"
)

// MirrorWorker consumes mirror messages. Sync messages carry only the
// expense ID; the worker re-reads the entry from the ledger store so the
// mirrored row always reflects the persisted state.
type MirrorWorker struct {
	store     *storage.LedgerStore
	writer    sheets.MirrorWriter
	deleter   sheets.MirrorDeleter
	summaries sheets.SummaryWriter
	logger    *applog.Logger
}

func NewMirrorWorker(store *storage.LedgerStore, writer sheets.MirrorWriter, deleter sheets.MirrorDeleter, summaries sheets.SummaryWriter, logger *applog.Logger) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		writer:    writer,
		deleter:   deleter,
		summaries: summaries,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// Reconcile re-reads the ledger and mirrors any entry whose ID is missing
// from the mirror. It covers messages lost while the worker was down. The
// writer must also list mirrored IDs; when it cannot, reconcile is skipped.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	lister, ok := w.writer.(sheets.MirrorLister)
	if !ok {
		w.logger.DebugContext(ctx, "Mirror does not support listing, skipping reconcile")
		return nil
	}

	ledger, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	ids, err := lister.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list mirrored ids: %w", err)
	}

	mirrored := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		mirrored[id] = struct{}{}
	}

	var synced int
	for _, e := range ledger {
		if _, ok := mirrored[e.ID]; ok {
			continue
		}
		if _, err := w.writer.Append(ctx, e); err != nil {
			return fmt.Errorf("mirror expense %s: %w", e.ID, err)
		}
		synced++
	}

	if synced > 0 {
		w.logger.InfoContext(ctx, "Reconcile mirrored missed expenses", "count", synced)
	}
	return nil
}

// Handlers binds the worker methods to the queue consumer.
func (w *MirrorWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		OnSync:    w.HandleSyncMessage,
		OnDelete:  w.HandleDeleteMessage,
		OnSummary: w.HandleSummaryMessage,
	}
}

// HandleSyncMessage mirrors one expense row. An ID that is no longer in the
// ledger was deleted before the mirror caught up; that is not an error.
func (w *MirrorWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	ledger, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	var found *core.Expense
	for i := range ledger {
		if ledger[i].ID == msg.ID {
			found = &ledger[i]
			break
		}
	}
	if found == nil {
		w.logger.WarnContext(ctx, "Expense gone before mirror sync, skipping",
			applog.FieldExpenseID, msg.ID)
		return nil
	}

	ref, err := w.writer.Append(ctx, *found)
	if err != nil {
		return fmt.Errorf("mirror expense: %w", err)
	}

	w.logger.InfoContext(ctx, "Expense mirrored",
		applog.FieldExpenseID, msg.ID,
		applog.FieldSheetsRef, ref)
	return nil
}

// HandleDeleteMessage removes the mirrored row. The message carries the
// expense data because the entry is already gone from the ledger.
func (w *MirrorWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.ExpenseDeleteMessage) error {
	if w.deleter == nil {
		w.logger.WarnContext(ctx, "No mirror deleter configured, skipping",
			applog.FieldExpenseID, msg.ID)
		return nil
	}

	e := core.Expense{
		ID:         msg.ID,
		Reason:     msg.Reason,
		Amount:     core.Money{Cents: msg.AmountCents},
		OccurredAt: msg.OccurredAt,
	}
	if err := w.deleter.Delete(ctx, e); err != nil {
		return fmt.Errorf("delete mirrored expense: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored expense deleted", applog.FieldExpenseID, msg.ID)
	return nil
}

// HandleSummaryMessage records a dispatched monthly summary.
func (w *MirrorWorker) HandleSummaryMessage(ctx context.Context, msg *amqp.SummaryDispatchedMessage) error {
	if w.summaries == nil {
		w.logger.WarnContext(ctx, "No summary writer configured, skipping",
			applog.FieldMonthKey, msg.MonthKey)
		return nil
	}

	mk, err := core.ParseMonthKey(msg.MonthKey)
	if err != nil {
		// Permanently malformed, do not retry.
		w.logger.ErrorContext(ctx, "Malformed month key in summary message",
			applog.FieldMonthKey, msg.MonthKey)
		return nil
	}

	if err := w.summaries.AppendSummary(ctx, mk, core.Money{Cents: msg.TotalCents}, msg.SentAt); err != nil {
		return fmt.Errorf("mirror summary: %w", err)
	}

	w.logger.InfoContext(ctx, "Summary mirrored", applog.FieldMonthKey, msg.MonthKey)
	return nil
}
