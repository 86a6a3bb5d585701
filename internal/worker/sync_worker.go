package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

// ExpenseSource is the read side of the store the worker mirrors from.
type ExpenseSource interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// SyncWorker mirrors expenses into a spreadsheet, driven by expense events and a
// periodic reconciliation pass.
type SyncWorker struct {
	source    ExpenseSource
	mirror    sheets.ExpenseMirror
	batchSize int
	logger    *applog.Logger

	// syncMu serialises mirror writes between event handling and reconciliation.
	syncMu sync.Mutex

	mu         sync.Mutex
	categories map[int64]string
}

func NewSyncWorker(source ExpenseSource, mirror sheets.ExpenseMirror, batchSize int, logger *applog.Logger) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent applies one expense event. The store is the source of truth: the current
// row is mirrored whatever the event says, and a row that is gone is cleared.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	w.logger.DebugContext(ctx, "Processing expense event",
		applog.FieldEventType, ev.Type,
		applog.FieldExpenseID, ev.ID,
		applog.FieldVersion, ev.Version)

	if ev.Type == amqp.EventExpenseDeleted {
		return w.clear(ctx, ev.ID)
	}

	e, err := w.source.GetExpense(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the event was published.
		return w.clear(ctx, ev.ID)
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", ev.ID, err)
	}
	if e.Version < ev.Version {
		// The store has not caught up yet; requeue.
		return fmt.Errorf("expense %d at version %d, event carries %d", e.ID, e.Version, ev.Version)
	}

	row, err := w.row(ctx, e)
	if err != nil {
		return err
	}
	if err := w.mirror.Upsert(ctx, row); err != nil {
		return fmt.Errorf("mirror expense %d: %w", e.ID, err)
	}
	w.logger.InfoContext(ctx, "Mirrored expense",
		applog.FieldExpenseID, e.ID,
		applog.FieldVersion, e.Version,
		applog.FieldAmountCents, e.Amount.Cents)
	return nil
}

// Reconcile pushes every live expense to the mirror in batches. Rows already at the
// current version are left alone by the mirror, so this recovers lost events cheaply.
// Each batch is re-read under the sync lock, so an expense deleted after the listing
// is never written back.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	start := time.Now()
	expenses, err := w.source.ListExpenses(ctx, core.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	mirrored := 0
	for i := 0; i < len(expenses); i += w.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+w.batchSize, len(expenses))
		n, err := w.reconcileBatch(ctx, expenses[i:end])
		if err != nil {
			return fmt.Errorf("mirror batch at %d: %w", i, err)
		}
		mirrored += n
	}

	w.logger.InfoContext(ctx, "Reconciliation completed",
		"expenses", len(expenses),
		"mirrored", mirrored,
		"batch_size", w.batchSize,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *SyncWorker) reconcileBatch(ctx context.Context, batch []core.Expense) (int, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	rows := make([]sheets.Row, 0, len(batch))
	for _, listed := range batch {
		e, err := w.source.GetExpense(ctx, listed.ID)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("get expense %d: %w", listed.ID, err)
		}
		r, err := w.row(ctx, e)
		if err != nil {
			return 0, err
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := w.mirror.Upsert(ctx, rows...); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// RunReconciler reconciles immediately and then on every tick until ctx is done.
// Failures are logged and retried on the next tick.
func (w *SyncWorker) RunReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Reconciliation failed", applog.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SyncWorker) clear(ctx context.Context, id int64) error {
	if err := w.mirror.Clear(ctx, id); err != nil {
		return fmt.Errorf("clear expense %d: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Cleared mirrored expense", applog.FieldExpenseID, id)
	return nil
}

func (w *SyncWorker) row(ctx context.Context, e core.Expense) (sheets.Row, error) {
	name, err := w.categoryName(ctx, e.CategoryID)
	if err != nil {
		return sheets.Row{}, err
	}
	return sheets.Row{Expense: e, CategoryName: name}, nil
}

// categoryName loads the catalog once; it is immutable for the life of the process.
func (w *SyncWorker) categoryName(ctx context.Context, id int64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.categories == nil {
		cats, err := w.source.ListCategories(ctx)
		if err != nil {
			return "", fmt.Errorf("list categories: %w", err)
		}
		w.categories = make(map[int64]string, len(cats))
		for _, c := range cats {
			w.categories[c.ID] = c.Name
		}
	}
	return w.categories[id], nil
}
