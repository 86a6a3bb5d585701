package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// EventPublisher is the outbound side of the AMQP client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ExpenseStats counts successful mutations since start.
type ExpenseStats struct {
	Created         int64
	Updated         int64
	Deleted         int64
	PublishFailures int64
}

// ExpenseService validates and orchestrates expense operations across the store and AMQP.
type ExpenseService struct {
	store     storage.Store
	catalog   storage.CategoryCatalog
	publisher EventPublisher

	created         atomic.Int64
	updated         atomic.Int64
	deleted         atomic.Int64
	publishFailures atomic.Int64
}

// NewExpenseService wires the service. catalog may wrap store with a cache; a nil
// catalog reads categories straight from store. A nil publisher disables events.
func NewExpenseService(store storage.Store, catalog storage.CategoryCatalog, publisher EventPublisher) *ExpenseService {
	if catalog == nil {
		catalog = store
	}
	return &ExpenseService{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
	}
}

// CreateExpense validates e, checks the user and category exist, then saves and publishes.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	var errs core.ValidationErrors
	if err := s.checkUser(ctx, e.UserID); err != nil {
		var ve *core.ValidationError
		if !errors.As(err, &ve) {
			return core.Expense{}, err
		}
		errs = append(errs, ve)
	}
	if err := s.checkCategory(ctx, e.CategoryID); err != nil {
		var ve *core.ValidationError
		if !errors.As(err, &ve) {
			return core.Expense{}, err
		}
		errs = append(errs, ve)
	}
	if err := errs.OrNil(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.created.Add(1)

	s.publish(ctx, amqp.EventExpenseCreated, saved)
	return saved, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// UpdateExpense applies the supplied fields of u to a live expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := u.Validate(current); err != nil {
		return core.Expense{}, err
	}
	if u.CategoryID.Present() && u.CategoryID.Value != current.CategoryID {
		if err := s.checkCategory(ctx, u.CategoryID.Value); err != nil {
			return core.Expense{}, err
		}
	}
	if u.IsEmpty() {
		return current, nil
	}

	updated, err := s.store.UpdateExpense(ctx, id, u)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.updated.Add(1)

	s.publish(ctx, amqp.EventExpenseUpdated, updated)
	return updated, nil
}

// DeleteExpense soft deletes an expense and publishes a delete event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteExpense(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("soft delete expense: %w", err)
	}
	s.deleted.Add(1)

	s.publish(ctx, amqp.EventExpenseDeleted, deleted)
	return nil
}

// ListExpenses returns live expenses matching f, ordered by id. Never nil.
func (s *ExpenseService) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, f)
	if err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// ListByCategory returns the live expenses of one category, optionally restricted to a user.
func (s *ExpenseService) ListByCategory(ctx context.Context, userID, categoryID int64) ([]core.Expense, error) {
	return s.ListExpenses(ctx, core.ExpenseFilter{UserID: userID, CategoryID: categoryID})
}

// SummaryByCategory returns per-category counts and totals for a user, omitting empty categories.
func (s *ExpenseService) SummaryByCategory(ctx context.Context, userID int64) (core.Summary, error) {
	if userID <= 0 {
		return core.Summary{}, core.NewValidationError("user_id", core.ErrInvalidUser)
	}
	rows, err := s.store.SummaryByCategory(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}
	return core.NewSummary(userID, rows), nil
}

func (s *ExpenseService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *ExpenseService) Stats() ExpenseStats {
	return ExpenseStats{
		Created:         s.created.Load(),
		Updated:         s.updated.Load(),
		Deleted:         s.deleted.Load(),
		PublishFailures: s.publishFailures.Load(),
	}
}

// Ping checks the backing store.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) checkUser(ctx context.Context, id int64) error {
	if _, err := s.store.GetUser(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError("user_id", core.ErrUnknownUser)
		}
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

func (s *ExpenseService) checkCategory(ctx context.Context, id int64) error {
	ok, err := s.catalog.CategoryExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.NewValidationError("category_id", core.ErrUnknownCategory)
	}
	return nil
}

// publish is best effort: the mutation is already committed.
func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", t, "expense_id", e.ID)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		s.publishFailures.Add(1)
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", t,
			"expense_id", e.ID,
			"error", err)
	}
}

// Close closes the store.
func (s *ExpenseService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close expense service: storage: %w", err)
	}
	return nil
}
