package storage

import (
	"context"

	"expensetracker/internal/core"
)

// ExpenseRepository owns the expense lifecycle. Reads never return deleted rows.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error)
	// DeleteExpense soft-deletes a live expense and returns its final state.
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
	SummaryByCategory(ctx context.Context, userID int64) ([]core.CategorySummary, error)
}

// CategoryCatalog serves the seeded, immutable category table.
type CategoryCatalog interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CategoryExists(ctx context.Context, id int64) (bool, error)
}

type UserRegistry interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// Store is everything a backend provides to the services.
type Store interface {
	ExpenseRepository
	CategoryCatalog
	UserRegistry
	Ping(ctx context.Context) error
	Close() error
}
