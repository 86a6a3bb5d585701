package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"expensetracker/internal/core"
)

// Repository is the database/sql implementation of Store for SQLite and Postgres.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
	now     func() time.Time
}

var _ Store = (*Repository)(nil)

// SQLiteDSN builds a modernc DSN with foreign keys, a busy timeout and WAL enabled.
func SQLiteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, SQLiteDSN(dbPath))
}

func NewPostgresRepository(databaseURL string) (*Repository, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}
	return open(DialectPostgres, databaseURL)
}

func open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
		now:     time.Now,
	}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		ExpenseDate: e.ExpenseDate.String(),
		Now:         r.now(),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", row.ID,
		"user_id", row.UserID,
		"category_id", row.CategoryID,
		"amount_cents", row.AmountCents,
		"dialect", r.dialect)

	return row.toCore(), nil
}

func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return row.toCore(), nil
}

func (r *Repository) UpdateExpense(ctx context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	if u.IsEmpty() {
		return r.GetExpense(ctx, id)
	}

	params := UpdateExpenseParams{ID: id, Now: r.now()}
	if u.CategoryID.Present() {
		params.CategoryID = &u.CategoryID.Value
	}
	if u.Amount.Present() {
		params.AmountCents = &u.Amount.Value.Cents
	}
	if u.Description.Set {
		params.Description = &u.Description.Value
	}
	if u.ExpenseDate.Present() {
		date := u.ExpenseDate.Value.String()
		params.ExpenseDate = &date
	}

	row, err := r.queries.UpdateExpense(ctx, params)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Expense updated", "expense_id", id, "version", row.Version)
	return row.toCore(), nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.SoftDeleteExpense(ctx, id, r.now())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete expense %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id)
	return row.toCore(), nil
}

func (r *Repository) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx, f.UserID, f.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = row.toCore()
	}
	return expenses, nil
}

func (r *Repository) SummaryByCategory(ctx context.Context, userID int64) ([]core.CategorySummary, error) {
	rows, err := r.queries.SummaryByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summary by category: %w", err)
	}
	out := make([]core.CategorySummary, len(rows))
	for i, row := range rows {
		out[i] = core.CategorySummary{
			CategoryID:       row.CategoryID,
			CategoryName:     row.CategoryName,
			TransactionCount: row.TransactionCount,
			TotalAmount:      core.Money{Cents: row.TotalCents},
		}
	}
	return out, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = core.Category{ID: row.ID, Name: row.Name}
	}
	return out, nil
}

func (r *Repository) CategoryExists(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.CountCategory(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check category %d: %w", id, err)
	}
	return n > 0, nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Now:          r.now(),
	})
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return core.User{}, &core.ConflictError{Resource: "user", Field: field}
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", row.ID, "username", row.Username)
	return row.toCore(), nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return row.toCore(), nil
}

func (row ExpenseRow) toCore() core.Expense {
	return core.Expense{
		ID:          row.ID,
		UserID:      row.UserID,
		CategoryID:  row.CategoryID,
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
		ExpenseDate: row.ExpenseDate.Date(),
		Version:     row.Version,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (row UserRow) toCore() core.User {
	return core.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.Time,
	}
}
