package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the hand-written statements of the repository, rebound per dialect.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

const expenseColumns = `id, user_id, category_id, amount_cents, description, expense_date, version, created_at, updated_at`

type ExpenseRow struct {
	ID          int64
	UserID      int64
	CategoryID  int64
	AmountCents int64
	Description string
	ExpenseDate dbTime
	Version     int64
	CreatedAt   dbTime
	UpdatedAt   dbTime
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(s rowScanner) (ExpenseRow, error) {
	var r ExpenseRow
	err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.CategoryID,
		&r.AmountCents,
		&r.Description,
		&r.ExpenseDate,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const createExpense = `INSERT INTO expenses (user_id, category_id, amount_cents, description, expense_date, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	UserID      int64
	CategoryID  int64
	AmountCents int64
	Description string
	ExpenseDate string
	Now         time.Time
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.Rebind(createExpense),
		arg.UserID,
		arg.CategoryID,
		arg.AmountCents,
		arg.Description,
		arg.ExpenseDate,
		q.dialect.timeArg(arg.Now),
		q.dialect.timeArg(arg.Now),
	)
	return scanExpense(row)
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) GetExpense(ctx context.Context, id int64) (ExpenseRow, error) {
	return scanExpense(q.db.QueryRowContext(ctx, q.dialect.Rebind(getExpense), id))
}

// UpdateExpenseParams lists the columns to overwrite. Nil pointers are left untouched.
type UpdateExpenseParams struct {
	ID          int64
	CategoryID  *int64
	AmountCents *int64
	Description *string
	ExpenseDate *string
	Now         time.Time
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (ExpenseRow, error) {
	var (
		sets []string
		args []interface{}
	)
	if arg.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *arg.CategoryID)
	}
	if arg.AmountCents != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, *arg.AmountCents)
	}
	if arg.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *arg.Description)
	}
	if arg.ExpenseDate != nil {
		sets = append(sets, "expense_date = ?")
		args = append(args, *arg.ExpenseDate)
	}
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, q.dialect.timeArg(arg.Now), arg.ID)

	query := `UPDATE expenses SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND deleted_at IS NULL RETURNING ` + expenseColumns
	return scanExpense(q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...))
}

const softDeleteExpense = `UPDATE expenses SET deleted_at = ?, updated_at = ?, version = version + 1
WHERE id = ? AND deleted_at IS NULL
RETURNING ` + expenseColumns

func (q *Queries) SoftDeleteExpense(ctx context.Context, id int64, now time.Time) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.Rebind(softDeleteExpense),
		q.dialect.timeArg(now), q.dialect.timeArg(now), id)
	return scanExpense(row)
}

func (q *Queries) ListExpenses(ctx context.Context, userID, categoryID int64) ([]ExpenseRow, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE deleted_at IS NULL`
	var args []interface{}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if categoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ExpenseRow{}
	for rows.Next() {
		r, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const summaryByCategory = `SELECT e.category_id, c.name, COUNT(*), CAST(SUM(e.amount_cents) AS BIGINT)
FROM expenses e
JOIN categories c ON c.id = e.category_id
WHERE e.user_id = ? AND e.deleted_at IS NULL
GROUP BY e.category_id, c.name
ORDER BY e.category_id`

type SummaryRow struct {
	CategoryID       int64
	CategoryName     string
	TransactionCount int64
	TotalCents       int64
}

func (q *Queries) SummaryByCategory(ctx context.Context, userID int64) ([]SummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.Rebind(summaryByCategory), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SummaryRow{}
	for rows.Next() {
		var i SummaryRow
		if err := rows.Scan(&i.CategoryID, &i.CategoryName, &i.TransactionCount, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategories = `SELECT id, name FROM categories ORDER BY id`

type CategoryRow struct {
	ID   int64
	Name string
}

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CategoryRow{}
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countCategory = `SELECT COUNT(*) FROM categories WHERE id = ?`

func (q *Queries) CountCategory(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, q.dialect.Rebind(countCategory), id).Scan(&n)
	return n, err
}

const createUser = `INSERT INTO users (username, email, password_hash, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, username, email, password_hash, created_at`

type UserRow struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    dbTime
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Now          time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.Rebind(createUser),
		arg.Username, arg.Email, arg.PasswordHash, q.dialect.timeArg(arg.Now))
	var i UserRow
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUser = `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.Rebind(getUser), id)
	var i UserRow
	err := row.Scan(&i.ID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt)
	return i, err
}
