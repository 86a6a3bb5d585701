package sheets

import (
	"context"

	"expensetracker/internal/core"
)

// Row is one expense as mirrored into the spreadsheet.
type Row struct {
	Expense      core.Expense
	CategoryName string
}

// ExpenseMirror keeps an external copy of live expenses keyed by expense id.
type ExpenseMirror interface {
	// Upsert writes rows, replacing an existing row only when the incoming version is newer.
	Upsert(ctx context.Context, rows ...Row) error
	// Clear blanks the row of a deleted expense. A missing row is not an error.
	Clear(ctx context.Context, id int64) error
}
