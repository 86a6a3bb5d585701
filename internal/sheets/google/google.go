// Package google mirrors expenses into a Google Sheet through the Sheets v4 API,
// authenticated with a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

// Column layout of the mirror sheet. The id in column A is the row key.
var header = []any{"ID", "User ID", "Date", "Category", "Amount", "Description", "Version", "Updated At"}

const (
	lastColumn = "H"
	// keyColumns covers the id and version columns read when planning writes.
	keyColumns = "A:G"
	versionCol = 6
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

var _ sheets.ExpenseMirror = (*Client)(nil)

// NewClient creates a Sheets client from service account credentials, preferring
// inline JSON over a file path.
func NewClient(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, goption.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}, nil
}

func (c *Client) Upsert(ctx context.Context, rows ...sheets.Row) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := c.readKeys(ctx)
	if err != nil {
		return err
	}

	p := planUpsert(c.sheetName, existing, rows)
	if len(p.updates) > 0 {
		req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: p.updates}
		if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update rows in %s: %w", c.sheetName, err)
		}
	}
	if len(p.appends) > 0 {
		vr := &gsheet.ValueRange{Values: p.appends}
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.sheetName, "A:"+lastColumn), vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append rows to %s: %w", c.sheetName, err)
		}
	}

	c.logger.DebugContext(ctx, "Mirrored expenses",
		"updated", len(p.updates),
		"appended", len(p.appends),
		"skipped", p.skipped)
	return nil
}

func (c *Client) Clear(ctx context.Context, id int64) error {
	existing, err := c.readKeys(ctx)
	if err != nil {
		return err
	}
	k, ok := indexKeys(existing)[id]
	if !ok {
		c.logger.DebugContext(ctx, "No mirrored row to clear", applog.FieldExpenseID, id)
		return nil
	}
	rng := a1(c.sheetName, fmt.Sprintf("A%d:%s%d", k.row, lastColumn, k.row))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readKeys(ctx context.Context) ([][]any, error) {
	rng := a1(c.sheetName, keyColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

type upsertPlan struct {
	updates []*gsheet.ValueRange
	appends [][]any
	skipped int
}

// planUpsert decides, from the current id and version columns, which rows are rewritten in
// place, which are appended and which are skipped as stale. An empty sheet gets a header.
func planUpsert(sheet string, existing [][]any, rows []sheets.Row) upsertPlan {
	var p upsertPlan
	keys := indexKeys(existing)

	for _, r := range latestByID(rows) {
		e := r.Expense
		if k, ok := keys[e.ID]; ok {
			if k.version >= e.Version {
				p.skipped++
				continue
			}
			p.updates = append(p.updates, &gsheet.ValueRange{
				Range:  a1(sheet, fmt.Sprintf("A%d:%s%d", k.row, lastColumn, k.row)),
				Values: [][]any{buildRow(r)},
			})
			continue
		}
		p.appends = append(p.appends, buildRow(r))
	}

	if len(existing) == 0 && len(p.appends) > 0 {
		p.appends = append([][]any{header}, p.appends...)
	}
	return p
}

type rowKey struct {
	row     int
	version int64
}

// indexKeys maps expense ids to their 1-based sheet row. Rows whose first cell is not an
// id (the header, cleared rows) are ignored.
func indexKeys(values [][]any) map[int64]rowKey {
	keys := make(map[int64]rowKey, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(cell(row, 0), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		version, _ := strconv.ParseInt(cell(row, versionCol), 10, 64)
		keys[id] = rowKey{row: i + 1, version: version}
	}
	return keys
}

// latestByID keeps the highest version of each expense, preserving first-seen order.
func latestByID(rows []sheets.Row) []sheets.Row {
	pos := make(map[int64]int, len(rows))
	out := make([]sheets.Row, 0, len(rows))
	for _, r := range rows {
		if i, ok := pos[r.Expense.ID]; ok {
			if r.Expense.Version > out[i].Expense.Version {
				out[i] = r
			}
			continue
		}
		pos[r.Expense.ID] = len(out)
		out = append(out, r)
	}
	return out
}

func buildRow(r sheets.Row) []any {
	e := r.Expense
	return []any{
		e.ID,
		e.UserID,
		e.ExpenseDate.Format(core.DateLayout),
		r.CategoryName,
		e.Amount.Float64(),
		e.Description,
		e.Version,
		e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// a1 builds an A1 range, quoting the sheet name.
func a1(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
