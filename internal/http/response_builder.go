package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type expenseView struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	CategoryID  int64      `json:"category_id"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	ExpenseDate core.Date  `json:"expense_date"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type userView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type categoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categorySummaryView struct {
	CategoryID       int64      `json:"category_id"`
	CategoryName     string     `json:"category_name"`
	TransactionCount int64      `json:"transaction_count"`
	TotalAmount      core.Money `json:"total_amount"`
}

type summaryView struct {
	UserID           int64                 `json:"user_id"`
	Summary          []categorySummaryView `json:"summary"`
	TransactionCount int64                 `json:"transaction_count"`
	TotalAmount      core.Money            `json:"total_amount"`
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:          e.ID,
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		Amount:      e.Amount,
		Description: e.Description,
		ExpenseDate: e.ExpenseDate,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func newExpenseViews(expenses []core.Expense) []expenseView {
	out := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, newExpenseView(e))
	}
	return out
}

// newUserView never carries the password hash.
func newUserView(u core.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt.UTC()}
}

func newCategoryViews(categories []core.Category) []categoryView {
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryView{ID: c.ID, Name: c.Name})
	}
	return out
}

func newSummaryView(s core.Summary) summaryView {
	rows := make([]categorySummaryView, 0, len(s.Categories))
	for _, c := range s.Categories {
		rows = append(rows, categorySummaryView{
			CategoryID:       c.CategoryID,
			CategoryName:     c.CategoryName,
			TransactionCount: c.TransactionCount,
			TotalAmount:      c.TotalAmount,
		})
	}
	return summaryView{
		UserID:           s.UserID,
		Summary:          rows,
		TransactionCount: s.TransactionCount,
		TotalAmount:      s.TotalAmount,
	}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to encode response", applog.FieldError, err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, errType, msg string, fields map[string]string) {
	respondJSON(ctx, w, status, errorBody{Error: errorDetail{Type: errType, Message: msg, Fields: fields}})
}

// writeError maps err onto a status and error body. Domain validation failures are 422;
// use writeErrorWithValidationStatus where a route documents another status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.writeErrorWithValidationStatus(w, r, op, err, http.StatusUnprocessableEntity)
}

func (s *Server) writeErrorWithValidationStatus(w http.ResponseWriter, r *http.Request, op string, err error, validationStatus int) {
	ctx := r.Context()
	var reqErr *requestError
	var notFound *core.NotFoundError
	switch {
	case errors.As(err, &reqErr):
		errType := reqErr.errType
		if errType == "" {
			errType = applog.ErrorTypeBadRequest
		}
		respondError(ctx, w, http.StatusBadRequest, errType, reqErr.msg, reqErr.fields)
	case core.IsValidation(err):
		respondError(ctx, w, validationStatus, applog.ErrorTypeValidation, "validation failed", core.ValidationFields(err))
	case errors.As(err, &notFound):
		respondError(ctx, w, http.StatusNotFound, applog.ErrorTypeNotFound, notFound.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, applog.ErrorTypeNotFound, "resource not found", nil)
	case errors.Is(err, core.ErrConflict):
		respondError(ctx, w, http.StatusConflict, applog.ErrorTypeConflict, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(ctx, w, http.StatusServiceUnavailable, applog.ErrorTypeTimeout, "request timed out", nil)
	default:
		s.slogger.LogError(ctx, "Request failed", err, applog.ComponentHTTP, op, applog.NewFields().
			WithErrorType(applog.ErrorTypeInternal))
		respondError(ctx, w, http.StatusInternalServerError, applog.ErrorTypeInternal, "internal server error", nil)
	}
}
