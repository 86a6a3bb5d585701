package http

import (
	"net/http"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeError(w, r, applog.OpValidate, err)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), e)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.slogger.LogExpenseMutation(r.Context(), applog.OpCreate, created.ID, created.UserID, created.CategoryID, created.Amount.Cents)

	w.Header().Set("Location", "/api/expenses/"+itoa(created.ID))
	respondJSON(r.Context(), w, http.StatusCreated, map[string]any{"expense": newExpenseView(created)})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	e, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"expense": newExpenseView(e)})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	u, err := req.toUpdate()
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}

	updated, err := s.expenses.UpdateExpense(r.Context(), id, u)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.slogger.LogExpenseMutation(r.Context(), applog.OpUpdate, updated.ID, updated.UserID, updated.CategoryID, updated.Amount.Cents)

	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"expense": newExpenseView(updated)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Expense deleted", applog.FieldExpenseID, id, applog.FieldOperation, applog.OpDelete)

	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"message": "expense deleted", "id": id})
}

// handleListExpenses serves GET /api/expenses with optional user_id and category_id filters.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "user_id", false)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	categoryID, err := queryID(r, "category_id", false)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	expenses, err := s.expenses.ListExpenses(r.Context(), core.ExpenseFilter{UserID: userID, CategoryID: categoryID})
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"expenses": newExpenseViews(expenses)})
}

func (s *Server) handleListByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "category_id")
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	userID, err := queryID(r, "user_id", false)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	expenses, err := s.expenses.ListByCategory(r.Context(), userID, categoryID)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"expenses": newExpenseViews(expenses)})
}

func (s *Server) handleSummaryByCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "user_id", true)
	if err != nil {
		s.writeError(w, r, applog.OpSummary, err)
		return
	}
	summary, err := s.expenses.SummaryByCategory(r.Context(), userID)
	if err != nil {
		s.writeErrorWithValidationStatus(w, r, applog.OpSummary, err, http.StatusBadRequest)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, newSummaryView(summary))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.expenses.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"categories": newCategoryViews(categories)})
}
