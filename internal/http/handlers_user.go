package http

import (
	"net/http"
	"strconv"

	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

// handleCreateUser registers a user. Every validation failure on this route is a 400.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	if err := s.validateStruct(req); err != nil {
		s.writeError(w, r, applog.OpValidate, err)
		return
	}

	u, err := s.users.CreateUser(r.Context(), services.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeErrorWithValidationStatus(w, r, applog.OpCreate, err, http.StatusBadRequest)
		return
	}
	s.logger.InfoContext(r.Context(), "User registered", applog.FieldUserID, u.ID, applog.FieldOperation, applog.OpCreate)

	w.Header().Set("Location", "/api/users/"+itoa(u.ID))
	respondJSON(r.Context(), w, http.StatusCreated, map[string]any{"user": newUserView(u)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	u, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"user": newUserView(u)})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
