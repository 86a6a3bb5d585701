package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks failures that are the client's malformed input rather than
// a domain rule. They map to 400.
var errBadRequest = errors.New("bad request")

// requestError is a 400 with an optional set of field messages.
type requestError struct {
	errType string
	msg     string
	fields  map[string]string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return errBadRequest }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type createExpenseRequest struct {
	UserID      int64            `json:"user_id" validate:"required,gt=0"`
	CategoryID  int64            `json:"category_id" validate:"required,gt=0"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"max=500"`
	ExpenseDate string           `json:"expense_date" validate:"required,datetime=2006-01-02"`
}

// updateExpenseRequest keeps absent and null apart so only supplied fields change.
type updateExpenseRequest struct {
	UserID      core.Optional[int64]           `json:"user_id"`
	CategoryID  core.Optional[int64]           `json:"category_id"`
	Amount      core.Optional[decimal.Decimal] `json:"amount"`
	Description core.Optional[string]          `json:"description"`
	ExpenseDate core.Optional[string]          `json:"expense_date"`
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	eng := en.New()
	uni := ut.New(eng, eng)
	translator, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(fmt.Sprintf("register validator translations: %v", err))
	}
	return validate, translator
}

// decodeJSON reads a single JSON object into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		var ve *core.ValidationError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body must not be empty")
		case errors.As(err, &syntaxErr):
			return badRequest("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("malformed JSON")
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				return badRequest("value of type %s is not accepted here", typeErr.Value)
			}
			return &requestError{
				msg:    fmt.Sprintf("field %q has the wrong type", field),
				fields: map[string]string{field: "must be of type " + typeErr.Type.String()},
			}
		case errors.As(err, &maxErr):
			return badRequest("request body must not exceed %d bytes", maxErr.Limit)
		case errors.As(err, &ve):
			return &requestError{msg: ve.Error(), fields: map[string]string{ve.Field: ve.Err.Error()}}
		default:
			return badRequest("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// validateStruct runs the tag rules on dst and translates failures per JSON field.
func (s *Server) validateStruct(dst any) error {
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Translate(s.translator)
	}
	return &requestError{errType: applog.ErrorTypeValidation, msg: "request validation failed", fields: fields}
}

func (req createExpenseRequest) toExpense() (core.Expense, error) {
	amount, err := core.MoneyFromDecimal(*req.Amount)
	if err != nil {
		return core.Expense{}, core.NewValidationError("amount", err)
	}
	date, err := core.ParseDate(req.ExpenseDate)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		UserID:      req.UserID,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Description: req.Description,
		ExpenseDate: date,
	}, nil
}

func (req updateExpenseRequest) toUpdate() (core.ExpenseUpdate, error) {
	u := core.ExpenseUpdate{
		UserID:     req.UserID,
		CategoryID: req.CategoryID,
	}
	if req.Amount.Set {
		if req.Amount.Null {
			u.Amount = core.Null[core.Money]()
		} else {
			m, err := core.MoneyFromDecimal(req.Amount.Value)
			if err != nil {
				return core.ExpenseUpdate{}, core.NewValidationError("amount", err)
			}
			u.Amount = core.Some(m)
		}
	}
	if req.Description.Set {
		// null clears the description
		u.Description = core.Some(req.Description.Value)
	}
	if req.ExpenseDate.Set {
		if req.ExpenseDate.Null {
			u.ExpenseDate = core.Null[core.Date]()
		} else {
			d, err := core.ParseDate(req.ExpenseDate.Value)
			if err != nil {
				return core.ExpenseUpdate{}, err
			}
			u.ExpenseDate = core.Some(d)
		}
	}
	return u, nil
}

// pathID reads a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, &requestError{
			msg:    fmt.Sprintf("invalid %s", name),
			fields: map[string]string{name: "must be a positive integer"},
		}
	}
	return id, nil
}

// queryID reads an optional positive integer query parameter. Absent yields 0.
func queryID(r *http.Request, name string, required bool) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return 0, &requestError{
				msg:    fmt.Sprintf("%s query parameter is required", name),
				fields: map[string]string{name: "is required"},
			}
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &requestError{
			msg:    fmt.Sprintf("invalid %s", name),
			fields: map[string]string{name: "must be a positive integer"},
		}
	}
	return id, nil
}
