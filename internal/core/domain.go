package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and storage format of an expense date.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds the free-text description of an expense (in runes).
const MaxDescriptionLength = 500

type (
	// Date is a calendar date without a time component, always normalised to UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID   int64
		Name string
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Expense struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Amount      Money
		Description string
		ExpenseDate Date
		// Version increments on every update; event consumers use it to drop stale messages.
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ExpenseFilter selects live expenses. Zero fields match everything.
	ExpenseFilter struct {
		UserID     int64
		CategoryID int64
	}

	// ExpenseUpdate carries a partial update. Only fields that are Set are applied.
	ExpenseUpdate struct {
		UserID      Optional[int64]
		CategoryID  Optional[int64]
		Amount      Optional[Money]
		Description Optional[string]
		ExpenseDate Optional[Date]
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out of range days such as 2025-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, NewValidationError("expense_date", ErrInvalidDate)
	}
	d := Date{Time: t.UTC()}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("expense_date", ErrInvalidDate)
	}
	// Four digit years only, so the wire format round-trips.
	if y := d.Year(); y < 1000 || y > 9999 {
		return NewValidationError("expense_date", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal reports whether both dates fall on the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return NewValidationError("expense_date", ErrInvalidDate)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	if m.Cents > MaxAmountCents {
		return NewValidationError("amount", ErrAmountTooLarge)
	}
	return nil
}

func (c Category) Validate() error {
	if c.ID <= 0 {
		return NewValidationError("id", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	return nil
}

// Validate checks the field-level constraints of a new expense. Referential checks
// (category and user existence) need the catalog and live in the service layer.
func (e Expense) Validate() error {
	var errs ValidationErrors
	if e.UserID <= 0 {
		errs = append(errs, NewValidationError("user_id", ErrInvalidUser))
	}
	if e.CategoryID <= 0 {
		errs = append(errs, NewValidationError("category_id", ErrInvalidCategory))
	}
	if err := e.Amount.Validate(); err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	if err := e.ExpenseDate.Validate(); err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	if err := validateDescription(e.Description); err != nil {
		errs = append(errs, err)
	}
	return errs.OrNil()
}

// validateDescription bounds the length and rejects control characters other than
// tab and line breaks. Descriptions are stored exactly as supplied.
func validateDescription(s string) *ValidationError {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return NewValidationError("description", ErrDescriptionTooLong)
	}
	for _, r := range s {
		if (r < 0x20 && r != '\t' && r != '\n' && r != '\r') || r == 0x7f {
			return NewValidationError("description", ErrDescriptionControl)
		}
	}
	return nil
}

// IsEmpty reports whether the update carries no field at all.
func (u ExpenseUpdate) IsEmpty() bool {
	return !u.UserID.Set && !u.CategoryID.Set && !u.Amount.Set && !u.Description.Set && !u.ExpenseDate.Set
}

// Validate checks every supplied field against the same constraints as creation.
// user_id is accepted only when it repeats the current owner.
func (u ExpenseUpdate) Validate(current Expense) error {
	var errs ValidationErrors
	if u.UserID.Set && (u.UserID.Null || u.UserID.Value != current.UserID) {
		errs = append(errs, NewValidationError("user_id", ErrImmutableField))
	}
	if u.CategoryID.Set && (u.CategoryID.Null || u.CategoryID.Value <= 0) {
		errs = append(errs, NewValidationError("category_id", ErrInvalidCategory))
	}
	if u.Amount.Set {
		if u.Amount.Null {
			errs = append(errs, NewValidationError("amount", ErrInvalidAmount))
		} else if err := u.Amount.Value.Validate(); err != nil {
			errs = append(errs, err.(*ValidationError))
		}
	}
	if u.ExpenseDate.Set {
		if u.ExpenseDate.Null {
			errs = append(errs, NewValidationError("expense_date", ErrInvalidDate))
		} else if err := u.ExpenseDate.Value.Validate(); err != nil {
			errs = append(errs, err.(*ValidationError))
		}
	}
	if u.Description.Set {
		if err := validateDescription(u.Description.Value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.OrNil()
}

// Apply returns a copy of e with the supplied fields replaced. A null description clears it.
func (u ExpenseUpdate) Apply(e Expense) Expense {
	if u.CategoryID.Present() {
		e.CategoryID = u.CategoryID.Value
	}
	if u.Amount.Present() {
		e.Amount = u.Amount.Value
	}
	if u.Description.Set {
		e.Description = u.Description.Value
	}
	if u.ExpenseDate.Present() {
		e.ExpenseDate = u.ExpenseDate.Value
	}
	return e
}

// Matches reports whether a live expense satisfies the filter.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	if f.CategoryID != 0 && e.CategoryID != f.CategoryID {
		return false
	}
	return true
}
