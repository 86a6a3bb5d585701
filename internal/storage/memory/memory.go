// Package memory is an in-process Store used for development and tests.
// It keeps the same semantics as the SQL repository: sequential ids,
// soft deletes and a fixed category catalog.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type record struct {
	expense   core.Expense
	deletedAt time.Time
}

type Store struct {
	mu         sync.RWMutex
	categories []core.Category
	names      map[int64]string
	users      map[int64]core.User
	expenses   map[int64]*record
	nextUser   int64
	nextExp    int64
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with categories. Invalid or duplicate entries are dropped.
func New(categories []core.Category) *Store {
	s := &Store{
		names:    map[int64]string{},
		users:    map[int64]core.User{},
		expenses: map[int64]*record{},
		now:      time.Now,
	}
	for _, c := range categories {
		c.Name = strings.TrimSpace(c.Name)
		if c.Validate() != nil {
			continue
		}
		if _, dup := s.names[c.ID]; dup {
			continue
		}
		s.names[c.ID] = c.Name
		s.categories = append(s.categories, c)
	}
	sort.Slice(s.categories, func(i, j int) bool { return s.categories[i].ID < s.categories[j].ID })
	return s
}

// NewDefault returns a store seeded with the default catalog.
func NewDefault() *Store {
	return New(core.DefaultCategories())
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Store) CategoryExists(_ context.Context, id int64) (bool, error) {
	_, ok := s.names[id]
	return ok, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.User{}, &core.ConflictError{Resource: "user", Field: "username"}
		}
		if existing.Email == u.Email {
			return core.User{}, &core.ConflictError{Resource: "user", Field: "email"}
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	return u, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExp++
	now := s.now().UTC()
	e.ID = s.nextExp
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now
	s.expenses[e.ID] = &record{expense: e}
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.live(id)
	if !ok {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	return r.expense, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, u core.ExpenseUpdate) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(id)
	if !ok {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	if u.IsEmpty() {
		return r.expense, nil
	}
	r.expense = u.Apply(r.expense)
	r.expense.Version++
	r.expense.UpdatedAt = s.now().UTC()
	return r.expense, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(id)
	if !ok {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	now := s.now().UTC()
	r.deletedAt = now
	r.expense.Version++
	r.expense.UpdatedAt = now
	return r.expense, nil
}

func (s *Store) ListExpenses(_ context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(f), nil
}

func (s *Store) SummaryByCategory(_ context.Context, userID int64) ([]core.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SummarizeByCategory(s.filter(core.ExpenseFilter{UserID: userID}), s.names), nil
}

// live must be called with the lock held.
func (s *Store) live(id int64) (*record, bool) {
	r, ok := s.expenses[id]
	if !ok || !r.deletedAt.IsZero() {
		return nil, false
	}
	return r, true
}

// filter must be called with the lock held.
func (s *Store) filter(f core.ExpenseFilter) []core.Expense {
	out := []core.Expense{}
	for _, r := range s.expenses {
		if r.deletedAt.IsZero() && f.Matches(r.expense) {
			out = append(out, r.expense)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
