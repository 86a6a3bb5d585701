package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (f *fakePublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) types() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

func newTestService(t *testing.T) (*ExpenseService, *fakePublisher, core.User) {
	t.Helper()
	store := memory.NewDefault()
	user, err := store.CreateUser(context.Background(), core.User{Username: "tester", Email: "tester@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	pub := &fakePublisher{}
	return NewExpenseService(store, nil, pub), pub, user
}

func lunch(userID int64) core.Expense {
	return core.Expense{
		UserID:      userID,
		CategoryID:  1,
		Amount:      core.Money{Cents: 2575},
		Description: "Lunch at restaurant",
		ExpenseDate: core.NewDate(2025, 1, 15),
	}
}

func TestExpenseService_CreateAndGet(t *testing.T) {
	svc, pub, user := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, lunch(user.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := lunch(user.ID)
	if got.UserID != want.UserID || got.CategoryID != want.CategoryID || got.Amount != want.Amount ||
		got.Description != want.Description || !got.ExpenseDate.Equal(want.ExpenseDate) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if types := pub.types(); len(types) != 1 || types[0] != amqp.EventExpenseCreated {
		t.Fatalf("expected one created event, got %v", types)
	}
	if svc.Stats().Created != 1 {
		t.Fatalf("expected created counter 1, got %+v", svc.Stats())
	}
}

func TestExpenseService_CreateValidation(t *testing.T) {
	svc, pub, user := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*core.Expense)
		field string
		is    error
	}{
		{"unknown category", func(e *core.Expense) { e.CategoryID = 999 }, "category_id", core.ErrUnknownCategory},
		{"zero amount", func(e *core.Expense) { e.Amount = core.Money{} }, "amount", core.ErrInvalidAmount},
		{"negative amount", func(e *core.Expense) { e.Amount = core.Money{Cents: -100} }, "amount", core.ErrInvalidAmount},
		{"missing date", func(e *core.Expense) { e.ExpenseDate = core.Date{} }, "expense_date", core.ErrInvalidDate},
		{"unknown user", func(e *core.Expense) { e.UserID = 404 }, "user_id", core.ErrUnknownUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := lunch(user.ID)
			tt.edit(&e)
			_, err := svc.CreateExpense(ctx, e)
			if !core.IsValidation(err) || !errors.Is(err, tt.is) {
				t.Fatalf("expected validation error %v, got %v", tt.is, err)
			}
			if _, ok := core.ValidationFields(err)[tt.field]; !ok {
				t.Fatalf("expected field %s in %v", tt.field, core.ValidationFields(err))
			}
		})
	}

	list, _ := svc.ListExpenses(ctx, core.ExpenseFilter{})
	if len(list) != 0 || len(pub.types()) != 0 {
		t.Fatalf("validation failures must not persist or publish: %d rows, %d events", len(list), len(pub.types()))
	}
}

func TestExpenseService_UpdatePartial(t *testing.T) {
	svc, pub, user := newTestService(t)
	ctx := context.Background()
	created, _ := svc.CreateExpense(ctx, lunch(user.ID))

	updated, err := svc.UpdateExpense(ctx, created.ID, core.ExpenseUpdate{
		Amount:      core.Some(core.Money{Cents: 3050}),
		Description: core.Some("Updated: Dinner at restaurant"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.String() != "30.50" || updated.Description != "Updated: Dinner at restaurant" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.CategoryID != created.CategoryID || !updated.ExpenseDate.Equal(created.ExpenseDate) || updated.UserID != created.UserID {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	if _, err := svc.UpdateExpense(ctx, created.ID, core.ExpenseUpdate{CategoryID: core.Some(int64(999))}); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	if _, err := svc.UpdateExpense(ctx, created.ID, core.ExpenseUpdate{UserID: core.Some(user.ID + 1)}); !errors.Is(err, core.ErrImmutableField) {
		t.Fatalf("expected immutable user_id, got %v", err)
	}
	if _, err := svc.UpdateExpense(ctx, 999, core.ExpenseUpdate{Amount: core.Some(core.Money{Cents: 1})}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	same, err := svc.UpdateExpense(ctx, created.ID, core.ExpenseUpdate{})
	if err != nil || same.Version != updated.Version {
		t.Fatalf("empty update should be a no-op: %+v err=%v", same, err)
	}

	types := pub.types()
	if len(types) != 2 || types[1] != amqp.EventExpenseUpdated {
		t.Fatalf("expected created+updated events, got %v", types)
	}
}

func TestExpenseService_DeleteIsFinal(t *testing.T) {
	svc, pub, user := newTestService(t)
	ctx := context.Background()
	created, _ := svc.CreateExpense(ctx, lunch(user.ID))

	if err := svc.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetExpense(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.DeleteExpense(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	list, _ := svc.ListByCategory(ctx, user.ID, 1)
	if len(list) != 0 {
		t.Fatalf("deleted expense listed: %+v", list)
	}
	summary, _ := svc.SummaryByCategory(ctx, user.ID)
	if len(summary.Categories) != 0 || summary.TransactionCount != 0 {
		t.Fatalf("deleted expense summarised: %+v", summary)
	}
	if types := pub.types(); types[len(types)-1] != amqp.EventExpenseDeleted {
		t.Fatalf("expected deleted event last, got %v", types)
	}
}

func TestExpenseService_Summary(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	amounts := map[int64][]int64{1: {2575, 1000}, 2: {1550, 1}}
	var n int
	for cat, list := range amounts {
		for _, cents := range list {
			e := lunch(user.ID)
			e.CategoryID = cat
			e.Amount = core.Money{Cents: cents}
			if _, err := svc.CreateExpense(ctx, e); err != nil {
				t.Fatal(err)
			}
			n++
		}
	}

	summary, err := svc.SummaryByCategory(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %+v", summary.Categories)
	}
	var count int64
	for _, c := range summary.Categories {
		count += c.TransactionCount
		var want int64
		for _, cents := range amounts[c.CategoryID] {
			want += cents
		}
		if c.TotalAmount.Cents != want {
			t.Fatalf("category %d: total %d want %d", c.CategoryID, c.TotalAmount.Cents, want)
		}
	}
	if count != int64(n) || summary.TransactionCount != int64(n) {
		t.Fatalf("counts do not add up: %d / %d want %d", count, summary.TransactionCount, n)
	}
	if summary.Categories[0].CategoryID != 1 || summary.Categories[0].CategoryName != "Food" {
		t.Fatalf("expected ordered, named entries: %+v", summary.Categories)
	}

	if _, err := svc.SummaryByCategory(ctx, 0); !core.IsValidation(err) {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}
}

func TestExpenseService_PublishFailureDoesNotFailRequest(t *testing.T) {
	svc, pub, user := newTestService(t)
	pub.err = errors.New("connection refused")

	if _, err := svc.CreateExpense(context.Background(), lunch(user.ID)); err != nil {
		t.Fatalf("publish failure should be swallowed, got %v", err)
	}
	if svc.Stats().PublishFailures != 1 {
		t.Fatalf("expected publish failure counted, got %+v", svc.Stats())
	}
}

func TestExpenseService_NilPublisher(t *testing.T) {
	store := memory.NewDefault()
	user, _ := store.CreateUser(context.Background(), core.User{Username: "u", Email: "u@example.com"})
	svc := NewExpenseService(store, nil, nil)

	if _, err := svc.CreateExpense(context.Background(), lunch(user.ID)); err != nil {
		t.Fatalf("create without publisher: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
