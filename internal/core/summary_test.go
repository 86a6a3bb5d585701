package core

import "testing"

func TestSummarizeByCategory(t *testing.T) {
	expenses := []Expense{
		{ID: 1, CategoryID: 2, Amount: Money{Cents: 1500}},
		{ID: 2, CategoryID: 1, Amount: Money{Cents: 2575}},
		{ID: 3, CategoryID: 2, Amount: Money{Cents: 2000}},
		{ID: 4, CategoryID: 1, Amount: Money{Cents: 1}},
	}
	got := SummarizeByCategory(expenses, map[int64]string{1: "Food", 2: "Entertainment"})
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	want := []CategorySummary{
		{CategoryID: 1, CategoryName: "Food", TransactionCount: 2, TotalAmount: Money{Cents: 2576}},
		{CategoryID: 2, CategoryName: "Entertainment", TransactionCount: 2, TotalAmount: Money{Cents: 3500}},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}

	s := NewSummary(1, got)
	if s.TransactionCount != 4 || s.TotalAmount.Cents != 6076 {
		t.Fatalf("unexpected totals %+v", s)
	}
}

func TestNewSummaryEmpty(t *testing.T) {
	s := NewSummary(3, SummarizeByCategory(nil, nil))
	if s.Categories == nil || len(s.Categories) != 0 || s.TransactionCount != 0 {
		t.Fatalf("unexpected empty summary %+v", s)
	}
}
