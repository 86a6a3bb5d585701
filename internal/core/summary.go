package core

import "sort"

// CategorySummary aggregates the live expenses of one user in one category.
type CategorySummary struct {
	CategoryID       int64
	CategoryName     string
	TransactionCount int64
	TotalAmount      Money
}

// Summary is the per-category breakdown for a user plus overall totals.
type Summary struct {
	UserID           int64
	Categories       []CategorySummary
	TransactionCount int64
	TotalAmount      Money
}

// SummarizeByCategory groups expenses by category, omitting empty categories,
// ordered by category id. names supplies display names and may be nil.
func SummarizeByCategory(expenses []Expense, names map[int64]string) []CategorySummary {
	byID := make(map[int64]*CategorySummary)
	for _, e := range expenses {
		s, ok := byID[e.CategoryID]
		if !ok {
			s = &CategorySummary{CategoryID: e.CategoryID, CategoryName: names[e.CategoryID]}
			byID[e.CategoryID] = s
		}
		s.TransactionCount++
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
	}
	out := make([]CategorySummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}

// NewSummary computes overall totals from a per-category breakdown.
func NewSummary(userID int64, categories []CategorySummary) Summary {
	s := Summary{UserID: userID, Categories: categories}
	if s.Categories == nil {
		s.Categories = []CategorySummary{}
	}
	for _, c := range categories {
		s.TransactionCount += c.TransactionCount
		s.TotalAmount = s.TotalAmount.Add(c.TotalAmount)
	}
	return s
}
