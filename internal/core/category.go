package core

// DefaultCategories is the seeded category catalog. The SQL migrations insert the same rows.
func DefaultCategories() []Category {
	return []Category{
		{ID: 1, Name: "Food"},
		{ID: 2, Name: "Entertainment"},
		{ID: 3, Name: "Transportation"},
		{ID: 4, Name: "Housing"},
		{ID: 5, Name: "Utilities"},
		{ID: 6, Name: "Healthcare"},
		{ID: 7, Name: "Shopping"},
		{ID: 8, Name: "Education"},
		{ID: 9, Name: "Travel"},
		{ID: 10, Name: "Other"},
	}
}
