package models

import "time"

// Category is one of the fixed expense categories.
type Category string

const (
	CategoryFood      Category = "Food & Groceries"
	CategoryTransport Category = "Transport"
	CategoryLifestyle Category = "Lifestyle"
	CategoryUtilities Category = "Utilities & Bills"
	CategoryHealth    Category = "Health"
	CategoryOthers    Category = "Others"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryLifestyle,
	CategoryUtilities,
	CategoryHealth,
	CategoryOthers,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Expense represents a financial expense record owned by a single user.
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      float64   `json:"amount"`
	Category    Category  `json:"category"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CategoryTotal aggregates a user's spending in one category.
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    float64  `json:"total"`
	Count    int      `json:"count"`
}
