package handlers

import (
	"net/http"
	"strconv"
	"time"

	"pennytrail/internal/models"
)

// StatsCategoryItem represents a category with its spending statistics.
type StatsCategoryItem struct {
	Category   models.Category `json:"category"`
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// MonthRef names a calendar month.
type MonthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// StatsResponse is the monthly spending summary.
type StatsResponse struct {
	Year           int                 `json:"year"`
	Month          int                 `json:"month"`
	MonthName      string              `json:"monthName"`
	Total          float64             `json:"total"`
	Categories     []StatsCategoryItem `json:"categories"`
	Prev           MonthRef            `json:"prev"`
	Next           MonthRef            `json:"next"`
	IsCurrentMonth bool                `json:"isCurrentMonth"`
}

// Statistics summarizes the authenticated user's spending for one month.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	// Get year and month from query params, default to current month
	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")

	now := h.now().UTC()
	year := now.Year()
	month := int(now.Month())

	if yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil && y > 0 {
			year = y
		}
	}
	if monthStr != "" {
		if m, err := strconv.Atoi(monthStr); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	totals, err := h.store.CategoryTotalsByMonth(r.Context(), currentUser(r).ID, year, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var total float64
	for _, ct := range totals {
		total += ct.Total
	}

	items := make([]StatsCategoryItem, 0, len(totals))
	for _, ct := range totals {
		percentage := 0.0
		if total > 0 {
			percentage = (ct.Total / total) * 100
		}
		items = append(items, StatsCategoryItem{
			Category:   ct.Category,
			Total:      ct.Total,
			Count:      ct.Count,
			Percentage: percentage,
		})
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)

	writeJSON(w, http.StatusOK, StatsResponse{
		Year:           year,
		Month:          month,
		MonthName:      time.Month(month).String(),
		Total:          total,
		Categories:     items,
		Prev:           MonthRef{Year: prev.Year(), Month: int(prev.Month())},
		Next:           MonthRef{Year: next.Year(), Month: int(next.Month())},
		IsCurrentMonth: year == now.Year() && month == int(now.Month()),
	})
}
