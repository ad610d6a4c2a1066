package handlers

import (
	"errors"
	"net/http"

	"pennytrail/internal/models"
	"pennytrail/internal/storage"
	"pennytrail/internal/validation"
)

// expenseResponse is the body of a successful create or update.
type expenseResponse struct {
	Message string          `json:"message"`
	Expense *models.Expense `json:"expense"`
}

// AddExpense records an expense owned by the authenticated user.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	var in validation.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	expense, err := validation.Expense(&in, currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.CreateExpense(r.Context(), expense); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseResponse{Message: "Expense added successfully", Expense: expense})
}

// ListExpenses returns the authenticated user's expenses, newest first.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.store.ListExpenses(r.Context(), currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// UpdateExpense replaces an expense owned by the authenticated user. An
// expense owned by someone else is reported as not found.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ExpenseID(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := currentUser(r).ID

	if _, err := h.store.GetExpense(r.Context(), id, userID); err != nil {
		h.writeExpenseError(w, r, err)
		return
	}

	var in validation.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	expense, err := validation.Expense(&in, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	expense.ID = id

	if err := h.store.UpdateExpense(r.Context(), expense); err != nil {
		h.writeExpenseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseResponse{Message: "Expense updated successfully", Expense: expense})
}

// DeleteExpense removes an expense owned by the authenticated user.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ExpenseID(id); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.store.DeleteExpense(r.Context(), id, currentUser(r).ID); err != nil {
		h.writeExpenseError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Expense deleted successfully")
}

func (h *Handlers) writeExpenseError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, msgExpenseNotFound)
		return
	}
	h.writeError(w, r, err)
}
