// Package storage persists users and their expenses.
//
// Two backends implement Store: DB (SQLite, the default) and PostgresDB.
// Every expense operation is scoped by the owning user's id; an expense that
// belongs to someone else is reported exactly like one that does not exist.
package storage

import (
	"context"
	"errors"
	"time"

	"pennytrail/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist or is not
	// owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidInput is returned when a required field is missing.
	ErrInvalidInput = errors.New("invalid input")
)

// UserStore is the credential store.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error)
	GetCredentialsByID(ctx context.Context, id string) (*models.Credentials, error)
	UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UserCount(ctx context.Context) (int, error)
}

// ExpenseStore persists expenses. All lookups and mutations filter by owner.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *models.Expense) error
	ListExpenses(ctx context.Context, userID string) ([]models.Expense, error)
	GetExpense(ctx context.Context, id, userID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, e *models.Expense) error
	DeleteExpense(ctx context.Context, id, userID string) error
	CategoryTotalsByMonth(ctx context.Context, userID string, year, month int) ([]models.CategoryTotal, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	UserStore
	ExpenseStore
	Ping(ctx context.Context) error
	Close() error
}

func requireUserFields(name, email, passwordHash string) error {
	switch {
	case name == "":
		return errors.Join(ErrInvalidInput, errors.New("name is required"))
	case email == "":
		return errors.Join(ErrInvalidInput, errors.New("email is required"))
	case passwordHash == "":
		return errors.Join(ErrInvalidInput, errors.New("password hash is required"))
	}
	return nil
}

func requireExpenseFields(e *models.Expense) error {
	switch {
	case e == nil:
		return errors.Join(ErrInvalidInput, errors.New("expense is required"))
	case e.UserID == "":
		return errors.Join(ErrInvalidInput, errors.New("user id is required"))
	case !e.Category.Valid():
		return errors.Join(ErrInvalidInput, errors.New("invalid category"))
	case e.Description == "":
		return errors.Join(ErrInvalidInput, errors.New("description is required"))
	}
	return nil
}

// monthRange returns the [start, end) bounds of a calendar month in UTC.
func monthRange(year, month int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
