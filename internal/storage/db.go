package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pennytrail/internal/models"
)

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer; one connection also keeps ":memory:" databases shared.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			amount REAL NOT NULL,
			category TEXT NOT NULL,
			date DATETIME NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return oops.Code("MIGRATION_FAILED").With("statement", m).Wrap(err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user. The email must not already be registered.
func (db *DB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	if err := requireUserFields(name, email, passwordHash); err != nil {
		return nil, oops.Code("USER_INVALID").Wrap(err)
	}

	now := db.now().UTC()
	u := &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, passwordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_CREATE_FAILED").With("email", email).Wrap(err)
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	c, err := db.GetCredentialsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.User, nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	c, err := db.GetCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &c.User, nil
}

// GetCredentialsByID retrieves a user and the stored password hash by ID.
func (db *DB) GetCredentialsByID(ctx context.Context, id string) (*models.Credentials, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = ?",
		id,
	)
	c, err := scanCredentials(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("id", id).Wrap(err)
	}
	return c, nil
}

// GetCredentialsByEmail retrieves a user and the stored password hash by email.
func (db *DB) GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = ?",
		email,
	)
	c, err := scanCredentials(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("email", email).Wrap(err)
	}
	return c, nil
}

// UpdateProfile changes a user's name and email.
func (db *DB) UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error) {
	if name == "" || email == "" {
		return nil, oops.Code("USER_INVALID").With("id", id).Wrap(ErrInvalidInput)
	}

	result, err := db.conn.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?",
		name, email, db.now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_UPDATE_FAILED").With("id", id).Wrap(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return db.GetUserByID(ctx, id)
}

// UpdatePasswordHash replaces a user's stored password hash.
func (db *DB) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return oops.Code("USER_INVALID").With("id", id).Wrap(ErrInvalidInput)
	}

	result, err := db.conn.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, db.now().UTC(), id,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("id", id).Wrap(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateExpense inserts a new expense. ID and timestamps are assigned here.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) error {
	if err := requireExpenseFields(e); err != nil {
		return oops.Code("EXPENSE_INVALID").Wrap(err)
	}

	now := db.now().UTC()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount, string(e.Category), e.Date, e.Description, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return oops.Code("EXPENSE_CREATE_FAILED").With("user_id", e.UserID).Wrap(err)
	}
	return nil
}

// ListExpenses retrieves a user's expenses, ordered by date descending.
func (db *DB) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, amount, category, date, description, created_at, updated_at
		 FROM expenses WHERE user_id = ? ORDER BY date DESC`,
		userID,
	)
	if err != nil {
		return nil, oops.Code("EXPENSE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, oops.Code("EXPENSE_LIST_FAILED").With("user_id", userID).Wrap(err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// GetExpense retrieves a single expense owned by userID.
func (db *DB) GetExpense(ctx context.Context, id, userID string) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, date, description, created_at, updated_at
		 FROM expenses WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("EXPENSE_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("EXPENSE_GET_FAILED").With("id", id).Wrap(err)
	}
	return e, nil
}

// UpdateExpense updates an expense owned by e.UserID.
// On success e is refreshed with the stored row.
func (db *DB) UpdateExpense(ctx context.Context, e *models.Expense) error {
	if err := requireExpenseFields(e); err != nil {
		return oops.Code("EXPENSE_INVALID").Wrap(err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, date = ?, description = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		e.Amount, string(e.Category), e.Date.UTC(), e.Description, db.now().UTC(), e.ID, e.UserID,
	)
	if err != nil {
		return oops.Code("EXPENSE_UPDATE_FAILED").With("id", e.ID).Wrap(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return oops.Code("EXPENSE_NOT_FOUND").With("id", e.ID).Wrap(ErrNotFound)
	}

	stored, err := db.GetExpense(ctx, e.ID, e.UserID)
	if err != nil {
		return err
	}
	*e = *stored
	return nil
}

// DeleteExpense removes an expense owned by userID.
func (db *DB) DeleteExpense(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return oops.Code("EXPENSE_DELETE_FAILED").With("id", id).Wrap(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return oops.Code("EXPENSE_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// CategoryTotalsByMonth sums a user's expenses per category for one month.
func (db *DB) CategoryTotalsByMonth(ctx context.Context, userID string, year, month int) ([]models.CategoryTotal, error) {
	start, end := monthRange(year, month)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT category, SUM(amount), COUNT(*) FROM expenses
		 WHERE user_id = ? AND date >= ? AND date < ?
		 GROUP BY category ORDER BY SUM(amount) DESC`,
		userID, start, end,
	)
	if err != nil {
		return nil, oops.Code("EXPENSE_TOTALS_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	totals := []models.CategoryTotal{}
	for rows.Next() {
		var t models.CategoryTotal
		var category string
		if err := rows.Scan(&category, &t.Total, &t.Count); err != nil {
			return nil, oops.Code("EXPENSE_TOTALS_FAILED").With("user_id", userID).Wrap(err)
		}
		t.Category = models.Category(category)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredentials(row rowScanner) (*models.Credentials, error) {
	var c models.Credentials
	if err := row.Scan(&c.User.ID, &c.User.Name, &c.User.Email, &c.PasswordHash, &c.User.CreatedAt, &c.User.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var e models.Expense
	var category string
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &category, &e.Date, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Category = models.Category(category)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
