package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"pennytrail/internal/models"
)

// poolIface is the subset of pgxpool.Pool used by PostgresDB.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresDB is the PostgreSQL implementation of Store.
type PostgresDB struct {
	pool poolIface
	now  func() time.Time
}

// NewPostgresDB connects to PostgreSQL. Run Migrator.Up before first use.
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return newPostgresDB(pool), nil
}

func newPostgresDB(pool poolIface) *PostgresDB {
	return &PostgresDB{pool: pool, now: time.Now}
}

// Ping verifies the database is reachable.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

// CreateUser creates a new user. The email must not already be registered.
func (p *PostgresDB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	if err := requireUserFields(name, email, passwordHash); err != nil {
		return nil, oops.Code("USER_INVALID").Wrap(err)
	}

	now := p.now().UTC()
	u := &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, passwordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", email).
			Wrap(err)
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (p *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	c, err := p.GetCredentialsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.User, nil
}

// GetUserByEmail retrieves a user by email (case-insensitive).
func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	c, err := p.GetCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &c.User, nil
}

// GetCredentialsByID retrieves a user and the stored password hash by ID.
func (p *PostgresDB) GetCredentialsByID(ctx context.Context, id string) (*models.Credentials, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)

	c, err := scanCredentials(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return c, nil
}

// GetCredentialsByEmail retrieves a user and the stored password hash by email.
func (p *PostgresDB) GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	c, err := scanCredentials(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return c, nil
}

// UpdateProfile changes a user's name and email.
func (p *PostgresDB) UpdateProfile(ctx context.Context, id, name, email string) (*models.User, error) {
	if name == "" || email == "" {
		return nil, oops.Code("USER_INVALID").With("id", id).Wrap(ErrInvalidInput)
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, email = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, name, email, password_hash, created_at, updated_at
	`, id, name, email, p.now().UTC())

	c, err := scanCredentials(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, oops.Code("USER_DUPLICATE_EMAIL").With("email", email).Wrap(ErrDuplicateEmail)
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update profile").
			With("id", id).
			Wrap(err)
	}
	return &c.User, nil
}

// UpdatePasswordHash replaces a user's stored password hash.
func (p *PostgresDB) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return oops.Code("USER_INVALID").With("id", id).Wrap(ErrInvalidInput)
	}

	result, err := p.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, p.now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// UserCount returns the number of users.
func (p *PostgresDB) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return count, nil
}

// CreateExpense inserts a new expense. ID and timestamps are assigned here.
func (p *PostgresDB) CreateExpense(ctx context.Context, e *models.Expense) error {
	if err := requireExpenseFields(e); err != nil {
		return oops.Code("EXPENSE_INVALID").Wrap(err)
	}

	now := p.now().UTC()
	e.ID = uuid.NewString()
	e.Date = e.Date.UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := p.pool.Exec(ctx, `
		INSERT INTO expenses (id, user_id, amount, category, date, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.UserID, e.Amount, string(e.Category), e.Date, e.Description, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return oops.Code("EXPENSE_CREATE_FAILED").
			With("operation", "insert expense").
			With("user_id", e.UserID).
			Wrap(err)
	}
	return nil
}

// ListExpenses retrieves a user's expenses, ordered by date descending.
func (p *PostgresDB) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, amount, category, date, description, created_at, updated_at
		FROM expenses
		WHERE user_id = $1
		ORDER BY date DESC
	`, userID)
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
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EXPENSE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return expenses, nil
}

// GetExpense retrieves a single expense owned by userID.
func (p *PostgresDB) GetExpense(ctx context.Context, id, userID string) (*models.Expense, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, user_id, amount, category, date, description, created_at, updated_at
		FROM expenses
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("EXPENSE_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("EXPENSE_GET_FAILED").With("id", id).Wrap(err)
	}
	return e, nil
}

// UpdateExpense updates an expense owned by e.UserID.
// On success e is refreshed with the stored row.
func (p *PostgresDB) UpdateExpense(ctx context.Context, e *models.Expense) error {
	if err := requireExpenseFields(e); err != nil {
		return oops.Code("EXPENSE_INVALID").Wrap(err)
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE expenses SET amount = $3, category = $4, date = $5, description = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, amount, category, date, description, created_at, updated_at
	`, e.ID, e.UserID, e.Amount, string(e.Category), e.Date.UTC(), e.Description, p.now().UTC())

	stored, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("EXPENSE_NOT_FOUND").With("id", e.ID).Wrap(ErrNotFound)
	}
	if err != nil {
		return oops.Code("EXPENSE_UPDATE_FAILED").With("id", e.ID).Wrap(err)
	}
	*e = *stored
	return nil
}

// DeleteExpense removes an expense owned by userID.
func (p *PostgresDB) DeleteExpense(ctx context.Context, id, userID string) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return oops.Code("EXPENSE_DELETE_FAILED").With("id", id).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("EXPENSE_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

// CategoryTotalsByMonth sums a user's expenses per category for one month.
func (p *PostgresDB) CategoryTotalsByMonth(ctx context.Context, userID string, year, month int) ([]models.CategoryTotal, error) {
	start, end := monthRange(year, month)
	rows, err := p.pool.Query(ctx, `
		SELECT category, SUM(amount)::float8, COUNT(*)::int
		FROM expenses
		WHERE user_id = $1 AND date >= $2 AND date < $3
		GROUP BY category
		ORDER BY SUM(amount) DESC
	`, userID, start, end)
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
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EXPENSE_TOTALS_FAILED").With("user_id", userID).Wrap(err)
	}
	return totals, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
