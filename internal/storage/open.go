package storage

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// IsPostgres reports whether a connection string selects the PostgreSQL backend.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open returns the Store selected by dsn. PostgreSQL URLs are migrated before
// the pool is opened; anything else is treated as a SQLite path, with an
// optional "sqlite://" prefix.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsPostgres(dsn) {
		m, err := NewMigrator(dsn)
		if err != nil {
			return nil, err
		}
		if err := m.Up(); err != nil {
			_ = m.Close()
			return nil, err
		}
		if err := m.Close(); err != nil {
			return nil, err
		}
		return NewPostgresDB(ctx, dsn)
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("empty database path")
	}
	db, err := NewDB(path)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("path", path).Wrap(err)
	}
	return db, nil
}
