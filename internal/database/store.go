package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"hrsync/internal/database/migrations"
	"hrsync/internal/hrsync"
)

// SQLDatabase implements hrsync.Database over SQLite or PostgreSQL.
type SQLDatabase struct {
	db      *sqlx.DB
	dialect string
	clock   hrsync.Clock
}

var _ hrsync.Database = (*SQLDatabase)(nil)

// NewSQLDatabaseFromDB wraps an existing connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLDatabaseFromDB(db *sqlx.DB, dialect string, clock hrsync.Clock) *SQLDatabase {
	if clock == nil {
		clock = hrsync.RealClock{}
	}
	return &SQLDatabase{db: db, dialect: dialect, clock: clock}
}

// Dialect returns "sqlite" or "postgres".
func (s *SQLDatabase) Dialect() string { return s.dialect }

// Migrate brings the schema to the latest version.
func (s *SQLDatabase) Migrate() error {
	return migrations.MigrateUp(s.db.DB, s.dialect)
}

// CheckMigrations reports whether the schema is at the latest version.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB, s.dialect)
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLDatabase) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
