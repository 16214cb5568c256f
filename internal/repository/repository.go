package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalog-mirror/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// standalone or inside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repositories groups the catalog store and the change ledger bound to one
// connection or transaction.
type Repositories struct {
	Products   ProductRepository
	Categories CategoryRepository
	Ledger     LedgerRepository
}

// NewRepositories binds all repositories to db
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Products:   NewProductRepository(db),
		Categories: NewCategoryRepository(db),
		Ledger:     NewLedgerRepository(db),
	}
}

// writeError turns a driver failure into a StoreWriteError, keeping the
// violated constraint and SQLSTATE when Postgres reports one.
func writeError(op, entity string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail := pgErr.ConstraintName
		if detail == "" {
			detail = pgErr.ColumnName
		}
		if detail == "" {
			return domain.NewStoreWriteError(op, entity,
				fmt.Errorf("%s (SQLSTATE %s): %w", pgErr.Message, pgErr.Code, err))
		}
		return domain.NewStoreWriteError(op, entity,
			fmt.Errorf("%s violated %q (SQLSTATE %s): %w", pgErr.Message, detail, pgErr.Code, err))
	}
	return domain.NewStoreWriteError(op, entity, err)
}

// readError keeps a failed read an internal error unless Postgres rolled the
// transaction back (SQLSTATE class 40), which a locking read hits when a
// concurrent writer commits first.
func readError(entity string, err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "40") {
		return writeError("lock", entity, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
