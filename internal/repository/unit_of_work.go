package repository

import (
	"context"
	"database/sql"
	"errors"

	"catalog-mirror/internal/domain"
)

// UnitOfWork runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back on any error
// or panic.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Repositories) error) error
}

type txManager struct {
	db *sql.DB
}

// NewUnitOfWork creates a UnitOfWork over db. Transactions run at
// REPEATABLE READ so a bulk edit updates exactly the rows it read.
func NewUnitOfWork(db *sql.DB) UnitOfWork {
	return &txManager{db: db}
}

func (m *txManager) Do(ctx context.Context, fn func(Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return domain.NewStoreWriteError("begin", "transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, domain.NewStoreWriteError("rollback", "transaction", rbErr))
			}
		}
	}()

	if err = fn(NewRepositories(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return domain.NewStoreWriteError("commit", "transaction", err)
	}

	return nil
}
