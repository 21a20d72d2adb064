package database

import (
	"context"
	"database/sql"
	"fmt"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	// MaxRetries reruns fn when the transaction fails with a deadlock or
	// serialization error. Zero disables retries.
	MaxRetries int
}

func DefaultTxOptions() TxOptions {
	return TxOptions{IsolationLevel: sql.LevelReadCommitted}
}

// WithTransaction runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back on error or panic.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		err = runTransaction(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func runTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
