package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs units of work that are serialized per scope key. Every
// write made through a repository bound to the ctx passed to fn commits or
// rolls back together.
//
// Calling WithinScope with a ctx that already carries a unit of work joins it
// and takes the additional scope lock; the lock is held until the outermost
// unit of work finishes.
type Transactor interface {
	WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error
}

// Queryable is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

// TxFromContext returns the transaction bound to ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Conn returns the transaction bound to ctx when there is one, else the pool.
// Repositories call it on every statement so they take part in WithinScope.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// TxManager implements Transactor on Postgres. Scope serialization uses
// transaction-level advisory locks, so a crashed client never leaves a scope
// locked.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithinScope(ctx context.Context, scope string, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		if err := lockScope(ctx, tx, scope); err != nil {
			return err
		}
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockScope(ctx, tx, scope); err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func lockScope(ctx context.Context, tx pgx.Tx, scope string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, scope); err != nil {
		return fmt.Errorf("lock scope %s: %w", scope, err)
	}
	return nil
}
