// Package storage is the Postgres store. Named locks are transaction-scoped advisory locks.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/bookwell/libs/db"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	queries
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

func (s *Store) within(ctx context.Context, fn func(t *txQueries) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&txQueries{queries: queries{q: tx}, tx: tx})
	})
}

func (s *Store) WithinCommit(ctx context.Context, fn func(tx engine.CommitTx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

func (s *Store) WithinAdmin(ctx context.Context, fn func(tx admin.Tx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

func (s *Store) WithinCustomers(ctx context.Context, fn func(tx customers.Tx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error, format string, args ...any) error {
	if IsNotFound(err) {
		return model.NotFoundf(format, args...)
	}
	return err
}
