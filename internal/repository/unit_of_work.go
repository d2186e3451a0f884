package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores bundles the repositories bound to one transaction.
type Stores struct {
	Raffles RaffleRepository
	Users   UserRepository
	History HistoryRepository
}

// UnitOfWork runs a function with transaction-scoped stores. Everything inside
// fn commits or rolls back together, which is what makes the refund sweeps and
// entry purchases all-or-nothing.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type pgxUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a pgx-transaction-backed unit of work.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgxUnitOfWork{pool: pool}
}

func (u *pgxUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stores := Stores{
		Raffles: NewRaffleRepository(tx),
		Users:   NewUserRepository(tx),
		History: NewHistoryRepository(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
