package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced by repositories; services translate them into the
// DomainError taxonomy.
var (
	// ErrVersionConflict reports a lost optimistic-concurrency race: the raffle
	// row changed between read and write.
	ErrVersionConflict = errors.New("raffle modified concurrently")
	// ErrInsufficientFunds reports a conditional debit that found too little
	// balance.
	ErrInsufficientFunds = errors.New("insufficient ticket balance")
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx, letting the same
// repository code run pooled or inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
