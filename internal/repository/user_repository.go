package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// UserRepository is the ticket ledger: every balance mutation is a single
// atomic multi-field UPDATE per user.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Debit removes ticket-units from a buyer, adding them to the lifetime
	// spend counter. Fails with ErrInsufficientFunds (returning the current
	// balance) when the balance cannot cover the amount; no partial debit.
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	// Credit adds ticket-units to a balance; revenueDelta is added to the
	// cumulative revenue counter in the same statement.
	Credit(ctx context.Context, userID string, amount, revenueDelta int64) error
	// Refund returns previously spent ticket-units, reversing the spend
	// counter as well.
	Refund(ctx context.Context, userID string, amount int64) error
}

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, ticket_balance)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.TicketBalance,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

const userColumns = `id, name, email, password_hash, role, ticket_balance, total_spent,
       total_revenue, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.TicketBalance,
		&user.TotalSpent,
		&user.TotalRevenue,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	const query = `
        UPDATE users
        SET ticket_balance = ticket_balance - $2, total_spent = total_spent + $2, updated_at = NOW()
        WHERE id = $1 AND ticket_balance >= $2
        RETURNING ticket_balance`
	var balance int64
	err := r.db.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	// Either the user is missing or the balance was too low.
	var available int64
	if err := r.db.QueryRow(ctx, `SELECT ticket_balance FROM users WHERE id=$1`, userID).Scan(&available); err != nil {
		return 0, err
	}
	return available, ErrInsufficientFunds
}

func (r *userRepository) Credit(ctx context.Context, userID string, amount, revenueDelta int64) error {
	const query = `
        UPDATE users
        SET ticket_balance = ticket_balance + $2, total_revenue = total_revenue + $3, updated_at = NOW()
        WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, userID, amount, revenueDelta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) Refund(ctx context.Context, userID string, amount int64) error {
	const query = `
        UPDATE users
        SET ticket_balance = ticket_balance + $2, total_spent = total_spent - $2, updated_at = NOW()
        WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, userID, amount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
