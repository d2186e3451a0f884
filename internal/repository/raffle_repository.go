package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// RaffleRepository encapsulates raffle persistence. Mutations go through
// Update, which enforces the per-record version check.
type RaffleRepository interface {
	Create(ctx context.Context, raffle *domain.Raffle) error
	Update(ctx context.Context, raffle *domain.Raffle) error
	GetByID(ctx context.Context, id string) (*domain.Raffle, error)
	// GetByIDForUpdate locks the raffle row for the duration of the enclosing
	// transaction, serializing concurrent entry/decision/sweep writers.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Raffle, error)
	List(ctx context.Context, limit, offset int) ([]domain.Raffle, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Raffle, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Raffle, error)
	ListRandom(ctx context.Context, size int) ([]domain.Raffle, error)
	// ListNeedingEvaluation returns ids of every non-terminal raffle; the
	// sweeper re-loads each one under its own row lock.
	ListNeedingEvaluation(ctx context.Context) ([]string, error)
	TicketsSoldBySeller(ctx context.Context, sellerID string) (int64, error)
}

type raffleRepository struct {
	db DB
}

// NewRaffleRepository instantiates repository.
func NewRaffleRepository(db DB) RaffleRepository {
	return &raffleRepository{db: db}
}

const raffleColumns = `id, seller_id, title, description, condition, categories, images,
       ticket_cost, ticket_goal, tickets_sold, status, winner_id, goal_met_at,
       confirmation_deadline, seller_confirmed, end_date, charity_overflow,
       overflow_settled_at, version, created_at, updated_at`

func (r *raffleRepository) Create(ctx context.Context, raffle *domain.Raffle) error {
	const query = `
        INSERT INTO raffles (seller_id, title, description, condition, categories, images,
            ticket_cost, ticket_goal, tickets_sold, status, end_date, charity_overflow)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, version, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		raffle.SellerID,
		raffle.Title,
		raffle.Description,
		raffle.Condition,
		raffle.Categories,
		raffle.Images,
		raffle.TicketCost,
		raffle.TicketGoal,
		raffle.TicketsSold,
		raffle.Status,
		raffle.EndDate,
		raffle.CharityOverflow,
	).Scan(&raffle.ID, &raffle.Version, &raffle.CreatedAt, &raffle.UpdatedAt)
}

// Update persists the raffle row and its participants. The write is
// conditioned on the version read earlier; zero rows affected means another
// writer got there first and the caller must retry its read-evaluate-write
// cycle.
func (r *raffleRepository) Update(ctx context.Context, raffle *domain.Raffle) error {
	const query = `
        UPDATE raffles SET title=$1, description=$2, condition=$3, categories=$4, images=$5,
            ticket_cost=$6, ticket_goal=$7, tickets_sold=$8, status=$9, winner_id=$10,
            goal_met_at=$11, confirmation_deadline=$12, seller_confirmed=$13, end_date=$14,
            charity_overflow=$15, overflow_settled_at=$16, version=version+1, updated_at=NOW()
        WHERE id=$17 AND version=$18`
	cmd, err := r.db.Exec(ctx, query,
		raffle.Title,
		raffle.Description,
		raffle.Condition,
		raffle.Categories,
		raffle.Images,
		raffle.TicketCost,
		raffle.TicketGoal,
		raffle.TicketsSold,
		raffle.Status,
		raffle.WinnerID,
		raffle.GoalMetAt,
		raffle.ConfirmationDeadline,
		raffle.SellerConfirmed,
		raffle.EndDate,
		raffle.CharityOverflow,
		raffle.OverflowSettledAt,
		raffle.ID,
		raffle.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	raffle.Version++

	return r.saveParticipants(ctx, raffle)
}

func (r *raffleRepository) saveParticipants(ctx context.Context, raffle *domain.Raffle) error {
	const upsert = `
        INSERT INTO raffle_participants (raffle_id, user_id, tickets_spent, joined_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (raffle_id, user_id)
        DO UPDATE SET tickets_spent=EXCLUDED.tickets_spent`
	for i := range raffle.Participants {
		p := &raffle.Participants[i]
		if _, err := r.db.Exec(ctx, upsert, raffle.ID, p.UserID, p.TicketsSpent, p.JoinedAt); err != nil {
			return fmt.Errorf("save participant %s: %w", p.UserID, err)
		}
	}
	return nil
}

func (r *raffleRepository) GetByID(ctx context.Context, id string) (*domain.Raffle, error) {
	query := fmt.Sprintf(`SELECT %s FROM raffles WHERE id=$1`, raffleColumns)
	return r.fetchWithParticipants(ctx, query, id)
}

func (r *raffleRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Raffle, error) {
	query := fmt.Sprintf(`SELECT %s FROM raffles WHERE id=$1 FOR UPDATE`, raffleColumns)
	return r.fetchWithParticipants(ctx, query, id)
}

func (r *raffleRepository) fetchWithParticipants(ctx context.Context, query, id string) (*domain.Raffle, error) {
	raffle, err := scanRaffle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	participants, err := r.loadParticipants(ctx, raffle.ID)
	if err != nil {
		return nil, err
	}
	raffle.Participants = participants
	return raffle, nil
}

func (r *raffleRepository) loadParticipants(ctx context.Context, raffleID string) ([]domain.Participant, error) {
	const query = `
        SELECT user_id, tickets_spent, joined_at
        FROM raffle_participants WHERE raffle_id=$1
        ORDER BY joined_at, user_id`
	rows, err := r.db.Query(ctx, query, raffleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.TicketsSpent, &p.JoinedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *raffleRepository) List(ctx context.Context, limit, offset int) ([]domain.Raffle, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM raffles ORDER BY created_at DESC LIMIT $1 OFFSET $2`, raffleColumns)
	return r.queryRaffles(ctx, query, limit, offset)
}

func (r *raffleRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Raffle, error) {
	query := fmt.Sprintf(`SELECT %s FROM raffles WHERE seller_id=$1 ORDER BY created_at DESC`, raffleColumns)
	return r.queryRaffles(ctx, query, sellerID)
}

func (r *raffleRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Raffle, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM raffles
        WHERE id IN (SELECT raffle_id FROM raffle_participants WHERE user_id=$1)
        ORDER BY created_at DESC`, raffleColumns)
	return r.queryRaffles(ctx, query, buyerID)
}

func (r *raffleRepository) ListRandom(ctx context.Context, size int) ([]domain.Raffle, error) {
	if size <= 0 {
		size = 1
	}
	query := fmt.Sprintf(`SELECT %s FROM raffles WHERE status=$1 ORDER BY random() LIMIT $2`, raffleColumns)
	return r.queryRaffles(ctx, query, domain.RaffleStatusLive, size)
}

func (r *raffleRepository) ListNeedingEvaluation(ctx context.Context) ([]string, error) {
	const query = `
        SELECT id FROM raffles
        WHERE status NOT IN ($1, $2, $3)
        ORDER BY end_date`
	rows, err := r.db.Query(ctx, query,
		domain.RaffleStatusEnded, domain.RaffleStatusNotMet, domain.RaffleStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *raffleRepository) TicketsSoldBySeller(ctx context.Context, sellerID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(tickets_sold), 0) FROM raffles WHERE seller_id=$1`
	var total int64
	err := r.db.QueryRow(ctx, query, sellerID).Scan(&total)
	return total, err
}

func (r *raffleRepository) queryRaffles(ctx context.Context, query string, args ...any) ([]domain.Raffle, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Raffle
	for rows.Next() {
		raffle, err := scanRaffle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *raffle)
	}
	return result, rows.Err()
}

func scanRaffle(row pgx.Row) (*domain.Raffle, error) {
	var raffle domain.Raffle
	if err := row.Scan(
		&raffle.ID,
		&raffle.SellerID,
		&raffle.Title,
		&raffle.Description,
		&raffle.Condition,
		&raffle.Categories,
		&raffle.Images,
		&raffle.TicketCost,
		&raffle.TicketGoal,
		&raffle.TicketsSold,
		&raffle.Status,
		&raffle.WinnerID,
		&raffle.GoalMetAt,
		&raffle.ConfirmationDeadline,
		&raffle.SellerConfirmed,
		&raffle.EndDate,
		&raffle.CharityOverflow,
		&raffle.OverflowSettledAt,
		&raffle.Version,
		&raffle.CreatedAt,
		&raffle.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &raffle, nil
}
