package repository

import (
	"context"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// HistoryRepository stores the immutable status-transition audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.RaffleHistory) error
	ListByRaffle(ctx context.Context, raffleID string, limit, offset int) ([]domain.RaffleHistory, error)
}

type historyRepository struct {
	db DB
}

// NewHistoryRepository instantiates repository.
func NewHistoryRepository(db DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *domain.RaffleHistory) error {
	const query = `
        INSERT INTO raffle_history (raffle_id, actor_type, actor_id, old_status, new_status, comment)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.RaffleID,
		entry.ActorType,
		entry.ActorID,
		entry.OldStatus,
		entry.NewStatus,
		entry.Comment,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByRaffle(ctx context.Context, raffleID string, limit, offset int) ([]domain.RaffleHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, raffle_id, actor_type, actor_id, old_status, new_status, comment, created_at
        FROM raffle_history WHERE raffle_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, raffleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RaffleHistory
	for rows.Next() {
		var entry domain.RaffleHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.RaffleID,
			&entry.ActorType,
			&entry.ActorID,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.Comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
