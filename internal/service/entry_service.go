package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/events"
	"github.com/spec-kit/raffle-service/internal/repository"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

// EntryServiceDependencies wires the collaborators an EntryService needs.
type EntryServiceDependencies struct {
	UnitOfWork    repository.UnitOfWork
	Lifecycle     *LifecycleService
	Clock         clock.Clock
	Logger        *zap.Logger
	WriteAttempts int
}

// EntryService handles ticket purchases. A purchase debits the buyer, credits
// the seller while the goal is still open, accumulates the buyer's spend on
// the raffle and re-evaluates the lifecycle in the same transaction.
type EntryService struct {
	deps EntryServiceDependencies
}

func NewEntryService(deps EntryServiceDependencies) *EntryService {
	return &EntryService{deps: deps}
}

// EntryResult is what a completed purchase returns to the caller.
type EntryResult struct {
	Raffle       *domain.Raffle
	TotalCost    int64
	BuyerBalance int64
}

// Enter buys quantity tickets on a raffle for buyerID.
func (e *EntryService) Enter(ctx context.Context, buyerID, raffleID string, quantity int64) (*EntryResult, error) {
	if quantity < 1 {
		return nil, apperrors.NewValidationError("quantity must be at least 1", map[string]any{
			"quantity": quantity,
		})
	}

	now := e.deps.Clock.Now()
	var result *EntryResult
	var pending []events.Event

	err := withWriteRetry(ctx, e.deps.WriteAttempts, func(ctx context.Context) error {
		result = nil
		pending = nil
		return e.deps.UnitOfWork.Do(ctx, func(ctx context.Context, s repository.Stores) error {
			raffle, err := s.Raffles.GetByIDForUpdate(ctx, raffleID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("raffle", map[string]any{"raffle_id": raffleID})
				}
				return err
			}
			if !raffle.Status.AcceptsEntries() {
				return apperrors.NewInvalidState("raffle is not accepting entries", map[string]any{
					"raffle_id": raffleID,
					"status":    string(raffle.Status),
				})
			}
			if now.After(raffle.EndDate) || now.Equal(raffle.EndDate) {
				return apperrors.NewInvalidState("raffle entry window has closed", map[string]any{
					"raffle_id": raffleID,
					"end_date":  raffle.EndDate,
				})
			}

			totalCost := quantity * raffle.TicketCost
			preGoal := raffle.TicketsSold < raffle.TicketGoal

			balance, err := s.Users.Debit(ctx, buyerID, totalCost)
			if err != nil {
				if errors.Is(err, repository.ErrInsufficientFunds) {
					return apperrors.NewInsufficientFunds(totalCost, balance)
				}
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("user", map[string]any{"user_id": buyerID})
				}
				return err
			}

			// Pre-goal revenue belongs to the seller in full; once the goal is
			// met further sales sit on the raffle until the overflow split.
			if preGoal {
				if err := s.Users.Credit(ctx, raffle.SellerID, totalCost, totalCost); err != nil {
					return err
				}
			}

			raffle.AddSpend(buyerID, totalCost, now)

			res, err := e.deps.Lifecycle.Advance(ctx, s, raffle, now, domain.HistoryActorBuyer, &buyerID, true)
			if err != nil {
				return err
			}

			result = &EntryResult{
				Raffle:       raffle,
				TotalCost:    totalCost,
				BuyerBalance: balance,
			}
			pending = append(pending, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventEntryPlaced,
				RaffleID:  raffle.ID,
				Timestamp: now,
				Payload: events.EntryPlacedPayload{
					BuyerID:     buyerID,
					Quantity:    quantity,
					TotalCost:   totalCost,
					TicketsSold: raffle.TicketsSold,
				},
			})
			pending = append(pending, res.Events...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.deps.Lifecycle.PublishAll(ctx, pending)
	e.deps.Logger.Info("entry placed",
		zap.String("raffle_id", raffleID),
		zap.String("buyer_id", buyerID),
		zap.Int64("quantity", quantity),
		zap.Int64("total_cost", result.TotalCost),
		zap.String("status", string(result.Raffle.Status)))
	return result, nil
}
