package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/events"
	"github.com/spec-kit/raffle-service/internal/lifecycle"
	"github.com/spec-kit/raffle-service/internal/repository"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

// DecisionServiceDependencies wires the collaborators a DecisionService needs.
type DecisionServiceDependencies struct {
	UnitOfWork    repository.UnitOfWork
	Lifecycle     *LifecycleService
	Clock         clock.Clock
	Logger        *zap.Logger
	WriteAttempts int
}

// DecisionService covers the seller-driven resolutions: confirming or
// cancelling during the grace window, and ending or extending a raffle whose
// deadline passed below goal.
type DecisionService struct {
	deps DecisionServiceDependencies
}

func NewDecisionService(deps DecisionServiceDependencies) *DecisionService {
	return &DecisionService{deps: deps}
}

// Confirm accepts the met goal: a winner is drawn immediately and the raffle
// ends.
func (d *DecisionService) Confirm(ctx context.Context, sellerID, raffleID string) (*domain.Raffle, error) {
	return d.resolve(ctx, sellerID, raffleID, func(raffle *domain.Raffle, now time.Time) error {
		if raffle.Status.Normalize() != domain.RaffleStatusGoalMetGracePeriod {
			return apperrors.NewInvalidState("raffle is not awaiting a seller decision", map[string]any{
				"raffle_id": raffleID,
				"status":    string(raffle.Status),
			})
		}
		if raffle.SellerConfirmed != nil && *raffle.SellerConfirmed {
			return apperrors.NewInvalidState("raffle is already confirmed", map[string]any{
				"raffle_id": raffleID,
			})
		}
		if raffle.ConfirmationDeadline != nil && !now.Before(*raffle.ConfirmationDeadline) {
			return apperrors.NewInvalidState("decision window has closed", map[string]any{
				"raffle_id": raffleID,
				"deadline":  *raffle.ConfirmationDeadline,
			})
		}
		if _, err := d.deps.Lifecycle.DrawWinner(raffle); err != nil {
			return err
		}
		confirmed := true
		raffle.SellerConfirmed = &confirmed
		return nil
	})
}

// Cancel rejects the met goal while the grace window is still open. Every
// participant is refunded in the same transaction.
func (d *DecisionService) Cancel(ctx context.Context, sellerID, raffleID string) (*domain.Raffle, error) {
	return d.resolve(ctx, sellerID, raffleID, func(raffle *domain.Raffle, now time.Time) error {
		if raffle.Status.Normalize() != domain.RaffleStatusGoalMetGracePeriod {
			return apperrors.NewInvalidState("raffle is not awaiting a seller decision", map[string]any{
				"raffle_id": raffleID,
				"status":    string(raffle.Status),
			})
		}
		if raffle.ConfirmationDeadline != nil && !now.Before(*raffle.ConfirmationDeadline) {
			return apperrors.NewInvalidState("decision window has closed", map[string]any{
				"raffle_id": raffleID,
				"deadline":  *raffle.ConfirmationDeadline,
			})
		}
		rejected := false
		raffle.SellerConfirmed = &rejected
		return nil
	})
}

// resolve runs a grace-window decision under the row lock and lets the engine
// evaluation carry the raffle into its terminal state.
func (d *DecisionService) resolve(ctx context.Context, sellerID, raffleID string, mutate func(*domain.Raffle, time.Time) error) (*domain.Raffle, error) {
	now := d.deps.Clock.Now()
	var updated *domain.Raffle
	var pending []events.Event

	err := withWriteRetry(ctx, d.deps.WriteAttempts, func(ctx context.Context) error {
		updated = nil
		pending = nil
		return d.deps.UnitOfWork.Do(ctx, func(ctx context.Context, s repository.Stores) error {
			raffle, err := d.loadOwned(ctx, s, sellerID, raffleID)
			if err != nil {
				return err
			}
			if err := mutate(raffle, now); err != nil {
				return err
			}
			res, err := d.deps.Lifecycle.Advance(ctx, s, raffle, now, domain.HistoryActorSeller, &sellerID, true)
			if err != nil {
				return err
			}
			updated = raffle
			pending = res.Events
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	d.deps.Lifecycle.PublishAll(ctx, pending)
	d.deps.Logger.Info("seller decision applied",
		zap.String("raffle_id", raffleID),
		zap.String("seller_id", sellerID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// EndNotMet closes a raffle whose deadline passed below goal, refunding every
// participant.
func (d *DecisionService) EndNotMet(ctx context.Context, sellerID, raffleID string) (*domain.Raffle, error) {
	now := d.deps.Clock.Now()
	var updated *domain.Raffle
	var pending []events.Event

	err := withWriteRetry(ctx, d.deps.WriteAttempts, func(ctx context.Context) error {
		updated = nil
		pending = nil
		return d.deps.UnitOfWork.Do(ctx, func(ctx context.Context, s repository.Stores) error {
			raffle, err := d.loadOwned(ctx, s, sellerID, raffleID)
			if err != nil {
				return err
			}
			if !lifecycle.CanTransition(raffle.Status, domain.RaffleStatusNotMet) {
				return apperrors.NewInvalidState("raffle cannot be ended from its current status", map[string]any{
					"raffle_id": raffleID,
					"status":    string(raffle.Status),
				})
			}

			refundedUnits, refundedBuyers, err := d.deps.Lifecycle.refundAll(ctx, s, raffle)
			if err != nil {
				return err
			}

			from := raffle.Status
			raffle.Status = domain.RaffleStatusNotMet
			if err := s.Raffles.Update(ctx, raffle); err != nil {
				return err
			}
			if err := s.History.Append(ctx, &domain.RaffleHistory{
				RaffleID:  raffle.ID,
				ActorType: domain.HistoryActorSeller,
				ActorID:   &sellerID,
				OldStatus: from,
				NewStatus: raffle.Status,
			}); err != nil {
				return err
			}

			updated = raffle
			pending = append(pending, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventRaffleNotMet,
				RaffleID:  raffle.ID,
				Timestamp: now,
				Payload: events.RaffleNotMetPayload{
					SellerID:      raffle.SellerID,
					RefundedUnits: refundedUnits,
				},
			})
			d.deps.Logger.Info("raffle ended below goal",
				zap.String("raffle_id", raffleID),
				zap.Int64("refunded_units", refundedUnits),
				zap.Int("refunded_buyers", refundedBuyers))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	d.deps.Lifecycle.PublishAll(ctx, pending)
	return updated, nil
}

// Extend moves the deadline of a below-goal raffle into the future and
// reopens it for entries. Accumulated entries are kept.
func (d *DecisionService) Extend(ctx context.Context, sellerID, raffleID string, newEndDate time.Time) (*domain.Raffle, error) {
	now := d.deps.Clock.Now()
	if !newEndDate.After(now) {
		return nil, apperrors.NewValidationError("new end date must be in the future", map[string]any{
			"end_date": newEndDate,
		})
	}

	var updated *domain.Raffle
	var pending []events.Event

	err := withWriteRetry(ctx, d.deps.WriteAttempts, func(ctx context.Context) error {
		updated = nil
		pending = nil
		return d.deps.UnitOfWork.Do(ctx, func(ctx context.Context, s repository.Stores) error {
			raffle, err := d.loadOwned(ctx, s, sellerID, raffleID)
			if err != nil {
				return err
			}
			if !lifecycle.CanTransition(raffle.Status, domain.RaffleStatusLive) {
				return apperrors.NewInvalidState("raffle cannot be extended from its current status", map[string]any{
					"raffle_id": raffleID,
					"status":    string(raffle.Status),
				})
			}

			from := raffle.Status
			raffle.EndDate = newEndDate.UTC()
			raffle.Status = domain.RaffleStatusLive
			if err := s.Raffles.Update(ctx, raffle); err != nil {
				return err
			}
			if err := s.History.Append(ctx, &domain.RaffleHistory{
				RaffleID:  raffle.ID,
				ActorType: domain.HistoryActorSeller,
				ActorID:   &sellerID,
				OldStatus: from,
				NewStatus: raffle.Status,
			}); err != nil {
				return err
			}

			updated = raffle
			pending = append(pending, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventRaffleExtended,
				RaffleID:  raffle.ID,
				Timestamp: now,
				Payload: events.RaffleExtendedPayload{
					SellerID:   raffle.SellerID,
					NewEndDate: raffle.EndDate,
				},
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	d.deps.Lifecycle.PublishAll(ctx, pending)
	d.deps.Logger.Info("raffle extended",
		zap.String("raffle_id", raffleID),
		zap.Time("new_end_date", updated.EndDate))
	return updated, nil
}

func (d *DecisionService) loadOwned(ctx context.Context, s repository.Stores, sellerID, raffleID string) (*domain.Raffle, error) {
	raffle, err := s.Raffles.GetByIDForUpdate(ctx, raffleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("raffle", map[string]any{"raffle_id": raffleID})
		}
		return nil, err
	}
	if raffle.SellerID != sellerID {
		return nil, apperrors.NewForbidden("only the seller can resolve this raffle")
	}
	return raffle, nil
}
