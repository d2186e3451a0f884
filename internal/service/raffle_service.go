package service

import (
	"context"
	"errors"
	"strings"
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

// RaffleServiceDependencies wires the collaborators a RaffleService needs.
type RaffleServiceDependencies struct {
	Raffles    repository.RaffleRepository
	History    repository.HistoryRepository
	Engine     *lifecycle.Engine
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// RaffleService covers listing creation and the read surface.
type RaffleService struct {
	deps RaffleServiceDependencies
}

func NewRaffleService(deps RaffleServiceDependencies) *RaffleService {
	return &RaffleService{deps: deps}
}

// CreateRaffleInput is the shape of a new listing before validation.
type CreateRaffleInput struct {
	SellerID    string
	Title       string
	Description string
	Condition   string
	Categories  []string
	Images      []string
	TicketCost  int64
	TicketGoal  int64
	EndDate     time.Time
}

// Create validates and stores a new live raffle. The ticket cost is clamped
// to half the goal so no single purchase can dwarf the pool.
func (r *RaffleService) Create(ctx context.Context, input CreateRaffleInput) (*domain.Raffle, error) {
	now := r.deps.Clock.Now()

	details := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		details["title"] = "title is required"
	}
	if input.TicketCost < 1 {
		details["ticket_cost"] = "ticket cost must be at least 1"
	}
	if input.TicketGoal < 1 {
		details["ticket_goal"] = "ticket goal must be at least 1"
	}
	if !input.EndDate.After(now) {
		details["end_date"] = "end date must be in the future"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid raffle", details)
	}

	cost := input.TicketCost
	if maxCost := (input.TicketGoal + 1) / 2; cost > maxCost {
		cost = maxCost
	}

	raffle := &domain.Raffle{
		SellerID:    input.SellerID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Condition:   input.Condition,
		Categories:  input.Categories,
		Images:      input.Images,
		TicketCost:  cost,
		TicketGoal:  input.TicketGoal,
		Status:      domain.RaffleStatusLive,
		EndDate:     input.EndDate.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.deps.Raffles.Create(ctx, raffle); err != nil {
		return nil, err
	}

	if r.deps.Dispatcher != nil {
		_ = r.deps.Dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRaffleCreated,
			RaffleID:  raffle.ID,
			Timestamp: now,
			Payload: events.RaffleCreatedPayload{
				SellerID:   raffle.SellerID,
				Title:      raffle.Title,
				TicketCost: raffle.TicketCost,
				TicketGoal: raffle.TicketGoal,
			},
		})
	}

	r.deps.Logger.Info("raffle created",
		zap.String("raffle_id", raffle.ID),
		zap.String("seller_id", raffle.SellerID),
		zap.Int64("ticket_goal", raffle.TicketGoal))
	return raffle, nil
}

// Get returns a raffle with its effective status at now. The stored row is
// not mutated; callers see expired windows resolved without waiting for the
// sweeper.
func (r *RaffleService) Get(ctx context.Context, id string) (*domain.Raffle, error) {
	raffle, err := r.deps.Raffles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("raffle", map[string]any{"raffle_id": id})
		}
		return nil, err
	}
	return raffle, nil
}

func (r *RaffleService) List(ctx context.Context, limit, offset int) ([]domain.Raffle, error) {
	return r.deps.Raffles.List(ctx, limit, offset)
}

func (r *RaffleService) ListBySeller(ctx context.Context, sellerID string) ([]domain.Raffle, error) {
	return r.deps.Raffles.ListBySeller(ctx, sellerID)
}

func (r *RaffleService) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Raffle, error) {
	return r.deps.Raffles.ListByBuyer(ctx, buyerID)
}

// Sample returns up to size live raffles in random order, for discovery
// surfaces.
func (r *RaffleService) Sample(ctx context.Context, size int) ([]domain.Raffle, error) {
	if size < 1 {
		size = 1
	}
	if size > 50 {
		size = 50
	}
	return r.deps.Raffles.ListRandom(ctx, size)
}

func (r *RaffleService) TicketsSoldBySeller(ctx context.Context, sellerID string) (int64, error) {
	return r.deps.Raffles.TicketsSoldBySeller(ctx, sellerID)
}

// History returns the recorded transitions for a raffle, newest first.
func (r *RaffleService) History(ctx context.Context, raffleID string, limit, offset int) ([]domain.RaffleHistory, error) {
	if _, err := r.Get(ctx, raffleID); err != nil {
		return nil, err
	}
	return r.deps.History.ListByRaffle(ctx, raffleID, limit, offset)
}

// EffectiveStatus projects a raffle's status at now without persisting, so
// reads reflect an expired window before the sweeper has caught up.
func (r *RaffleService) EffectiveStatus(raffle *domain.Raffle) domain.RaffleStatus {
	shadow := *raffle
	shadow.Participants = append([]domain.Participant(nil), raffle.Participants...)
	out := r.deps.Engine.Evaluate(&shadow, r.deps.Clock.Now())
	return out.To
}
