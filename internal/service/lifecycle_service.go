package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/events"
	"github.com/spec-kit/raffle-service/internal/lifecycle"
	"github.com/spec-kit/raffle-service/internal/repository"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

// LifecycleService folds engine evaluations into persisted transitions: it
// draws the winner when one is required, applies ledger effects and refunds,
// records history and collects the events to publish after commit.
type LifecycleService struct {
	engine     *lifecycle.Engine
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLifecycleService constructs the service. rng may be seeded for
// deterministic draws in tests; pass nil for a time-seeded source.
func NewLifecycleService(engine *lifecycle.Engine, dispatcher events.Dispatcher, logger *zap.Logger, rng *rand.Rand) *LifecycleService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &LifecycleService{
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
		rng:        rng,
	}
}

// AdvanceResult carries what a transition decided plus the events the caller
// publishes once the transaction has committed.
type AdvanceResult struct {
	Outcome lifecycle.Outcome
	Events  []events.Event
}

// Advance evaluates the raffle at now and persists the result inside the
// caller's transaction. mutated forces a save even when the evaluation itself
// changed nothing (e.g. a purchase that stays mid-live).
func (l *LifecycleService) Advance(ctx context.Context, s repository.Stores, r *domain.Raffle, now time.Time, actor domain.HistoryActor, actorID *string, mutated bool) (*AdvanceResult, error) {
	res := &AdvanceResult{}

	out := l.engine.Evaluate(r, now)
	winnerDrawn := false
	if out.NeedsWinner {
		winner, err := l.pickWinner(r)
		if err != nil {
			return nil, err
		}
		r.WinnerID = &winner
		winnerDrawn = true

		// Fold the draw back into the same transition; the split amounts were
		// settled by the first evaluation and must not be recomputed.
		folded := l.engine.Evaluate(r, now)
		out.To = folded.To
		out.NeedsWinner = false
		out.Changed = true
	}
	res.Outcome = out

	if out.SellerOverflowCredit > 0 {
		if err := s.Users.Credit(ctx, r.SellerID, out.SellerOverflowCredit, out.SellerOverflowCredit); err != nil {
			return nil, err
		}
	}

	var refundedUnits int64
	var refundedBuyers int
	if out.RefundParticipants {
		var err error
		refundedUnits, refundedBuyers, err = l.refundAll(ctx, s, r)
		if err != nil {
			return nil, err
		}
	}

	if !out.Changed && !mutated {
		return res, nil
	}

	if err := s.Raffles.Update(ctx, r); err != nil {
		return nil, err
	}

	if out.To != out.From {
		entry := &domain.RaffleHistory{
			RaffleID:  r.ID,
			ActorType: actor,
			ActorID:   actorID,
			OldStatus: out.From,
			NewStatus: out.To,
		}
		if err := s.History.Append(ctx, entry); err != nil {
			return nil, err
		}
	}

	l.collectEvents(ctx, s, r, res, winnerDrawn, refundedUnits, refundedBuyers)
	return res, nil
}

// DrawWinner records the winner for a raffle, or returns the existing one;
// winnerId is write-once and never re-drawn.
func (l *LifecycleService) DrawWinner(r *domain.Raffle) (string, error) {
	if r.WinnerID != nil {
		return *r.WinnerID, nil
	}
	winner, err := l.pickWinner(r)
	if err != nil {
		return "", err
	}
	r.WinnerID = &winner
	return winner, nil
}

func (l *LifecycleService) pickWinner(r *domain.Raffle) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	winner, err := lifecycle.PickWinner(r.Participants, l.rng)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNoParticipants) {
			return "", apperrors.NewNoParticipants(r.ID)
		}
		return "", err
	}
	return winner, nil
}

// refundAll credits every participant's spend back to their balance. Runs
// inside the enclosing transaction, so a failure rolls the whole sweep back
// rather than leaving a partial refund.
func (l *LifecycleService) refundAll(ctx context.Context, s repository.Stores, r *domain.Raffle) (int64, int, error) {
	var units int64
	var buyers int
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.TicketsSpent <= 0 {
			continue
		}
		if err := s.Users.Refund(ctx, p.UserID, p.TicketsSpent); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				l.logger.Warn("refund target missing, skipping",
					zap.String("raffle_id", r.ID), zap.String("user_id", p.UserID))
				continue
			}
			return 0, 0, err
		}
		units += p.TicketsSpent
		buyers++
	}
	return units, buyers, nil
}

func (l *LifecycleService) collectEvents(ctx context.Context, s repository.Stores, r *domain.Raffle, res *AdvanceResult, winnerDrawn bool, refundedUnits int64, refundedBuyers int) {
	out := res.Outcome
	if out.GoalJustMet && r.ConfirmationDeadline != nil {
		res.Events = append(res.Events, newEvent(events.EventGoalMet, r.ID, events.GoalMetPayload{
			SellerID:             r.SellerID,
			TicketsSold:          r.TicketsSold,
			ConfirmationDeadline: *r.ConfirmationDeadline,
		}))
	}
	if (winnerDrawn || (out.To == domain.RaffleStatusEnded && out.From != domain.RaffleStatusEnded)) && r.WinnerID != nil {
		res.Events = append(res.Events, newEvent(events.EventWinnerSelected, r.ID, l.winnerPayload(ctx, s, r)))
	}
	if out.To == domain.RaffleStatusCancelled && out.From != domain.RaffleStatusCancelled {
		res.Events = append(res.Events, newEvent(events.EventRaffleCancelled, r.ID, events.RaffleCancelledPayload{
			SellerID:       r.SellerID,
			RefundedUnits:  refundedUnits,
			RefundedBuyers: refundedBuyers,
		}))
	}
	if out.To == domain.RaffleStatusNotMet && out.From != domain.RaffleStatusNotMet {
		res.Events = append(res.Events, newEvent(events.EventRaffleNotMet, r.ID, events.RaffleNotMetPayload{
			SellerID:      r.SellerID,
			RefundedUnits: refundedUnits,
		}))
	}
}

// winnerPayload assembles the winner announcement. Contact lookups are
// best-effort; an empty contact never blocks the transition.
func (l *LifecycleService) winnerPayload(ctx context.Context, s repository.Stores, r *domain.Raffle) events.WinnerSelectedPayload {
	payload := events.WinnerSelectedPayload{
		WinnerID:        *r.WinnerID,
		TicketCost:      r.TicketCost,
		CharityOverflow: r.CharityOverflow,
	}
	if p := r.ParticipantByUser(*r.WinnerID); p != nil {
		payload.TicketsSpent = p.TicketsSpent
	}
	if winner, err := s.Users.GetByID(ctx, *r.WinnerID); err == nil {
		payload.WinnerContact = winner.Email
	}
	if seller, err := s.Users.GetByID(ctx, r.SellerID); err == nil {
		payload.SellerContact = seller.Email
	}
	return payload
}

// PublishAll emits collected events after the surrounding transaction has
// committed. The dispatcher is fire-and-forget.
func (l *LifecycleService) PublishAll(ctx context.Context, evs []events.Event) {
	if l.dispatcher == nil {
		return
	}
	for _, ev := range evs {
		_ = l.dispatcher.Publish(ctx, ev)
	}
}

func newEvent(eventType events.EventType, raffleID string, payload interface{}) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RaffleID:  raffleID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
