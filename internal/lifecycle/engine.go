package lifecycle

import (
	"time"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// DefaultGracePeriod is the seller decision window opened when the goal is
// first met.
const DefaultGracePeriod = 24 * time.Hour

// Charity overflow split applied once at the end-date boundary.
const (
	charitySharePercent = 70
	sellerSharePercent  = 30
)

// Outcome describes what a single evaluation decided. Ledger effects are not
// applied by the engine itself; the caller applies them in the same transaction
// that persists the raffle.
type Outcome struct {
	From    domain.RaffleStatus
	To      domain.RaffleStatus
	Changed bool

	// GoalJustMet is set on the evaluation that first crosses the ticket goal.
	GoalJustMet bool

	// NeedsWinner is set when the raffle reached its end date with the goal met
	// and no winner recorded; the caller draws one, folds it back into the
	// raffle and re-evaluates so the same transition lands in ended.
	NeedsWinner bool

	// RefundParticipants is set when the transition into cancelled requires
	// every participant's spend credited back.
	RefundParticipants bool

	// SellerOverflowCredit and CharityRetained carry the one-shot 70/30 split
	// of the charity overflow. Both are zero unless this evaluation settled it.
	SellerOverflowCredit int64
	CharityRetained      int64
}

// Engine computes raffle state transitions as a pure function of the raffle
// and the current time. Evaluate is idempotent: a second call with the same
// now leaves the raffle unchanged.
type Engine struct {
	grace time.Duration
}

func NewEngine(grace time.Duration) *Engine {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Engine{grace: grace}
}

// Evaluate recomputes derived fields and advances the raffle's status for the
// given instant, mutating r in place. Terminal raffles are left untouched.
func (e *Engine) Evaluate(r *domain.Raffle, now time.Time) Outcome {
	out := Outcome{From: r.Status.Normalize(), To: r.Status.Normalize()}

	if r.Status.Terminal() {
		return out
	}
	r.Status = r.Status.Normalize()

	recomputeDerived(r)

	switch {
	case r.TicketsSold >= r.TicketGoal:
		e.evaluateGoalMet(r, now, &out)
	case !now.Before(r.EndDate):
		// Goal never met and time is up. With paid participants the seller
		// must decide; with none there is nothing to refund or decide.
		if r.TicketsSold > 0 {
			r.Status = domain.RaffleStatusNotMetPendingDecision
		} else {
			r.Status = domain.RaffleStatusNotMet
		}
	default:
		r.Status = domain.RaffleStatusLive
	}

	e.settleOverflow(r, now, &out)

	out.To = r.Status
	out.Changed = out.To != out.From || out.GoalJustMet ||
		out.SellerOverflowCredit > 0 || out.CharityRetained > 0
	return out
}

func (e *Engine) evaluateGoalMet(r *domain.Raffle, now time.Time, out *Outcome) {
	if r.GoalMetAt == nil {
		// First evaluation at or past the goal: open the decision window.
		goalMet := now
		deadline := now.Add(e.grace)
		r.GoalMetAt = &goalMet
		r.ConfirmationDeadline = &deadline
		r.Status = domain.RaffleStatusGoalMetGracePeriod
		out.GoalJustMet = true
		return
	}

	switch {
	case r.SellerConfirmed != nil && !*r.SellerConfirmed:
		// A cancellation refunds every spend in full, so nothing remains on
		// the raffle to split with charity.
		r.Status = domain.RaffleStatusCancelled
		r.ConfirmationDeadline = nil
		r.CharityOverflow = 0
		out.RefundParticipants = true

	case r.SellerConfirmed != nil && *r.SellerConfirmed && r.WinnerID != nil:
		r.Status = domain.RaffleStatusEnded
		r.ConfirmationDeadline = nil

	case r.Status == domain.RaffleStatusGoalMetGracePeriod:
		// Inaction through the grace period is the designed default: the
		// raffle returns to live and keeps selling for charity overflow.
		if r.ConfirmationDeadline != nil && !now.Before(*r.ConfirmationDeadline) {
			r.ConfirmationDeadline = nil
			r.Status = domain.RaffleStatusLive
		}

	case !now.Before(r.EndDate):
		// Overflow continuation ran out of time; a winner must be drawn.
		if r.WinnerID != nil {
			r.Status = domain.RaffleStatusEnded
		} else {
			out.NeedsWinner = true
		}
	}
}

// settleOverflow applies the 70/30 charity split exactly once, on the
// evaluation that crosses the end-date boundary into a terminal state (or
// requires the final winner draw). CharityOverflow afterwards holds the
// realized charity allocation.
func (e *Engine) settleOverflow(r *domain.Raffle, now time.Time, out *Outcome) {
	if r.OverflowSettledAt != nil || r.CharityOverflow <= 0 || now.Before(r.EndDate) {
		return
	}
	if r.Status == domain.RaffleStatusCancelled {
		return
	}
	if !r.Status.Terminal() && !out.NeedsWinner {
		return
	}
	out.SellerOverflowCredit = r.CharityOverflow * sellerSharePercent / 100
	out.CharityRetained = r.CharityOverflow * charitySharePercent / 100
	r.CharityOverflow = out.CharityRetained
	settled := now
	r.OverflowSettledAt = &settled
}

func recomputeDerived(r *domain.Raffle) {
	var sold int64
	for i := range r.Participants {
		if r.Participants[i].TicketsSpent > 0 {
			sold += r.Participants[i].TicketsSpent
		}
	}
	r.TicketsSold = sold

	// The cost cap is enforced on every evaluation so later edits cannot
	// violate it.
	if maxCost := (r.TicketGoal + 1) / 2; r.TicketCost > maxCost {
		r.TicketCost = maxCost
	}

	if r.OverflowSettledAt == nil {
		if over := sold - r.TicketGoal; over > 0 {
			r.CharityOverflow = over
		} else {
			r.CharityOverflow = 0
		}
	}
}

// CanTransition validates decision-driven transitions that bypass Evaluate,
// rejecting anything the state machine does not model.
func CanTransition(from, to domain.RaffleStatus) bool {
	from = from.Normalize()
	switch from {
	case domain.RaffleStatusNotMetPendingDecision:
		return to == domain.RaffleStatusNotMet || to == domain.RaffleStatusLive
	case domain.RaffleStatusGoalMetGracePeriod:
		return to == domain.RaffleStatusEnded || to == domain.RaffleStatusCancelled
	}
	return false
}
