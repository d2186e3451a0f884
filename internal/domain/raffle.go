package domain

import "time"

// RaffleStatus enumerates lifecycle states for raffles.
type RaffleStatus string

const (
	// RaffleStatusLive accepts entries until the goal or the end date is reached.
	RaffleStatusLive RaffleStatus = "live"
	// RaffleStatusGoalMetGracePeriod is the 24h window after the goal is first met
	// during which the seller may end early or cancel.
	RaffleStatusGoalMetGracePeriod RaffleStatus = "goal_met_grace_period"
	// RaffleStatusAwaitingConfirmation is a legacy alias of the grace period,
	// accepted on read for records written by older versions. Never written.
	RaffleStatusAwaitingConfirmation RaffleStatus = "awaiting_confirmation"
	// RaffleStatusNotMetPendingDecision means the end date passed below goal with
	// paid participants; the seller must end-with-refund or extend.
	RaffleStatusNotMetPendingDecision RaffleStatus = "not_met_pending_decision"
	RaffleStatusEnded                 RaffleStatus = "ended"
	RaffleStatusNotMet                RaffleStatus = "not_met"
	RaffleStatusCancelled             RaffleStatus = "cancelled"
)

// Normalize maps the legacy alias onto its canonical status.
func (s RaffleStatus) Normalize() RaffleStatus {
	if s == RaffleStatusAwaitingConfirmation {
		return RaffleStatusGoalMetGracePeriod
	}
	return s
}

// Terminal reports whether the status admits no further transitions.
func (s RaffleStatus) Terminal() bool {
	switch s {
	case RaffleStatusEnded, RaffleStatusNotMet, RaffleStatusCancelled:
		return true
	}
	return false
}

// AcceptsEntries reports whether buyers may purchase entries in this status.
// Entries stay open through the grace period and the overflow continuation.
func (s RaffleStatus) AcceptsEntries() bool {
	switch s.Normalize() {
	case RaffleStatusLive, RaffleStatusGoalMetGracePeriod:
		return true
	}
	return false
}

// Participant is one distinct buyer inside a raffle. TicketsSpent is denominated
// in ticket-units of currency (quantity x ticket cost at purchase time), not in
// entry count; repeat purchases accumulate into the same record.
type Participant struct {
	UserID       string
	TicketsSpent int64
	JoinedAt     time.Time
}

// Raffle is the aggregate root for a listed item and its draw.
type Raffle struct {
	ID          string
	SellerID    string
	Title       string
	Description string
	Condition   string
	Categories  []string
	Images      []string

	TicketCost   int64
	TicketGoal   int64
	TicketsSold  int64
	Participants []Participant

	Status               RaffleStatus
	WinnerID             *string
	GoalMetAt            *time.Time
	ConfirmationDeadline *time.Time
	SellerConfirmed      *bool
	EndDate              time.Time

	// CharityOverflow holds ticket-units sold beyond the goal; once the 70/30
	// split has run (OverflowSettledAt non-nil) it holds the realized charity
	// allocation and is no longer recomputed.
	CharityOverflow   int64
	OverflowSettledAt *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParticipantByUser returns the participant record for a buyer, or nil.
func (r *Raffle) ParticipantByUser(userID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// AddSpend accumulates ticket-units onto the buyer's participant record,
// creating it when the buyer enters for the first time.
func (r *Raffle) AddSpend(userID string, units int64, now time.Time) {
	if p := r.ParticipantByUser(userID); p != nil {
		p.TicketsSpent += units
		return
	}
	r.Participants = append(r.Participants, Participant{
		UserID:       userID,
		TicketsSpent: units,
		JoinedAt:     now,
	})
}
