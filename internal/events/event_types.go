package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRaffleCreated   EventType = "raffle_created"
	EventEntryPlaced     EventType = "entry_placed"
	EventGoalMet         EventType = "goal_met"
	EventWinnerSelected  EventType = "winner_selected"
	EventRaffleCancelled EventType = "raffle_cancelled"
	EventRaffleNotMet    EventType = "raffle_not_met"
	EventRaffleExtended  EventType = "raffle_extended"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RaffleID  string      `json:"raffle_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RaffleCreatedPayload payload.
type RaffleCreatedPayload struct {
	SellerID   string `json:"seller_id"`
	Title      string `json:"title"`
	TicketCost int64  `json:"ticket_cost"`
	TicketGoal int64  `json:"ticket_goal"`
}

// EntryPlacedPayload payload.
type EntryPlacedPayload struct {
	BuyerID     string `json:"buyer_id"`
	Quantity    int64  `json:"quantity"`
	TotalCost   int64  `json:"total_cost"`
	TicketsSold int64  `json:"tickets_sold"`
}

// GoalMetPayload payload.
type GoalMetPayload struct {
	SellerID             string    `json:"seller_id"`
	TicketsSold          int64     `json:"tickets_sold"`
	ConfirmationDeadline time.Time `json:"confirmation_deadline"`
}

// WinnerSelectedPayload is the winner announcement; contacts are best-effort
// and may be empty when a lookup fails.
type WinnerSelectedPayload struct {
	WinnerID        string `json:"winner_id"`
	WinnerContact   string `json:"winner_contact,omitempty"`
	SellerContact   string `json:"seller_contact,omitempty"`
	TicketCost      int64  `json:"ticket_cost"`
	TicketsSpent    int64  `json:"tickets_spent"`
	CharityOverflow int64  `json:"charity_overflow"`
}

// RaffleCancelledPayload payload.
type RaffleCancelledPayload struct {
	SellerID       string `json:"seller_id"`
	RefundedUnits  int64  `json:"refunded_units"`
	RefundedBuyers int    `json:"refunded_buyers"`
}

// RaffleNotMetPayload payload.
type RaffleNotMetPayload struct {
	SellerID      string `json:"seller_id"`
	RefundedUnits int64  `json:"refunded_units"`
}

// RaffleExtendedPayload payload.
type RaffleExtendedPayload struct {
	SellerID   string    `json:"seller_id"`
	NewEndDate time.Time `json:"new_end_date"`
}
