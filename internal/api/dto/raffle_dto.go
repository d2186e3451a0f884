package dto

import (
	"time"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// CreateRaffleRequest payload.
type CreateRaffleRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Condition   string    `json:"condition"`
	Categories  []string  `json:"categories"`
	Images      []string  `json:"images"`
	TicketCost  int64     `json:"ticket_cost"`
	TicketGoal  int64     `json:"ticket_goal"`
	EndDate     time.Time `json:"end_date"`
}

// EnterRaffleRequest payload.
type EnterRaffleRequest struct {
	Quantity int64 `json:"quantity"`
}

// ExtendRaffleRequest payload.
type ExtendRaffleRequest struct {
	EndDate time.Time `json:"end_date"`
}

// ParticipantResponse is one buyer's stake in a raffle.
type ParticipantResponse struct {
	UserID       string    `json:"user_id"`
	TicketsSpent int64     `json:"tickets_spent"`
	JoinedAt     time.Time `json:"joined_at"`
}

// RaffleSummary response.
type RaffleSummary struct {
	ID          string              `json:"id"`
	SellerID    string              `json:"seller_id"`
	Title       string              `json:"title"`
	TicketCost  int64               `json:"ticket_cost"`
	TicketGoal  int64               `json:"ticket_goal"`
	TicketsSold int64               `json:"tickets_sold"`
	Status      domain.RaffleStatus `json:"status"`
	EndDate     time.Time           `json:"end_date"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RaffleDetailResponse provides full raffle info.
type RaffleDetailResponse struct {
	ID                   string                `json:"id"`
	SellerID             string                `json:"seller_id"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	Condition            string                `json:"condition"`
	Categories           []string              `json:"categories"`
	Images               []string              `json:"images"`
	TicketCost           int64                 `json:"ticket_cost"`
	TicketGoal           int64                 `json:"ticket_goal"`
	TicketsSold          int64                 `json:"tickets_sold"`
	Status               domain.RaffleStatus   `json:"status"`
	WinnerID             *string               `json:"winner_id"`
	ConfirmationDeadline *time.Time            `json:"confirmation_deadline"`
	SellerConfirmed      *bool                 `json:"seller_confirmed"`
	EndDate              time.Time             `json:"end_date"`
	CharityOverflow      int64                 `json:"charity_overflow"`
	Participants         []ParticipantResponse `json:"participants"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// EntryResponse is returned after a successful ticket purchase.
type EntryResponse struct {
	Raffle       RaffleDetailResponse `json:"raffle"`
	TotalCost    int64                `json:"total_cost"`
	TicketsSpent int64                `json:"tickets_spent"`
	Balance      int64                `json:"balance"`
}

// HistoryEntryResponse is one recorded transition.
type HistoryEntryResponse struct {
	ID        string              `json:"id"`
	ActorType domain.HistoryActor `json:"actor_type"`
	ActorID   *string             `json:"actor_id"`
	OldStatus domain.RaffleStatus `json:"old_status"`
	NewStatus domain.RaffleStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// SweepResponse reports one admin-triggered sweep pass.
type SweepResponse struct {
	Scanned     int  `json:"scanned"`
	Transitions int  `json:"transitions"`
	Failed      int  `json:"failed"`
	Skipped     bool `json:"skipped"`
}

// ToRaffleSummary maps a domain raffle onto the list shape.
func ToRaffleSummary(r *domain.Raffle) RaffleSummary {
	return RaffleSummary{
		ID:          r.ID,
		SellerID:    r.SellerID,
		Title:       r.Title,
		TicketCost:  r.TicketCost,
		TicketGoal:  r.TicketGoal,
		TicketsSold: r.TicketsSold,
		Status:      r.Status,
		EndDate:     r.EndDate,
		CreatedAt:   r.CreatedAt,
	}
}

// ToRaffleDetail maps a domain raffle onto the detail shape.
func ToRaffleDetail(r *domain.Raffle) RaffleDetailResponse {
	participants := make([]ParticipantResponse, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, ParticipantResponse{
			UserID:       p.UserID,
			TicketsSpent: p.TicketsSpent,
			JoinedAt:     p.JoinedAt,
		})
	}
	return RaffleDetailResponse{
		ID:                   r.ID,
		SellerID:             r.SellerID,
		Title:                r.Title,
		Description:          r.Description,
		Condition:            r.Condition,
		Categories:           r.Categories,
		Images:               r.Images,
		TicketCost:           r.TicketCost,
		TicketGoal:           r.TicketGoal,
		TicketsSold:          r.TicketsSold,
		Status:               r.Status,
		WinnerID:             r.WinnerID,
		ConfirmationDeadline: r.ConfirmationDeadline,
		SellerConfirmed:      r.SellerConfirmed,
		EndDate:              r.EndDate,
		CharityOverflow:      r.CharityOverflow,
		Participants:         participants,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

// ToHistoryEntries maps recorded transitions.
func ToHistoryEntries(entries []domain.RaffleHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:        e.ID,
			ActorType: e.ActorType,
			ActorID:   e.ActorID,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
