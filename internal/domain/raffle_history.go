package domain

import "time"

// HistoryActor captures who drove a recorded transition.
type HistoryActor string

const (
	HistoryActorSeller    HistoryActor = "SELLER"
	HistoryActorBuyer     HistoryActor = "BUYER"
	HistoryActorScheduler HistoryActor = "SCHEDULER"
)

// RaffleHistory is an immutable audit trail entry for a status transition.
type RaffleHistory struct {
	ID        string
	RaffleID  string
	ActorType HistoryActor
	ActorID   *string
	OldStatus RaffleStatus
	NewStatus RaffleStatus
	Comment   string
	CreatedAt time.Time
}
