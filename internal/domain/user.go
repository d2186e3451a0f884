package domain

import "time"

// UserRole distinguishes sellers listing raffles from buyers entering them.
type UserRole string

const (
	UserRoleSeller UserRole = "seller"
	UserRoleBuyer  UserRole = "buyer"
)

// User is the domain model for marketplace accounts. TicketBalance, TotalSpent
// and TotalRevenue are denominated in ticket-units (1 ticket ~ $1).
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          UserRole
	TicketBalance int64
	TotalSpent    int64
	TotalRevenue  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
