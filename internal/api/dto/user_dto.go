package dto

import (
	"time"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TopUpRequest payload for balance purchases.
type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public account shape.
type UserResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          domain.UserRole `json:"role"`
	TicketBalance int64           `json:"ticket_balance"`
	TotalSpent    int64           `json:"total_spent"`
	TotalRevenue  int64           `json:"total_revenue"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToUserResponse maps a domain user onto the public shape.
func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		TicketBalance: u.TicketBalance,
		TotalSpent:    u.TotalSpent,
		TotalRevenue:  u.TotalRevenue,
		CreatedAt:     u.CreatedAt,
	}
}
