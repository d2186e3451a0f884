package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/raffle-service/internal/api/dto"
	"github.com/spec-kit/raffle-service/internal/auth"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/service"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

// RafflesHandler manages raffle endpoints.
type RafflesHandler struct {
	raffles   *service.RaffleService
	entries   *service.EntryService
	decisions *service.DecisionService
}

// NewRafflesHandler constructs handler.
func NewRafflesHandler(raffleService *service.RaffleService, entryService *service.EntryService, decisionService *service.DecisionService) *RafflesHandler {
	return &RafflesHandler{raffles: raffleService, entries: entryService, decisions: decisionService}
}

// Create POST /raffles.
func (h *RafflesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateRaffleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	raffle, err := h.raffles.Create(c.Context(), service.CreateRaffleInput{
		SellerID:    principal.User.ID,
		Title:       req.Title,
		Description: req.Description,
		Condition:   req.Condition,
		Categories:  req.Categories,
		Images:      req.Images,
		TicketCost:  req.TicketCost,
		TicketGoal:  req.TicketGoal,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ToRaffleDetail(raffle)})
}

// List GET /raffles.
func (h *RafflesHandler) List(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	raffles, err := h.raffles.List(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(raffles)})
}

// Sample GET /raffles/sample.
func (h *RafflesHandler) Sample(c *fiber.Ctx) error {
	size := queryInt(c, "size", 6)
	raffles, err := h.raffles.Sample(c.Context(), size)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(raffles)})
}

// Get GET /raffles/:id.
func (h *RafflesHandler) Get(c *fiber.Ctx) error {
	raffle, err := h.raffles.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.ToRaffleDetail(raffle)
	detail.Status = h.raffles.EffectiveStatus(raffle)
	return c.JSON(fiber.Map{"data": detail})
}

// History GET /raffles/:id/history.
func (h *RafflesHandler) History(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	entries, err := h.raffles.History(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToHistoryEntries(entries)})
}

// Enter POST /raffles/:id/entries.
func (h *RafflesHandler) Enter(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.EnterRaffleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.entries.Enter(c.Context(), principal.User.ID, c.Params("id"), req.Quantity)
	if err != nil {
		return err
	}

	response := dto.EntryResponse{
		Raffle:    dto.ToRaffleDetail(result.Raffle),
		TotalCost: result.TotalCost,
		Balance:   result.BuyerBalance,
	}
	if p := result.Raffle.ParticipantByUser(principal.User.ID); p != nil {
		response.TicketsSpent = p.TicketsSpent
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": response})
}

// Confirm POST /raffles/:id/confirm.
func (h *RafflesHandler) Confirm(c *fiber.Ctx) error {
	return h.decide(c, h.decisions.Confirm)
}

// Cancel POST /raffles/:id/cancel.
func (h *RafflesHandler) Cancel(c *fiber.Ctx) error {
	return h.decide(c, h.decisions.Cancel)
}

// EndNotMet POST /raffles/:id/end.
func (h *RafflesHandler) EndNotMet(c *fiber.Ctx) error {
	return h.decide(c, h.decisions.EndNotMet)
}

// Extend POST /raffles/:id/extend.
func (h *RafflesHandler) Extend(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ExtendRaffleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	raffle, err := h.decisions.Extend(c.Context(), principal.User.ID, c.Params("id"), req.EndDate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToRaffleDetail(raffle)})
}

// MyRaffles GET /raffles/mine.
func (h *RafflesHandler) MyRaffles(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}

	var raffles []domain.Raffle
	var err error
	if principal.User.Role == domain.UserRoleSeller {
		raffles, err = h.raffles.ListBySeller(c.Context(), principal.User.ID)
	} else {
		raffles, err = h.raffles.ListByBuyer(c.Context(), principal.User.ID)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(raffles)})
}

// TicketsSold GET /sellers/me/tickets-sold.
func (h *RafflesHandler) TicketsSold(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	total, err := h.raffles.TicketsSoldBySeller(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"tickets_sold": total}})
}

func (h *RafflesHandler) decide(c *fiber.Ctx, fn func(ctx context.Context, sellerID, raffleID string) (*domain.Raffle, error)) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	raffle, err := fn(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToRaffleDetail(raffle)})
}

func summaries(raffles []domain.Raffle) []dto.RaffleSummary {
	items := make([]dto.RaffleSummary, 0, len(raffles))
	for i := range raffles {
		items = append(items, dto.ToRaffleSummary(&raffles[i]))
	}
	return items
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
