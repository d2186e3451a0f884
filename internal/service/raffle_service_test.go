package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/lifecycle"
)

func newRaffleServiceFixture(t *testing.T) (*memStore, *RaffleService) {
	t.Helper()
	store := newMemStore()
	svc := NewRaffleService(RaffleServiceDependencies{
		Raffles: &fakeRaffleRepo{s: store},
		History: &fakeHistoryRepo{s: store},
		Engine:  lifecycle.NewEngine(lifecycle.DefaultGracePeriod),
		Clock:   clock.NewFakeClock(testStart),
		Logger:  zap.NewNop(),
	})
	return store, svc
}

func TestCreateRaffleDefaultsToLive(t *testing.T) {
	_, svc := newRaffleServiceFixture(t)

	raffle, err := svc.Create(context.Background(), CreateRaffleInput{
		SellerID:   "seller-1",
		Title:      "mountain bike",
		TicketCost: 5,
		TicketGoal: 200,
		EndDate:    testStart.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusLive, raffle.Status)
	assert.Equal(t, int64(5), raffle.TicketCost)
	assert.Equal(t, int64(0), raffle.TicketsSold)
	assert.NotEmpty(t, raffle.ID)
}

func TestCreateRaffleClampsTicketCost(t *testing.T) {
	_, svc := newRaffleServiceFixture(t)

	raffle, err := svc.Create(context.Background(), CreateRaffleInput{
		SellerID:   "seller-1",
		Title:      "rare sneakers",
		TicketCost: 80,
		TicketGoal: 100,
		EndDate:    testStart.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), raffle.TicketCost)

	// Odd goals round the cap up.
	raffle, err = svc.Create(context.Background(), CreateRaffleInput{
		SellerID:   "seller-1",
		Title:      "rare sneakers",
		TicketCost: 80,
		TicketGoal: 101,
		EndDate:    testStart.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(51), raffle.TicketCost)
}

func TestCreateRaffleValidation(t *testing.T) {
	_, svc := newRaffleServiceFixture(t)

	cases := []struct {
		name  string
		input CreateRaffleInput
	}{
		{"missing title", CreateRaffleInput{SellerID: "s", TicketCost: 1, TicketGoal: 10, EndDate: testStart.Add(time.Hour)}},
		{"zero cost", CreateRaffleInput{SellerID: "s", Title: "x", TicketGoal: 10, EndDate: testStart.Add(time.Hour)}},
		{"zero goal", CreateRaffleInput{SellerID: "s", Title: "x", TicketCost: 1, EndDate: testStart.Add(time.Hour)}},
		{"past end date", CreateRaffleInput{SellerID: "s", Title: "x", TicketCost: 1, TicketGoal: 10, EndDate: testStart.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
		})
	}
}

func TestGetUnknownRaffle(t *testing.T) {
	_, svc := newRaffleServiceFixture(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestEffectiveStatusProjectsWithoutPersisting(t *testing.T) {
	store, svc := newRaffleServiceFixture(t)
	raffle := store.addRaffle(domain.Raffle{
		SellerID:     "seller-1",
		Title:        "lamp",
		TicketCost:   1,
		TicketGoal:   100,
		TicketsSold:  40,
		Participants: []domain.Participant{{UserID: "buyer", TicketsSpent: 40, JoinedAt: testStart}},
		Status:       domain.RaffleStatusLive,
		EndDate:      testStart.Add(-time.Hour),
	})

	loaded, err := svc.Get(context.Background(), raffle.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusNotMetPendingDecision, svc.EffectiveStatus(loaded))
	// The stored row is untouched until a write path or the sweeper runs.
	assert.Equal(t, domain.RaffleStatusLive, store.raffle(raffle.ID).Status)
	assert.Equal(t, domain.RaffleStatusLive, loaded.Status)
}

func TestHistoryRequiresExistingRaffle(t *testing.T) {
	_, svc := newRaffleServiceFixture(t)
	_, err := svc.History(context.Background(), "missing", 10, 0)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}
