package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/raffle-service/internal/domain"
)

// addGraceRaffle stores a raffle whose goal was met at testStart, decision
// window open until testStart+24h.
func (e *testEnv) addGraceRaffle(buyers map[string]int64) *domain.Raffle {
	goalMet := testStart
	deadline := testStart.Add(24 * time.Hour)
	var participants []domain.Participant
	var sold int64
	for id, spend := range buyers {
		participants = append(participants, domain.Participant{UserID: id, TicketsSpent: spend, JoinedAt: testStart})
		sold += spend
	}
	return e.store.addRaffle(domain.Raffle{
		SellerID:             e.seller.ID,
		Title:                "record player",
		TicketCost:           1,
		TicketGoal:           sold,
		TicketsSold:          sold,
		Participants:         participants,
		Status:               domain.RaffleStatusGoalMetGracePeriod,
		GoalMetAt:            &goalMet,
		ConfirmationDeadline: &deadline,
		EndDate:              testStart.Add(14 * 24 * time.Hour),
	})
}

// addPendingRaffle stores a raffle whose deadline passed below goal.
func (e *testEnv) addPendingRaffle(buyers map[string]int64) *domain.Raffle {
	var participants []domain.Participant
	var sold int64
	for id, spend := range buyers {
		participants = append(participants, domain.Participant{UserID: id, TicketsSpent: spend, JoinedAt: testStart})
		sold += spend
	}
	return e.store.addRaffle(domain.Raffle{
		SellerID:     e.seller.ID,
		Title:        "guitar",
		TicketCost:   1,
		TicketGoal:   sold + 100,
		TicketsSold:  sold,
		Participants: participants,
		Status:       domain.RaffleStatusNotMetPendingDecision,
		EndDate:      testStart.Add(-time.Hour),
	})
}

func TestConfirmEndsRaffleWithWinner(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addGraceRaffle(map[string]int64{env.buyer.ID: 100})

	updated, err := env.decisions.Confirm(context.Background(), env.seller.ID, raffle.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusEnded, updated.Status)
	require.NotNil(t, updated.WinnerID)
	assert.Equal(t, env.buyer.ID, *updated.WinnerID)
	require.NotNil(t, updated.SellerConfirmed)
	assert.True(t, *updated.SellerConfirmed)
	assert.Nil(t, updated.ConfirmationDeadline)

	history, err := (&fakeHistoryRepo{s: env.store}).ListByRaffle(context.Background(), raffle.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RaffleStatusEnded, history[0].NewStatus)
	assert.Equal(t, domain.HistoryActorSeller, history[0].ActorType)
}

func TestConfirmRejectsNonSeller(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addGraceRaffle(map[string]int64{env.buyer.ID: 100})

	_, err := env.decisions.Confirm(context.Background(), env.buyer.ID, raffle.ID)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

func TestConfirmRejectsLiveRaffle(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	_, err := env.decisions.Confirm(context.Background(), env.seller.ID, raffle.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestConfirmRejectsAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addGraceRaffle(map[string]int64{env.buyer.ID: 100})
	env.clock.Advance(25 * time.Hour)

	_, err := env.decisions.Confirm(context.Background(), env.seller.ID, raffle.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestCancelRefundsEveryParticipant(t *testing.T) {
	env := newTestEnv(t)
	second := env.store.addUser(domain.User{Name: "second", Email: "second@example.com", Role: domain.UserRoleBuyer})
	raffle := env.addGraceRaffle(map[string]int64{env.buyer.ID: 60, second.ID: 40})

	updated, err := env.decisions.Cancel(context.Background(), env.seller.ID, raffle.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusCancelled, updated.Status)
	require.NotNil(t, updated.SellerConfirmed)
	assert.False(t, *updated.SellerConfirmed)
	assert.Nil(t, updated.WinnerID)

	assert.Equal(t, int64(560), env.store.user(env.buyer.ID).TicketBalance)
	assert.Equal(t, int64(40), env.store.user(second.ID).TicketBalance)
}

func TestCancelRejectsAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addGraceRaffle(map[string]int64{env.buyer.ID: 100})
	env.clock.Advance(24 * time.Hour)

	_, err := env.decisions.Cancel(context.Background(), env.seller.ID, raffle.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestEndNotMetRefundsAndCloses(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addPendingRaffle(map[string]int64{env.buyer.ID: 30})

	updated, err := env.decisions.EndNotMet(context.Background(), env.seller.ID, raffle.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusNotMet, updated.Status)
	assert.Equal(t, int64(530), env.store.user(env.buyer.ID).TicketBalance)

	history, err := (&fakeHistoryRepo{s: env.store}).ListByRaffle(context.Background(), raffle.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RaffleStatusNotMet, history[0].NewStatus)
}

func TestEndNotMetRejectsLiveRaffle(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	_, err := env.decisions.EndNotMet(context.Background(), env.seller.ID, raffle.ID)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestExtendReopensPendingRaffle(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addPendingRaffle(map[string]int64{env.buyer.ID: 30})
	newEnd := testStart.Add(7 * 24 * time.Hour)

	updated, err := env.decisions.Extend(context.Background(), env.seller.ID, raffle.ID, newEnd)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusLive, updated.Status)
	assert.Equal(t, newEnd, updated.EndDate)
	// Entries are kept through the extension.
	assert.Equal(t, int64(30), updated.TicketsSold)

	// The reopened raffle accepts purchases again.
	result, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.Raffle.TicketsSold)
}

func TestExtendRejectsPastDate(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addPendingRaffle(map[string]int64{env.buyer.ID: 30})

	_, err := env.decisions.Extend(context.Background(), env.seller.ID, raffle.ID, testStart.Add(-time.Minute))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestExtendRejectsLiveRaffle(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	_, err := env.decisions.Extend(context.Background(), env.seller.ID, raffle.ID, testStart.Add(time.Hour))
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}
