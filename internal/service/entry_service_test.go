package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/lifecycle"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store     *memStore
	clock     *clock.FakeClock
	uow       *fakeUnitOfWork
	lifecycle *LifecycleService
	entries   *EntryService
	decisions *DecisionService
	seller    *domain.User
	buyer     *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	fakeClock := clock.NewFakeClock(testStart)
	logger := zap.NewNop()
	engine := lifecycle.NewEngine(lifecycle.DefaultGracePeriod)
	lifecycleSvc := NewLifecycleService(engine, nil, logger, rand.New(rand.NewSource(7)))
	uow := &fakeUnitOfWork{s: store}

	env := &testEnv{
		store:     store,
		clock:     fakeClock,
		uow:       uow,
		lifecycle: lifecycleSvc,
		entries: NewEntryService(EntryServiceDependencies{
			UnitOfWork: uow,
			Lifecycle:  lifecycleSvc,
			Clock:      fakeClock,
			Logger:     logger,
		}),
		decisions: NewDecisionService(DecisionServiceDependencies{
			UnitOfWork: uow,
			Lifecycle:  lifecycleSvc,
			Clock:      fakeClock,
			Logger:     logger,
		}),
	}
	env.seller = store.addUser(domain.User{Name: "seller", Email: "seller@example.com", Role: domain.UserRoleSeller})
	env.buyer = store.addUser(domain.User{Name: "buyer", Email: "buyer@example.com", Role: domain.UserRoleBuyer, TicketBalance: 500})
	return env
}

func (e *testEnv) addLiveRaffle(goal, cost int64) *domain.Raffle {
	return e.store.addRaffle(domain.Raffle{
		SellerID:   e.seller.ID,
		Title:      "vintage camera",
		TicketCost: cost,
		TicketGoal: goal,
		Status:     domain.RaffleStatusLive,
		EndDate:    testStart.Add(14 * 24 * time.Hour),
	})
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func TestEnterDebitsBuyerAndCreditsSellerBeforeGoal(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	result, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 40)
	require.NoError(t, err)

	assert.Equal(t, int64(40), result.TotalCost)
	assert.Equal(t, int64(460), result.BuyerBalance)
	assert.Equal(t, domain.RaffleStatusLive, result.Raffle.Status)
	assert.Equal(t, int64(40), result.Raffle.TicketsSold)

	seller := env.store.user(env.seller.ID)
	assert.Equal(t, int64(40), seller.TicketBalance)
	assert.Equal(t, int64(40), seller.TotalRevenue)

	buyer := env.store.user(env.buyer.ID)
	assert.Equal(t, int64(460), buyer.TicketBalance)
	assert.Equal(t, int64(40), buyer.TotalSpent)
}

func TestEnterCrossingGoalOpensDecisionWindow(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	result, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 100)
	require.NoError(t, err)

	assert.Equal(t, domain.RaffleStatusGoalMetGracePeriod, result.Raffle.Status)
	require.NotNil(t, result.Raffle.ConfirmationDeadline)
	assert.Equal(t, testStart.Add(24*time.Hour), *result.Raffle.ConfirmationDeadline)

	// The goal-crossing purchase is still pre-goal revenue.
	seller := env.store.user(env.seller.ID)
	assert.Equal(t, int64(100), seller.TicketBalance)
	assert.Equal(t, int64(100), seller.TotalRevenue)
}

func TestEnterPastGoalAccruesOverflowNotSellerRevenue(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 100)
	require.NoError(t, err)

	other := env.store.addUser(domain.User{Name: "other", Email: "other@example.com", Role: domain.UserRoleBuyer, TicketBalance: 200})
	result, err := env.entries.Enter(context.Background(), other.ID, raffle.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, int64(130), result.Raffle.TicketsSold)
	assert.Equal(t, int64(30), result.Raffle.CharityOverflow)

	// Post-goal sales sit on the raffle until the overflow split.
	seller := env.store.user(env.seller.ID)
	assert.Equal(t, int64(100), seller.TicketBalance)
	assert.Equal(t, int64(100), seller.TotalRevenue)
}

func TestEnterAccumulatesSpendOnRepeatPurchases(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 2)

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 5)
	require.NoError(t, err)
	result, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 3)
	require.NoError(t, err)

	require.Len(t, result.Raffle.Participants, 1)
	assert.Equal(t, int64(16), result.Raffle.Participants[0].TicketsSpent)
	assert.Equal(t, int64(16), result.Raffle.TicketsSold)
}

func TestEnterInsufficientFundsRollsBack(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	poor := env.store.addUser(domain.User{Name: "poor", Email: "poor@example.com", Role: domain.UserRoleBuyer, TicketBalance: 5})
	_, err := env.entries.Enter(context.Background(), poor.ID, raffle.ID, 10)
	assert.Equal(t, "INSUFFICIENT_FUNDS", domainCode(t, err))

	assert.Equal(t, int64(5), env.store.user(poor.ID).TicketBalance)
	assert.Equal(t, int64(0), env.store.raffle(raffle.ID).TicketsSold)
	assert.Equal(t, int64(0), env.store.user(env.seller.ID).TicketBalance)
}

func TestEnterRejectsClosedRaffle(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.store.addRaffle(domain.Raffle{
		SellerID:   env.seller.ID,
		Title:      "done",
		TicketCost: 1,
		TicketGoal: 10,
		Status:     domain.RaffleStatusEnded,
		EndDate:    testStart.Add(time.Hour),
	})

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 1)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestEnterRejectsExpiredEntryWindow(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)
	env.clock.Advance(15 * 24 * time.Hour)

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 1)
	assert.Equal(t, "INVALID_STATE", domainCode(t, err))
}

func TestEnterRejectsNonPositiveQuantity(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 0)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestEnterUnknownRaffle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.entries.Enter(context.Background(), env.buyer.ID, "missing", 1)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestEnterRetriesAfterVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)
	env.store.failUpdates = 1

	result, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 10)
	require.NoError(t, err)

	// The losing attempt was rolled back, so state reflects exactly one write.
	assert.Equal(t, int64(10), result.Raffle.TicketsSold)
	assert.Equal(t, int64(490), env.store.user(env.buyer.ID).TicketBalance)
	assert.Equal(t, int64(10), env.store.user(env.seller.ID).TicketBalance)
}

func TestEnterGivesUpAfterRepeatedConflicts(t *testing.T) {
	env := newTestEnv(t)
	raffle := env.addLiveRaffle(100, 1)
	env.store.failUpdates = defaultWriteAttempts

	_, err := env.entries.Enter(context.Background(), env.buyer.ID, raffle.ID, 10)
	assert.Equal(t, "CONFLICT", domainCode(t, err))
	assert.Equal(t, int64(500), env.store.user(env.buyer.ID).TicketBalance)
}
