package service

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/repository"
)

// memStore backs the in-memory repositories the service tests run against.
// Update enforces the same version check as the real store so retry paths can
// be exercised.
type memStore struct {
	mu      sync.Mutex
	seq     int
	raffles map[string]*domain.Raffle
	users   map[string]*domain.User
	history []domain.RaffleHistory

	// failUpdates makes the next n raffle updates lose the version race.
	failUpdates int
}

func newMemStore() *memStore {
	return &memStore{
		raffles: make(map[string]*domain.Raffle),
		users:   make(map[string]*domain.User),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func (m *memStore) addUser(u domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.nextID("user")
	}
	stored := u
	m.users[stored.ID] = &stored
	return &stored
}

func (m *memStore) addRaffle(r domain.Raffle) *domain.Raffle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = m.nextID("raffle")
	}
	if r.Version == 0 {
		r.Version = 1
	}
	stored := cloneRaffle(&r)
	m.raffles[stored.ID] = stored
	return cloneRaffle(stored)
}

func (m *memStore) user(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.users[id]
	return &u
}

func (m *memStore) raffle(id string) *domain.Raffle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRaffle(m.raffles[id])
}

func cloneRaffle(r *domain.Raffle) *domain.Raffle {
	if r == nil {
		return nil
	}
	c := *r
	c.Participants = append([]domain.Participant(nil), r.Participants...)
	if r.WinnerID != nil {
		w := *r.WinnerID
		c.WinnerID = &w
	}
	if r.GoalMetAt != nil {
		t := *r.GoalMetAt
		c.GoalMetAt = &t
	}
	if r.ConfirmationDeadline != nil {
		t := *r.ConfirmationDeadline
		c.ConfirmationDeadline = &t
	}
	if r.SellerConfirmed != nil {
		b := *r.SellerConfirmed
		c.SellerConfirmed = &b
	}
	if r.OverflowSettledAt != nil {
		t := *r.OverflowSettledAt
		c.OverflowSettledAt = &t
	}
	return &c
}

type fakeRaffleRepo struct{ s *memStore }

func (f *fakeRaffleRepo) Create(_ context.Context, raffle *domain.Raffle) error {
	created := f.s.addRaffle(*raffle)
	*raffle = *created
	return nil
}

func (f *fakeRaffleRepo) Update(_ context.Context, raffle *domain.Raffle) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.raffles[raffle.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if f.s.failUpdates > 0 {
		f.s.failUpdates--
		return repository.ErrVersionConflict
	}
	if stored.Version != raffle.Version {
		return repository.ErrVersionConflict
	}
	raffle.Version++
	f.s.raffles[raffle.ID] = cloneRaffle(raffle)
	return nil
}

func (f *fakeRaffleRepo) GetByID(_ context.Context, id string) (*domain.Raffle, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.raffles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneRaffle(stored), nil
}

func (f *fakeRaffleRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Raffle, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRaffleRepo) List(_ context.Context, limit, offset int) ([]domain.Raffle, error) {
	return f.collect(func(*domain.Raffle) bool { return true }), nil
}

func (f *fakeRaffleRepo) ListBySeller(_ context.Context, sellerID string) ([]domain.Raffle, error) {
	return f.collect(func(r *domain.Raffle) bool { return r.SellerID == sellerID }), nil
}

func (f *fakeRaffleRepo) ListByBuyer(_ context.Context, buyerID string) ([]domain.Raffle, error) {
	return f.collect(func(r *domain.Raffle) bool { return r.ParticipantByUser(buyerID) != nil }), nil
}

func (f *fakeRaffleRepo) ListRandom(_ context.Context, size int) ([]domain.Raffle, error) {
	live := f.collect(func(r *domain.Raffle) bool { return r.Status == domain.RaffleStatusLive })
	if len(live) > size {
		live = live[:size]
	}
	return live, nil
}

func (f *fakeRaffleRepo) ListNeedingEvaluation(_ context.Context) ([]string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []string
	for id, r := range f.s.raffles {
		if !r.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeRaffleRepo) TicketsSoldBySeller(_ context.Context, sellerID string) (int64, error) {
	var total int64
	for _, r := range f.collect(func(r *domain.Raffle) bool { return r.SellerID == sellerID }) {
		total += r.TicketsSold
	}
	return total, nil
}

func (f *fakeRaffleRepo) collect(keep func(*domain.Raffle) bool) []domain.Raffle {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []string
	for id := range f.s.raffles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []domain.Raffle
	for _, id := range ids {
		if keep(f.s.raffles[id]) {
			out = append(out, *cloneRaffle(f.s.raffles[id]))
		}
	}
	return out
}

type fakeUserRepo struct{ s *memStore }

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	created := f.s.addUser(*user)
	*user = *created
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u := *stored
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) Debit(_ context.Context, userID string, amount int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.users[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if stored.TicketBalance < amount {
		return stored.TicketBalance, repository.ErrInsufficientFunds
	}
	stored.TicketBalance -= amount
	stored.TotalSpent += amount
	return stored.TicketBalance, nil
}

func (f *fakeUserRepo) Credit(_ context.Context, userID string, amount, revenueDelta int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.TicketBalance += amount
	stored.TotalRevenue += revenueDelta
	return nil
}

func (f *fakeUserRepo) Refund(_ context.Context, userID string, amount int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.TicketBalance += amount
	stored.TotalSpent -= amount
	return nil
}

type fakeHistoryRepo struct{ s *memStore }

func (f *fakeHistoryRepo) Append(_ context.Context, entry *domain.RaffleHistory) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	entry.ID = f.s.nextID("hist")
	f.s.history = append(f.s.history, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByRaffle(_ context.Context, raffleID string, limit, offset int) ([]domain.RaffleHistory, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []domain.RaffleHistory
	for i := len(f.s.history) - 1; i >= 0; i-- {
		if f.s.history[i].RaffleID == raffleID {
			out = append(out, f.s.history[i])
		}
	}
	return out, nil
}

type fakeUnitOfWork struct{ s *memStore }

// Do emulates transactional rollback by snapshotting and restoring the store
// when fn fails.
func (f *fakeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	snapRaffles, snapUsers, snapHistory := f.snapshot()
	err := fn(ctx, repository.Stores{
		Raffles: &fakeRaffleRepo{s: f.s},
		Users:   &fakeUserRepo{s: f.s},
		History: &fakeHistoryRepo{s: f.s},
	})
	if err != nil {
		f.s.mu.Lock()
		f.s.raffles = snapRaffles
		f.s.users = snapUsers
		f.s.history = snapHistory
		f.s.mu.Unlock()
	}
	return err
}

func (f *fakeUnitOfWork) snapshot() (map[string]*domain.Raffle, map[string]*domain.User, []domain.RaffleHistory) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	raffles := make(map[string]*domain.Raffle, len(f.s.raffles))
	for id, r := range f.s.raffles {
		raffles[id] = cloneRaffle(r)
	}
	users := make(map[string]*domain.User, len(f.s.users))
	for id, u := range f.s.users {
		c := *u
		users[id] = &c
	}
	history := append([]domain.RaffleHistory(nil), f.s.history...)
	return raffles, users, history
}
