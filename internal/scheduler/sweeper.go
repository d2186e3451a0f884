package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/domain"
	"github.com/spec-kit/raffle-service/internal/events"
	"github.com/spec-kit/raffle-service/internal/observability"
	"github.com/spec-kit/raffle-service/internal/repository"
	"github.com/spec-kit/raffle-service/internal/service"
)

const sweepLockKey = "raffle:sweep:lock"

// Sweeper periodically re-evaluates every non-terminal raffle so that expired
// grace windows and passed deadlines resolve without any user request. A
// Redis lock keeps concurrent replicas from sweeping at the same time.
type Sweeper struct {
	uow       repository.UnitOfWork
	raffles   repository.RaffleRepository
	lifecycle *service.LifecycleService
	clock     clock.Clock
	redis     *redis.Client
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	lockTTL   time.Duration
}

// Dependencies wires the collaborators a Sweeper needs. Redis is optional;
// without it the sweep runs unlocked, which is fine for a single replica.
type Dependencies struct {
	UnitOfWork repository.UnitOfWork
	Raffles    repository.RaffleRepository
	Lifecycle  *service.LifecycleService
	Clock      clock.Clock
	Redis      *redis.Client
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Interval   time.Duration
	LockTTL    time.Duration
}

func NewSweeper(deps Dependencies) *Sweeper {
	if deps.Interval <= 0 {
		deps.Interval = time.Hour
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 5 * time.Minute
	}
	return &Sweeper{
		uow:       deps.UnitOfWork,
		raffles:   deps.Raffles,
		lifecycle: deps.Lifecycle,
		clock:     deps.Clock,
		redis:     deps.Redis,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		interval:  deps.Interval,
		lockTTL:   deps.LockTTL,
	}
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Scanned     int
	Transitions int
	Failed      int
	Skipped     bool
}

// RunOnce performs a single sweep. Raffles are processed independently: a
// failure on one is logged and does not stop the rest.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	acquired, release, err := s.acquireLock(ctx)
	if err != nil {
		return res, err
	}
	if !acquired {
		res.Skipped = true
		s.logger.Debug("sweep lock held elsewhere, skipping")
		return res, nil
	}
	defer release()

	ids, err := s.raffles.ListNeedingEvaluation(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned = len(ids)

	for _, id := range ids {
		changed, err := s.sweepOne(ctx, id)
		if err != nil {
			res.Failed++
			s.logger.Error("sweep failed for raffle", zap.String("raffle_id", id), zap.Error(err))
			continue
		}
		if changed {
			res.Transitions++
		}
	}
	if s.metrics != nil {
		s.metrics.RecordSweep(res.Failed > 0)
	}

	s.logger.Info("sweep completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("transitions", res.Transitions),
		zap.Int("failed", res.Failed))
	return res, nil
}

// sweepOne re-evaluates a single raffle under its row lock.
func (s *Sweeper) sweepOne(ctx context.Context, raffleID string) (bool, error) {
	now := s.clock.Now()
	var changed bool
	var from, to domain.RaffleStatus
	var pending []events.Event

	err := s.uow.Do(ctx, func(ctx context.Context, st repository.Stores) error {
		raffle, err := st.Raffles.GetByIDForUpdate(ctx, raffleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		res, err := s.lifecycle.Advance(ctx, st, raffle, now, domain.HistoryActorScheduler, nil, false)
		if err != nil {
			return err
		}
		changed = res.Outcome.Changed
		from, to = res.Outcome.From, res.Outcome.To
		pending = append(pending, res.Events...)
		return nil
	})
	if err != nil {
		return false, err
	}
	if s.metrics != nil && to != from {
		s.metrics.RecordTransition(string(from), string(to))
	}

	s.lifecycle.PublishAll(ctx, pending)
	return changed, nil
}

// RunForever sweeps on the configured interval until the context is done.
// An immediate pass runs on startup so pending transitions are not delayed by
// a full interval after a restart.
func (s *Sweeper) RunForever(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("startup sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// acquireLock takes the cluster-wide sweep lock. Returns a release func that
// deletes the key; the TTL bounds a crashed holder.
func (s *Sweeper) acquireLock(ctx context.Context) (bool, func(), error) {
	if s.redis == nil {
		return true, func() {}, nil
	}
	ok, err := s.redis.SetNX(ctx, sweepLockKey, s.clock.Now().Format(time.RFC3339), s.lockTTL).Result()
	if err != nil {
		// Redis being down should not stop lifecycle progress on a single
		// replica; sweep unlocked and let row locks arbitrate.
		s.logger.Warn("sweep lock unavailable, proceeding without it", zap.Error(err))
		return true, func() {}, nil
	}
	if !ok {
		return false, nil, nil
	}
	return true, func() {
		if err := s.redis.Del(context.Background(), sweepLockKey).Err(); err != nil {
			s.logger.Warn("failed to release sweep lock", zap.Error(err))
		}
	}, nil
}
