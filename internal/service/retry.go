package service

import (
	"context"
	"errors"

	"github.com/spec-kit/raffle-service/internal/repository"
	apperrors "github.com/spec-kit/raffle-service/pkg/util"
)

const defaultWriteAttempts = 5

// withWriteRetry re-runs fn while it loses the version race on a raffle row.
// Each attempt re-reads state inside a fresh transaction, so a retry observes
// the writer that beat it.
func withWriteRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultWriteAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return apperrors.NewConflict("raffle is being updated concurrently, please retry", map[string]interface{}{
		"attempts": attempts,
	})
}
