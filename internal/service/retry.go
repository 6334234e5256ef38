package service

import (
	"context"
	"time"

	"backend/pkg/apperr"

	"go.uber.org/zap"
)

const (
	maxConflictRetries  = 3
	conflictBackoffBase = 50 * time.Millisecond
)

// runWithConflictRetry executes fn, retrying a bounded number of times with
// linear backoff when the failure is a lost concurrency race. Validation and
// state errors are surfaced immediately; retrying them cannot change the
// outcome.
func runWithConflictRetry(ctx context.Context, logger *zap.Logger, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = apperr.ClassifyPg(fn())
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		if attempt == maxConflictRetries {
			break
		}
		logger.Warn("retrying after concurrency conflict",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(time.Duration(attempt) * conflictBackoffBase):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
