package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	DefaultMaxMutateAttempts = 200
	baseRetryBackoff         = time.Millisecond
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

// withOptimisticRetry reruns fn while it reports ErrOptimisticLock, sleeping
// a jittered, growing backoff between attempts.
func withOptimisticRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if !errors.Is(err, ErrOptimisticLock) {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		backoff := time.Duration(rand.Int63n(int64(baseRetryBackoff << min(attempt, 5))))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("gave up after %d attempts: %w", attempts, ErrOptimisticLock)
}
