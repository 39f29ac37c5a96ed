package llm

import (
	"context"
	"time"

	"offgrid-chat/internal/logger"

	"github.com/sirupsen/logrus"
)

// Retryer re-runs a provider call a fixed number of times with a fixed
// delay between attempts. It never retries failures that cannot succeed
// on a second try, such as a missing credential.
type Retryer struct {
	MaxRetries int
	Delay      time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer builds a Retryer from the configured retry budget.
func NewRetryer(maxRetries int, delay time.Duration) *Retryer {
	return &Retryer{
		MaxRetries: maxRetries,
		Delay:      delay,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether a failed attempt is worth repeating.
func retryable(err error) bool {
	switch KindOf(err) {
	case ErrMissingCredential, ErrEmptyInput:
		return false
	}
	return true
}

// Do runs call until it succeeds, fails terminally, or the retry budget
// is spent. With MaxRetries retries the call runs at most MaxRetries+1
// times. Exhaustion yields a RetriesError wrapping the last failure.
func (r *Retryer) Do(ctx context.Context, provider string, call func(ctx context.Context) (string, error)) (string, error) {
	attempts := r.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return "", err
		}

		logger.Log.WithFields(logrus.Fields{
			"provider": provider,
			"attempt":  attempt,
			"attempts": attempts,
		}).WithError(err).Warn("Provider call failed")

		if attempt < attempts {
			if sleepErr := r.sleep(ctx, r.Delay); sleepErr != nil {
				return "", sleepErr
			}
		}
	}

	return "", &RetriesError{Provider: provider, Attempts: attempts, Cause: lastErr}
}
