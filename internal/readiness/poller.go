package readiness

import (
	"context"
	"strings"
	"time"

	"go.uber.org/ratelimit"
)

// Check reports whether the awaited condition holds.
// It must not have side effects that matter to the poller.
type Check func(ctx context.Context) bool

// Await calls check up to maxAttempts times, waiting interval between the calls,
// and returns true as soon as check does. Exhaustion of attempts or context cancellation
// results in false, it is up to the caller to decide whether it is fatal.
func Await(ctx context.Context, check Check, interval time.Duration, maxAttempts int) bool {
	rl := newLimiter(interval)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// The first Take returns immediately, the following ones block for interval.
		rl.Take()

		if ctx.Err() != nil {
			return false
		}

		if check(ctx) {
			return true
		}
	}

	return false
}

// ContainsMarker returns a Check that fetches text (usually container logs)
// and looks for the marker in it. Fetch errors are reported to onErr and count as a failed attempt.
func ContainsMarker(fetch func(ctx context.Context) (string, error), marker string, onErr func(error)) Check {
	return func(ctx context.Context) bool {
		text, err := fetch(ctx)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}

			return false
		}

		return marker != "" && strings.Contains(text, marker)
	}
}

func newLimiter(interval time.Duration) ratelimit.Limiter {
	if interval <= 0 {
		return ratelimit.NewUnlimited()
	}

	return ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)
}
