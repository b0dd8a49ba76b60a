package classifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/JaimeStill/verdict/internal/store"
)

// WithRateLimit waits on limiter before every call. A wait cut short by the
// item deadline is a transient failure.
func WithRateLimit(limiter *rate.Limiter) Middleware {
	return func(next Classifier) Classifier {
		return Func(func(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
			if err := limiter.Wait(ctx); err != nil {
				return Verdict{}, Usage{}, NewTransient(err)
			}
			return next.Classify(ctx, item, cfg)
		})
	}
}

// PerMinute builds a limiter allowing n calls per minute with a burst of one.
func PerMinute(n int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// WithRetry retries transient failures up to maxAttempts calls in total,
// sleeping backoff, 2*backoff, ... between attempts. Permanent failures and
// an expired context return immediately. Usage.Elapsed covers all attempts.
func WithRetry(maxAttempts int, backoff time.Duration, logger *slog.Logger) Middleware {
	return func(next Classifier) Classifier {
		if maxAttempts <= 1 {
			return next
		}
		return Func(func(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
			var (
				v     Verdict
				usage Usage
				err   error
				total time.Duration
			)

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				v, usage, err = next.Classify(ctx, item, cfg)
				total += usage.Elapsed
				if err == nil || CategoryOf(err) != Transient || attempt == maxAttempts {
					break
				}

				logger.DebugContext(ctx, "retrying classification",
					"record_id", item.RecordID, "attempt", attempt, "error", err)

				timer := time.NewTimer(backoff * time.Duration(attempt))
				select {
				case <-ctx.Done():
					timer.Stop()
					usage.Elapsed = total
					return v, usage, err
				case <-timer.C:
				}
			}

			usage.Elapsed = total
			return v, usage, err
		})
	}
}
