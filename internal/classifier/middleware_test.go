package classifier_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// failing fails the first n calls with err, then succeeds.
func failing(n int32, err error, calls *atomic.Int32) classifier.Classifier {
	return classifier.Func(func(ctx context.Context, item store.InputRecord, cfg classifier.Config) (classifier.Verdict, classifier.Usage, error) {
		c := calls.Add(1)
		usage := classifier.Usage{Elapsed: time.Millisecond}
		if c <= n {
			return classifier.Verdict{}, usage, err
		}
		return classifier.Verdict{Detected: true, Label: "true"}, usage, nil
	})
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		err       error
		attempts  int
		wantCalls int32
		wantErr   bool
	}{
		{"succeeds after transient", 2, classifier.NewTransient(errors.New("503")), 3, 3, false},
		{"gives up after max attempts", 5, classifier.NewTransient(errors.New("503")), 3, 3, true},
		{"permanent is not retried", 5, classifier.NewPermanent(errors.New("400")), 3, 1, true},
		{"uncategorized is retried", 1, errors.New("reset"), 2, 2, false},
		{"single attempt disables retry", 1, classifier.NewTransient(errors.New("503")), 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := classifier.WithRetry(tt.attempts, time.Millisecond, discard)(failing(tt.failures, tt.err, &calls))

			v, usage, err := c.Classify(context.Background(), record(), classifier.Config{})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, v.Detected)
			assert.Equal(t, time.Duration(tt.wantCalls)*time.Millisecond, usage.Elapsed)
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	c := classifier.WithRetry(10, time.Hour, discard)(failing(100, classifier.NewTransient(errors.New("503")), &calls))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Classify(ctx, record(), classifier.Config{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithRateLimit(t *testing.T) {
	var calls atomic.Int32
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := classifier.WithRateLimit(limiter)(failing(0, nil, &calls))

	_, _, err := c.Classify(context.Background(), record(), classifier.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err = c.Classify(ctx, record(), classifier.Config{})
	require.Error(t, err)
	assert.Equal(t, classifier.Transient, classifier.CategoryOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrapOrdersRetryOutsideLimiter(t *testing.T) {
	var calls atomic.Int32
	c := classifier.Wrap(
		failing(1, classifier.NewTransient(errors.New("429")), &calls),
		classifier.Options{MaxAttempts: 2, RetryBackoff: time.Millisecond, RatePerMinute: 60000},
		discard,
	)

	_, _, err := c.Classify(context.Background(), record(), classifier.Config{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
