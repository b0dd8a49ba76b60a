// Package classifier turns one input record into a structured verdict through
// an external model. The run engine treats it as opaque: every error returned
// here is recorded against the item, never raised past the item.
package classifier

import (
	"context"

	"github.com/JaimeStill/verdict/internal/store"
)

// Classifier classifies a single record under a run's configuration snapshot.
type Classifier interface {
	Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
	return f(ctx, item, cfg)
}

// Provider is a Classifier that holds client resources.
type Provider interface {
	Classifier
	Name() string
	Close() error
}

// Middleware wraps a Classifier with additional behavior.
type Middleware func(Classifier) Classifier

// Chain applies middleware so the first listed is outermost.
func Chain(c Classifier, mw ...Middleware) Classifier {
	for i := len(mw) - 1; i >= 0; i-- {
		c = mw[i](c)
	}
	return c
}
