// backend/src/promotion/retry.go
package promotion

import (
	"context"
	"math/rand"
	"time"

	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
)

// DefaultMaxRetries is the number of retries beyond the initial attempt.
// The bounded count is the correctness mechanism; the jitter only
// desynchronizes clients that keep colliding.
const DefaultMaxRetries = 3

// DefaultJitter is the upper bound of the randomized delay between attempts.
const DefaultJitter = 250 * time.Millisecond

// Promoter is the repository surface the retry loop drives.
type Promoter interface {
	Promote(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error)
	GetByID(ctx context.Context, userID, id string) (models.StagedRecord, error)
}

// Runner drives a promotion attempt through the version-conflict retry loop.
// Only version conflicts are retried; every other error kind is terminal and
// propagates to the caller untouched.
type Runner struct {
	repo       Promoter
	maxRetries int
	jitter     time.Duration
	sleep      func(time.Duration)
}

type Option func(*Runner)

func WithMaxRetries(n int) Option {
	return func(r *Runner) { r.maxRetries = n }
}

func WithJitter(d time.Duration) Option {
	return func(r *Runner) { r.jitter = d }
}

// withSleep replaces the delay function; tests use it to run instantly.
func withSleep(fn func(time.Duration)) Option {
	return func(r *Runner) { r.sleep = fn }
}

func NewRunner(repo Promoter, opts ...Option) *Runner {
	r := &Runner{
		repo:       repo,
		maxRetries: DefaultMaxRetries,
		jitter:     DefaultJitter,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run attempts the promotion with the best known version. On a version
// conflict it re-fetches the record for the authoritative current version
// and retries, up to maxRetries times beyond the initial attempt. If the
// re-fetch itself fails, the loop aborts with the original conflict error so
// a fetch failure is never masked as something else.
func (r *Runner) Run(ctx context.Context, userID string, in models.PromoteStagedRecordInput) (models.PromotionResult, error) {
	// Pull-before-promote: attempting with an unknown or non-positive
	// version would only guarantee a conflict, so read first.
	if in.ExpectedVersion == nil || *in.ExpectedVersion <= 0 {
		rec, err := r.repo.GetByID(ctx, userID, in.RecordID)
		if err != nil {
			return models.PromotionResult{}, err
		}
		in.ExpectedVersion = &rec.Version
	}

	for attempt := 0; ; attempt++ {
		result, err := r.repo.Promote(ctx, userID, in)
		if err == nil {
			return result, nil
		}

		conflict, ok := models.AsVersionConflict(err)
		if !ok {
			return models.PromotionResult{}, err
		}
		if attempt == r.maxRetries {
			logger.L.Warn("Promotion retries exhausted",
				"recordID", in.RecordID, "attempts", attempt+1,
				"expected", conflict.Expected, "found", conflict.Found)
			return models.PromotionResult{}, err
		}

		rec, fetchErr := r.repo.GetByID(ctx, userID, in.RecordID)
		if fetchErr != nil {
			// Surface the conflict, not the fetch failure.
			logger.L.Warn("Version re-fetch failed during promotion retry",
				"recordID", in.RecordID, "error", fetchErr)
			return models.PromotionResult{}, err
		}
		in.ExpectedVersion = &rec.Version

		if r.jitter > 0 {
			delay := time.Duration(rand.Int63n(int64(r.jitter)))
			r.sleep(delay)
		}
	}
}
