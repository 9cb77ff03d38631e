// Package source implements the adapters that query external judicial
// publication APIs and normalise their results into the common record shape.
package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lexwatch/monitor-service/internal/model"
)

const maxRetries = 2

// retryBaseWait is a variable so tests can shorten the backoff.
var retryBaseWait = 2 * time.Second

// Filter narrows a query to one tracked identity, tribunal and date range.
type Filter struct {
	Identity model.TrackedIdentity
	Tribunal string
	From     time.Time
	To       time.Time
}

// PageResult is one page of normalised records from a source.
type PageResult struct {
	Items      []model.Publication
	TotalCount int
	HasMore    bool
}

// Adapter queries one external source. Page numbering starts at 1.
type Adapter interface {
	Name() string
	Query(ctx context.Context, f Filter, page int) (*PageResult, error)
}

// RateLimitError signals an HTTP 429 from a source. Adapters never retry it
// within a cycle; the caller reports it to the rate limiter and defers the
// query to the next scheduled run.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration // zero when the source gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Source)
}

// queryWithRetry runs fn up to maxRetries+1 times with exponential backoff
// between attempts. Rate-limit signals and context cancellation are returned
// immediately; only transient network/server errors are retried.
func queryWithRetry(ctx context.Context, name string, fn func() (*PageResult, error)) (*PageResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait << (attempt - 1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		var rle *RateLimitError
		if errors.As(err, &rle) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		log.Printf("[%s] Attempt %d failed: %v", name, attempt+1, err)
	}
	return nil, fmt.Errorf("%s query after %d attempts: %w", name, maxRetries+1, lastErr)
}
