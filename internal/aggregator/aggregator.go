// Package aggregator fans queries out across sources and tribunals and
// merges the results into one deduplicated record set.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lexwatch/monitor-service/internal/model"
	"lexwatch/monitor-service/internal/ratelimit"
	"lexwatch/monitor-service/internal/source"
)

// maxPagesPerQuery bounds how deep one source × tribunal query paginates in
// a single run; anything beyond is picked up by the next scheduled run.
const maxPagesPerQuery = 10

// SourceStats summarises one adapter's contribution to a run.
type SourceStats struct {
	Fetched int
	Errors  int
}

// Result is the merged output of one aggregation run.
type Result struct {
	NewRecords            []model.Publication
	TotalFetched          int
	PerSource             map[string]SourceStats
	CrossSourceDuplicates int
	FilteredOut           int
	Errors                []string
}

// Aggregator executes adapter queries sequentially, in priority order, under
// a shared rate limiter.
type Aggregator struct {
	sources []source.Adapter // priority order: first source wins on duplicate hashes
	limiter *ratelimit.Limiter
}

// New creates an Aggregator over the given adapters.
func New(limiter *ratelimit.Limiter, sources ...source.Adapter) *Aggregator {
	return &Aggregator{sources: sources, limiter: limiter}
}

// Run queries every source for every tribunal, merges by content hash and
// post-filters by the tracked identity. Per-query failures are collected and
// do not abort the run; cancellation is checked between queries.
func (a *Aggregator) Run(ctx context.Context, identity model.TrackedIdentity, tribunals []string, from, to time.Time) (*Result, error) {
	res := &Result{PerSource: make(map[string]SourceStats)}
	seen := make(map[string]struct{})

	for _, src := range a.sources {
		for _, tribunal := range tribunals {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if a.limiter.InBackoff(src.Name()) {
				res.Errors = append(res.Errors,
					fmt.Sprintf("%s/%s: deferred, source in backoff", src.Name(), tribunal))
				continue
			}

			flt := source.Filter{Identity: identity, Tribunal: tribunal, From: from, To: to}
			if err := a.collect(ctx, src, flt, seen, res); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return res, err
				}
				st := res.PerSource[src.Name()]
				st.Errors++
				res.PerSource[src.Name()] = st
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", src.Name(), tribunal, err))
				log.Printf("[aggregator] Error querying %s/%s: %v — continuing", src.Name(), tribunal, err)
			}
		}
	}

	return res, nil
}

// collect pages through one source × tribunal query, merging new records.
func (a *Aggregator) collect(ctx context.Context, src source.Adapter, flt source.Filter, seen map[string]struct{}, res *Result) error {
	for page := 1; page <= maxPagesPerQuery; page++ {
		if err := a.limiter.Acquire(ctx, src.Name()); err != nil {
			return err
		}
		pr, err := src.Query(ctx, flt, page)
		a.limiter.Release(src.Name())
		if err != nil {
			var rle *source.RateLimitError
			if errors.As(err, &rle) {
				a.limiter.Backoff(src.Name(), rle.RetryAfter)
			}
			return err
		}

		st := res.PerSource[src.Name()]
		st.Fetched += len(pr.Items)
		res.PerSource[src.Name()] = st
		res.TotalFetched += len(pr.Items)

		for _, pub := range pr.Items {
			// The tracked registration and its state must both appear among
			// the record's recipients, even for sources that filter
			// server-side.
			if !flt.Identity.Matches(pub.Recipients) {
				res.FilteredOut++
				continue
			}
			if _, dup := seen[pub.ContentHash]; dup {
				res.CrossSourceDuplicates++
				continue
			}
			seen[pub.ContentHash] = struct{}{}
			res.NewRecords = append(res.NewRecords, pub)
		}

		if !pr.HasMore {
			break
		}
	}
	return nil
}
