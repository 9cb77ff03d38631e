// Package scheduler drives the periodic aggregation runs. A lightweight
// cron tick fires every minute and starts a run when the next scheduled
// time-of-day has been reached; at most one run is ever in flight.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"lexwatch/monitor-service/internal/aggregator"
	"lexwatch/monitor-service/internal/model"
	"lexwatch/monitor-service/internal/report"
)

// State is the scheduler lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// EventChannel is the Redis channel notified after a run that found new
// publications. The external report collaborator subscribes to it.
const EventChannel = "publications:new"

// defaultLookback is the date window queried per run. Wider than one tick
// interval on purpose: the content-hash store makes re-fetching idempotent,
// and the overlap covers publications that land late at the source.
const defaultLookback = 7 * 24 * time.Hour

// RecordStore is the slice of the persistence layer the scheduler needs.
type RecordStore interface {
	Upsert(ctx context.Context, pub model.Publication) (inserted bool, err error)
	AppendRun(ctx context.Context, run model.SyncRun) error
}

// Publisher is the slice of the Redis client the scheduler needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Options configures a Scheduler.
type Options struct {
	Identities []model.TrackedIdentity
	Tribunals  []string
	Times      []string // "HH:MM" times-of-day, local time
	Lookback   time.Duration
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State           State
	LastRun         time.Time
	NextRun         time.Time
	RunsExecuted    int
	TotalNewRecords int
}

// Scheduler owns all mutable scheduling state: next-run time, counters, and
// the lifecycle state machine.
type Scheduler struct {
	cron  *cron.Cron
	agg   *aggregator.Aggregator
	store RecordStore
	pub   Publisher
	opts  Options
	now   func() time.Time // injectable for tests

	mu       sync.Mutex
	state    State
	nextRun  time.Time
	lastRun  time.Time
	runs     int
	totalNew int
	running  sync.WaitGroup
}

// New creates a Scheduler. It does not start ticking until Start.
func New(agg *aggregator.Aggregator, store RecordStore, pub Publisher, opts Options) *Scheduler {
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	times := append([]string(nil), opts.Times...)
	sort.Strings(times)
	opts.Times = times

	return &Scheduler{
		cron:  cron.New(cron.WithLogger(cron.DefaultLogger)),
		agg:   agg,
		store: store,
		pub:   pub,
		opts:  opts,
		now:   time.Now,
		state: StateIdle,
	}
}

// nextRunAfter returns the first configured time-of-day after now, rolling
// to tomorrow's first time when every configured time has passed today.
func nextRunAfter(now time.Time, times []string) time.Time {
	cur := now.Format("15:04")
	for _, t := range times {
		if t > cur {
			hh, mm := mustClock(t)
			return time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		}
	}
	hh, mm := mustClock(times[0])
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hh, mm, 0, 0, now.Location())
}

func mustClock(t string) (hh, mm int) {
	fmt.Sscanf(t, "%d:%d", &hh, &mm)
	return hh, mm
}

// Start registers the tick and starts the cron. The first run happens at
// the next configured time, not immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.nextRun = nextRunAfter(s.now(), s.opts.Times)
	next := s.nextRun
	s.mu.Unlock()

	_, err := s.cron.AddFunc("@every 1m", func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Started — next run at %s", next.Format("2006-01-02 15:04"))
	return nil
}

// tick checks whether the next scheduled run time has been reached and, if
// so, executes one cycle. A tick arriving while a run is in flight, or once
// shutdown has begun, is ignored.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.state != StateIdle || s.now().Before(s.nextRun) {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.running.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateIdle
		}
		s.nextRun = nextRunAfter(s.now(), s.opts.Times)
		next := s.nextRun
		s.mu.Unlock()
		s.running.Done()
		log.Printf("[scheduler] Next run at %s", next.Format("2006-01-02 15:04"))
	}()

	s.runCycle(ctx)
}

// runCycle aggregates once per tracked identity, persists new records,
// appends the run history and notifies the report collaborator.
func (s *Scheduler) runCycle(ctx context.Context) {
	started := s.now()
	to := started
	from := started.Add(-s.opts.Lookback)

	log.Printf("[scheduler] Sync cycle started — %d identities, %d tribunals",
		len(s.opts.Identities), len(s.opts.Tribunals))

	for _, identity := range s.opts.Identities {
		if ctx.Err() != nil {
			log.Println("[scheduler] Cycle interrupted by shutdown")
			return
		}
		s.runIdentity(ctx, identity, from, to, started)
	}

	log.Println("[scheduler] Sync cycle complete")
}

func (s *Scheduler) runIdentity(ctx context.Context, identity model.TrackedIdentity, from, to, started time.Time) {
	res, err := s.agg.Run(ctx, identity, s.opts.Tribunals, from, to)
	if err != nil {
		log.Printf("[scheduler] Aggregation aborted for %s: %v", identity, err)
		return
	}

	run := model.SyncRun{
		ID:                    uuid.NewString(),
		StartedAt:             started,
		SourcesQueried:        sourceNames(res),
		TotalFetched:          res.TotalFetched,
		CrossSourceDuplicates: res.CrossSourceDuplicates,
		Errors:                res.Errors,
	}

	var inserted []model.Publication
	for _, pub := range res.NewRecords {
		ok, err := s.store.Upsert(ctx, pub)
		if err != nil {
			// Storage failure on one record never aborts the batch.
			log.Printf("[scheduler] Upsert error for %s: %v — continuing", pub.ContentHash, err)
			run.Errors = append(run.Errors, fmt.Sprintf("store %s: %v", pub.ContentHash, err))
			continue
		}
		if ok {
			inserted = append(inserted, pub)
		}
	}

	run.NewRecords = len(inserted)
	run.FinishedAt = s.now()

	if err := s.store.AppendRun(ctx, run); err != nil {
		log.Printf("[scheduler] AppendRun error: %v", err)
	}

	s.mu.Lock()
	s.lastRun = run.FinishedAt
	s.runs++
	s.totalNew += len(inserted)
	s.mu.Unlock()

	log.Printf("[scheduler] %s — fetched=%d new=%d duplicates=%d errors=%d",
		identity, res.TotalFetched, len(inserted), res.CrossSourceDuplicates, len(run.Errors))

	if len(inserted) > 0 {
		s.notify(ctx, identity, run, inserted)
	}
}

// notify publishes the new-publication event and renders the Markdown
// report for the external collaborator.
func (s *Scheduler) notify(ctx context.Context, identity model.TrackedIdentity, run model.SyncRun, pubs []model.Publication) {
	text := report.Render(identity, run.FinishedAt.Format("02/01/2006"), pubs)

	payload, err := json.Marshal(map[string]any{
		"runId":      run.ID,
		"identity":   identity.String(),
		"newRecords": len(pubs),
		"report":     text,
	})
	if err != nil {
		log.Printf("[scheduler] Marshal event error: %v", err)
		return
	}

	if err := s.pub.Publish(ctx, EventChannel, payload).Err(); err != nil {
		log.Printf("[scheduler] Publish error: %v", err)
	}
}

func sourceNames(res *aggregator.Result) []string {
	names := make([]string, 0, len(res.PerSource))
	for name := range res.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a snapshot of the scheduler state and counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:           s.state,
		LastRun:         s.lastRun,
		NextRun:         s.nextRun,
		RunsExecuted:    s.runs,
		TotalNewRecords: s.totalNew,
	}
}

// Stop begins shutdown: no new run is started, the in-flight run (if any)
// is allowed to finish, then the tick timer halts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.running.Wait()
	<-s.cron.Stop().Done()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	log.Println("[scheduler] Stopped")
}
