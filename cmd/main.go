// lexwatch-monitor-service
//
// Polls judicial-communication APIs (DJEN Comunica feed, DataJud index) for
// tracked OAB registrations, deduplicates publications by content hash into
// PostgreSQL, and notifies the report collaborator over Redis. Deadline
// computation is exposed as a library (internal/deadline) to external
// callers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexwatch/monitor-service/internal/aggregator"
	"lexwatch/monitor-service/internal/calendar"
	"lexwatch/monitor-service/internal/config"
	"lexwatch/monitor-service/internal/db"
	"lexwatch/monitor-service/internal/deadline"
	"lexwatch/monitor-service/internal/model"
	"lexwatch/monitor-service/internal/ratelimit"
	"lexwatch/monitor-service/internal/scheduler"
	"lexwatch/monitor-service/internal/source"
	"lexwatch/monitor-service/internal/store"
)

const version = "1.0.0"

// API budget per source, matching the publication feed's published limits.
const (
	requestsPerMinute  = 20
	concurrentRequests = 5
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[monitor-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Calendar ─────────────────────────────────────────────────────────────
	var cal *calendar.Calendar
	if cfg.CalendarPath != "" {
		cal, err = calendar.Load(cfg.CalendarPath)
	} else {
		cal, err = calendar.Default()
	}
	if err != nil {
		log.Fatalf("[monitor-service] Calendar: %v", err)
	}
	log.Println("[monitor-service] Calendar loaded ✓")

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[monitor-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[monitor-service] PostgreSQL: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("[monitor-service] Schema: %v", err)
	}
	log.Println("[monitor-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[monitor-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[monitor-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[monitor-service] Redis connected ✓")

	// ── Sources, aggregator, scheduler ───────────────────────────────────────
	limiter := ratelimit.New(requestsPerMinute, concurrentRequests)

	sources := []source.Adapter{source.NewDJENFetcher(cfg.DJENBaseURL)}
	if cfg.DataJudAPIKey != "" {
		sources = append(sources, source.NewDataJudFetcher(cfg.DataJudBaseURL, cfg.DataJudAPIKey))
	} else {
		log.Println("[monitor-service] DATAJUD_API_KEY not set — DataJud source disabled")
	}

	agg := aggregator.New(limiter, sources...)
	sched := scheduler.New(agg, st, rdb, scheduler.Options{
		Identities: cfg.Identities,
		Tribunals:  cfg.Tribunals,
		Times:      cfg.ScheduleTimes,
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[monitor-service] Scheduler: %v", err)
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sched.Status())
	})
	mux.HandleFunc("/deadlines", deadlinesHandler(cal))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[monitor-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[monitor-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[monitor-service] Shutting down…")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[monitor-service] Shutdown error: %v", err)
	}
	log.Println("[monitor-service] Stopped.")
}

// deadlinesHandler computes the standard statutory deadlines from a
// publication date: GET /deadlines?start=2025-01-15&tribunal=TJSP.
// Configuration errors (bad date, unknown tribunal) are returned explicitly.
func deadlinesHandler(cal *calendar.Calendar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid start date: %v", err), http.StatusBadRequest)
			return
		}
		tribunal := r.URL.Query().Get("tribunal")
		if tribunal == "" {
			tribunal = model.ScopeNational
		}

		results, err := deadline.ComputeCommon(cal, start, tribunal)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "monitor-service",
		"version": version,
	})
}
