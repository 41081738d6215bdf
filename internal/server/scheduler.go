package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/skyfield-labs/terralens/internal/satellite"
	"github.com/skyfield-labs/terralens/internal/store"
)

// Scheduler walks the watchlists and fires pipeline runs for due entries.
// Scheduled runs carry no geographic hints; the planner works from its own
// knowledge of each ticker.
type Scheduler struct {
	Store    *store.Store
	Stop     chan struct{}
	Rdb      *redis.Client
	Runner   AnalysisRunner
	Index    *store.SummaryIndex
	Interval time.Duration
	LockTTL  time.Duration
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	interval := s.Interval
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	entries, err := s.Store.ListAllWatchlists(ctx)
	if err != nil {
		return
	}
	for _, entry := range entries {
		last, _ := s.Store.LatestRunTime(ctx, entry.Ticker)
		if !isDue(entry.ScheduleCron, last) {
			continue
		}

		// Distributed lock so only one instance fires this entry.
		// The lock is never deleted; it lapses with its TTL, which also
		// rate-limits retries after crashes mid-run.
		if s.Rdb != nil {
			ttl := s.LockTTL
			if ttl <= 0 {
				ttl = 2 * time.Minute
			}
			lockKey := "sched:lock:" + entry.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, uuid.NewString(), ttl).Result()
			if !ok {
				continue
			}
		}

		runID, err := s.Store.CreateRun(ctx, entry.Ticker, entry.Industry, store.RunStatusRunning)
		if err != nil {
			continue
		}

		go func(entry store.WatchlistEntry, runID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)

			summary, err := s.Runner.Run(ctx, entry.Ticker, entry.Industry,
				map[string][]satellite.Hint{}, map[string][]satellite.Hint{})
			if err != nil {
				_ = s.Store.FinishRun(ctx, runID, store.RunStatusFailed, strPtr(err.Error()))
				return
			}

			report := satellite.RenderReport(summary, time.Now().UTC().Format("2006-01-02"))
			rec := store.SummaryRecord{
				RunID:            runID,
				Ticker:           entry.Ticker,
				Industry:         entry.Industry,
				Headline:         summary.Headline,
				Bullets:          summary.Bullets,
				Confidence:       summary.Confidence,
				Attribution:      summary.Attribution,
				ObservationCount: summary.RawCounts["observations"],
				GapCount:         summary.RawCounts["gaps"],
				Report:           report,
			}
			id, err := s.Store.SaveSummary(ctx, rec)
			if err != nil {
				_ = s.Store.FinishRun(ctx, runID, store.RunStatusFailed, strPtr(err.Error()))
				return
			}
			rec.ID = id
			if s.Index != nil {
				if err := s.Index.Add(rec); err != nil && s.Logger != nil {
					s.Logger.Printf("summary index add: %v", err)
				}
			}

			status := store.RunStatusCompleted
			if !summary.Applicable() {
				status = store.RunStatusInapplicable
			}
			_ = s.Store.FinishRun(ctx, runID, status, nil)
		}(entry, runID)
	}
}

// isDue determines if a watchlist entry with cronSpec should run now based on
// the last run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			// If never run, due now
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}

func strPtr(s string) *string { return &s }
