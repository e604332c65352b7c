package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
)

// Cleaner removes finished tasks older than the retention window on the
// configured cron cadence.
type Cleaner struct {
	Store *store.Store
	Cfg   config.CleanupConfig
	Stop  chan struct{}

	logger  *log.Logger
	lastRun time.Time
}

func (cl *Cleaner) Start() {
	if cl.logger == nil {
		cl.logger = log.New(log.Writer(), "[CLEANER] ", log.LstdFlags)
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-cl.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				cl.tick(time.Now())
			}
		}
	}()
}

func (cl *Cleaner) tick(now time.Time) {
	if !isDue(cl.Cfg.CronSpec, cl.lastRun, now) {
		return
	}
	cl.lastRun = now
	cutoff := now.Add(-cl.Cfg.Retention)
	n, err := cl.Store.DeleteFinishedBefore(context.Background(), cutoff)
	if err != nil {
		cl.logger.Printf("sweep failed: %v", err)
		return
	}
	if n > 0 {
		telemetry.TasksSwept.Add(float64(n))
		cl.logger.Printf("swept %d finished tasks older than %s", n, cutoff.Format(time.RFC3339))
	}
}

// isDue reports whether the cron spec has a fire time between last and now.
// An unparsable spec falls back to hourly.
func isDue(cronSpec string, last, now time.Time) bool {
	if last.IsZero() {
		last = now.Add(-time.Minute)
	}
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return now.Sub(last) >= time.Hour
	}
	next := expr.Next(last)
	return !next.IsZero() && !next.After(now)
}
