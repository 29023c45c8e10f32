// Package reaper deletes rooms that saw no activity for the retention window.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/whiteboard-service/pkg/logger"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = 24 * time.Hour
)

// Pruner is the part of drawlog.Store the reaper needs.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Reaper struct {
	store     Pruner
	log       *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func New(store Pruner, log *slog.Logger, cfg Config) *Reaper {
	r := &Reaper{
		store:     store,
		log:       logger.Component(log, "reaper"),
		interval:  cfg.Interval,
		retention: cfg.Retention,
		now:       cfg.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.retention <= 0 {
		r.retention = DefaultRetention
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunOnce deletes every room idle for longer than the retention window and
// reports how many went. A panic inside the store is turned into an error.
func (r *Reaper) RunOnce(ctx context.Context) (n int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reaper panic: %v", p)
		}
	}()

	cutoff := r.now().Add(-r.retention)
	n, err = r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete rooms idle since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

// Run reaps every interval until ctx is done. A failed run is logged and the
// next one goes ahead as scheduled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reaper started",
		slog.Duration("interval", r.interval), slog.Duration("retention", r.retention))
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("context done, reaper stopping")
			return nil
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Error("reap failed", logger.Err(err))
				continue
			}
			if n > 0 {
				r.log.Info("cleaned up old rooms", slog.Int64("deleted", n))
			}
		}
	}
}
