// Package retention prunes delivered reminders once they are old enough
// that nobody will reply "done" or "reschedule" to them.
package retention

import (
	"context"
	"fmt"
	"time"

	logx "remindbot/pkg/logx"
)

const DefaultKeep = 7 * 24 * time.Hour

type Store interface {
	CleanupSent(ctx context.Context, cutoff time.Time) (int, error)
}

type Job struct {
	store Store
	keep  time.Duration
	now   func() time.Time
	log   logx.Logger
}

func New(store Store, keep time.Duration, now func() time.Time, log logx.Logger) *Job {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if now == nil {
		now = time.Now
	}
	return &Job{store: store, keep: keep, now: now, log: log}
}

// Run deletes sent reminders scheduled more than keep ago.
func (j *Job) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.keep)
	n, err := j.store.CleanupSent(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup sent reminders: %w", err)
	}
	j.log.Info("retention sweep", logx.Int("deleted", n), logx.Time("cutoff", cutoff))
	return nil
}
