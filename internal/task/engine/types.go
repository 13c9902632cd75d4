package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Config controls task execution.
type Config struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration // 0 = no timeout unless the task sets one
	MaxQueueDelay  time.Duration // 0 = never drop stale tasks
	HistorySize    int
	RetryMax       int
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	// OverlapSkipIfRunning rejects a task while a previous run sharing the
	// same RunState is queued or executing.
	OverlapSkipIfRunning
)

// TaskOptions tune one task. Zero values take the engine defaults;
// a negative RetryMax disables retries.
type TaskOptions struct {
	Overlap       OverlapPolicy
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64 // fraction of the delay, 0.2 = ±20%
}

// DefaultTaskOptions returns the options a task gets when it sets none.
func DefaultTaskOptions(cfg Config) TaskOptions {
	return TaskOptions{
		RetryMax:      cfg.RetryMax,
		RetryBase:     500 * time.Millisecond,
		RetryMaxDelay: 30 * time.Second,
		RetryJitter:   0.2,
	}
}

func (o TaskOptions) withDefaults(cfg Config) TaskOptions {
	def := DefaultTaskOptions(cfg)
	switch {
	case o.RetryMax < 0:
		o.RetryMax = 0
	case o.RetryMax == 0:
		o.RetryMax = def.RetryMax
	}
	if o.RetryBase <= 0 {
		o.RetryBase = def.RetryBase
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = def.RetryMaxDelay
	}
	if o.RetryMaxDelay < o.RetryBase {
		o.RetryMaxDelay = o.RetryBase
	}
	if o.RetryJitter <= 0 || o.RetryJitter > 1 {
		o.RetryJitter = def.RetryJitter
	}
	return o
}

// RunState is shared by every trigger of one schedule so overlap can be
// detected across runs.
type RunState struct {
	running atomic.Bool
}

func (r *RunState) tryAcquire() bool { return r.running.CompareAndSwap(false, true) }
func (r *RunState) release()         { r.running.Store(false) }

// Running reports whether a run is queued or executing.
func (r *RunState) Running() bool { return r.running.Load() }

type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
	Opt     TaskOptions
	State   *RunState
}

type HistoryItem struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// TaskEvent is the payload of task.* bus events.
type TaskEvent struct {
	ID       string
	Name     string
	Attempts int
	Duration time.Duration
	Error    string
}

type Snapshot struct {
	Workers        int           `json:"workers"`
	QueueLen       int           `json:"queue_len"`
	QueueCap       int           `json:"queue_cap"`
	Dropped        uint64        `json:"dropped"`
	DroppedStale   uint64        `json:"dropped_stale"`
	DefaultTimeout time.Duration `json:"default_timeout"`
	MaxQueueDelay  time.Duration `json:"max_queue_delay"`
	RetryMax       int           `json:"retry_max"`
	History        []HistoryItem `json:"history"`
}
