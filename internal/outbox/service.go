package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var (
	ErrQueueFull  = errors.New("outbox queue full")
	ErrStopped    = errors.New("outbox stopped")
	ErrSuppressed = errors.New("outbox: suppressed by dedup")
)

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	sender  transport.Sender
	bus     eventbus.Publisher
	dedup   storage.DedupStore
	tracker Tracker
	now     func() time.Time

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	inflight  sync.WaitGroup
	shards    []chan Envelope
	sup       *rtsup.Supervisor
}

func New(cfg Config, sender transport.Sender, log logx.Logger, bus eventbus.Publisher, dedup storage.DedupStore) *Service {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{
		sender: sender,
		log:    log.Component("outbox"),
		bus:    bus,
		dedup:  dedup,
		now:    time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// SetTracker wires the lifecycle tracker. Call before Start.
func (s *Service) SetTracker(t Tracker) {
	s.mu.Lock()
	s.tracker = t
	s.mu.Unlock()
}

// Apply swaps rate and retry settings. Worker and queue sizes take
// effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 25
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Burst equals the per-second rate so short spikes pass.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shards != nil {
		return
	}
	per := max(1, s.cfg.QueueSize/s.cfg.Workers)
	s.shards = make([]chan Envelope, s.cfg.Workers)
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	for i := range s.shards {
		q := make(chan Envelope, per)
		s.shards[i] = q
		s.sup.GoRestart(fmt.Sprintf("outbox.worker.%d", i), func(c context.Context) error {
			return s.workerLoop(c, q)
		}, rtsup.WithPublishFirstError(true))
	}
	s.accepting = true
}

// Stop refuses new envelopes and drains the queues until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.shards == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	shards, sup := s.shards, s.sup
	s.shards, s.sup = nil, nil
	s.mu.Unlock()

	s.inflight.Wait()
	for _, q := range shards {
		close(q)
	}
	if err := sup.Wait(ctx); err != nil && ctx.Err() != nil {
		sup.Cancel()
		s.log.Warn("outbox stop timed out; pending messages dropped")
	}
}

// Supervisor exposes worker health; nil when stopped.
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// shardFor keeps every chat on one worker so its messages stay ordered.
func shardFor(chatID int64, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(chatID, 10)))
	return int(h.Sum32() % uint32(n))
}

// Enqueue queues env for asynchronous delivery.
func (s *Service) Enqueue(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.shards[shardFor(env.Target.ChatID, len(s.shards))]
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	if s.Suppressed(ctx, env.DedupKey) {
		s.publish(eventbus.OutboxDeduped, env, nil)
		return nil
	}
	select {
	case q <- env:
		return nil
	default:
		s.publish(eventbus.OutboxDropped, env, ErrQueueFull)
		return ErrQueueFull
	}
}

// Send delivers env now, without retry. It returns ErrSuppressed when
// the dedup key is still active.
func (s *Service) Send(ctx context.Context, env Envelope) (transport.MessageRef, error) {
	if s.Suppressed(ctx, env.DedupKey) {
		s.publish(eventbus.OutboxDeduped, env, nil)
		return transport.MessageRef{}, ErrSuppressed
	}
	return s.attempt(ctx, env)
}

// Suppressed reports whether key is inside its dedup window.
func (s *Service) Suppressed(ctx context.Context, key string) bool {
	if key == "" || s.dedup == nil {
		return false
	}
	until, ok, err := s.dedup.GetDedup(ctx, key)
	if err != nil {
		s.log.Debug("dedup lookup failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return ok && s.now().Before(until)
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-q:
			if !ok {
				return nil
			}
			s.sendWithRetry(ctx, env)
		}
	}
}

func (s *Service) snapshot() (Config, *rate.Limiter, Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter, s.tracker
}

// attempt makes one rate-limited, bounded send and runs the
// post-send bookkeeping on success.
func (s *Service) attempt(ctx context.Context, env Envelope) (transport.MessageRef, error) {
	cfg, lim, tracker := s.snapshot()
	if err := lim.Wait(ctx); err != nil {
		return transport.MessageRef{}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	ref, err := s.sender.SendText(callCtx, env.Target, env.Text, env.Opt)
	cancel()
	if err != nil {
		return ref, err
	}
	if env.DedupKey != "" && env.DedupFor > 0 && s.dedup != nil {
		if err := s.dedup.PutDedup(ctx, env.DedupKey, s.now().Add(env.DedupFor)); err != nil {
			s.log.Warn("dedup write failed", logx.String("key", env.DedupKey), logx.Err(err))
		}
	}
	if !env.Preserve && tracker != nil && !ref.IsZero() {
		tracker.Track(ref)
	}
	s.publish(eventbus.OutboxSent, env, nil)
	return ref, nil
}

func (s *Service) sendWithRetry(ctx context.Context, env Envelope) {
	cfg, _, _ := s.snapshot()
	attempts := 1 + cfg.RetryMax
	var lastErr error
	for n := 1; n <= attempts; n++ {
		_, err := s.attempt(ctx, env)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		lastErr = err
		s.log.Debug("send failed", logx.Int64("chat", env.Target.ChatID), logx.Int("attempt", n), logx.Int("max", attempts), logx.Err(err))
		if n == attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, n))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	s.log.Warn("send gave up", logx.Int64("chat", env.Target.ChatID), logx.Int("attempts", attempts), logx.Err(lastErr))
	s.publish(eventbus.OutboxFailed, env, lastErr)
}

func (s *Service) publish(typ string, env Envelope, err error) {
	ev := Event{ChatID: env.Target.ChatID, Key: env.DedupKey}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

// retryDelay is the wait before attempt+1: exponential from RetryBase,
// capped at RetryMaxDelay, with 0.7-1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
