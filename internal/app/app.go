package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/datetime"
	"remindbot/internal/delivery"
	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	"remindbot/internal/lifecycle"
	"remindbot/internal/observability/admin"
	"remindbot/internal/observability/metrics"
	"remindbot/internal/outbox"
	"remindbot/internal/renewal"
	"remindbot/internal/retention"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/session"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

// Scheduled job names.
const (
	jobDelivery  = "reminders.delivery"
	jobRenewal   = "reminders.renewal"
	jobSweep     = "messages.sweep"
	jobRetention = "reminders.retention"
)

const (
	renewalTimeout   = 2 * time.Minute
	sweepTimeout     = 30 * time.Second
	retentionTimeout = time.Minute
)

type App struct {
	cfgm     *config.ConfigManager
	settings config.Settings
	sup      *rtsup.Supervisor

	root  logx.Logger
	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter

	engine    *engine.Service
	sched     *scheduler.Service
	out       *outbox.Service
	sessions  *session.Manager
	life      *lifecycle.Manager
	delivery  *delivery.Loop
	renewal   *renewal.Monitor
	retention *retention.Job
	router    *router.Router
	metrics   *metrics.Metrics
	admin     *admin.Server

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	s, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Log forwarding goes straight to the adapter; routing it through the
	// outbox would log about itself.
	var ad *telegram.Adapter
	logSvc, log := logx.New(mapLogConfig(cfg), func(ctx context.Context, chatID int64, text string) error {
		if ad == nil {
			return nil
		}
		_, err := ad.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil)
		return err
	})
	logSvc.SetChatTarget(cfg.Telegram.AdminChat)
	if ad, err = telegram.New(adCfg, log); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	appLog := log.Component("app")

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	appLog.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	zones := datetime.NewResolver(func(ctx context.Context, id string) (string, error) {
		u, err := store.GetUser(ctx, id)
		return u.Timezone, err
	}, s.Location)

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.Component("taskengine"), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg, s), engineSvc, log.Component("scheduler"))

	obCfg, err := mapOutboxConfig(cfg)
	if err != nil {
		return nil, err
	}
	out := outbox.New(obCfg, ad, log, bus, store)
	life := lifecycle.New(ad, schedSvc, lifecycle.Options{
		Delay: s.DeleteAfter,
		Grace: s.Grace,
		Log:   log.Component("lifecycle"),
		Bus:   bus,
	})
	out.SetTracker(life)

	flows := dialog.NewEngine(store, zones, dialog.Options{DeleteCandidates: s.DeleteCandidates, Log: log})
	sessions := session.NewManager(nil, flows, session.Options{Timeout: s.SessionTimeout, Log: log, Events: bus})

	b := bot.New(store, sessions, out, zones, bot.Options{
		Prefix:    s.ReplyPrefix,
		ListLimit: s.ListLimit,
		Log:       log,
	})
	rt := router.New(ad, b.Handle, router.Options{
		Owners: cfg.Telegram.OwnerUserIDs,
		Log:    log,
	})

	a := &App{
		cfgm:     cfgm,
		settings: s,
		root:     log,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		engine:   engineSvc,
		sched:    schedSvc,
		out:      out,
		sessions: sessions,
		life:     life,
		delivery: delivery.New(store, out, zones, delivery.Options{Log: log.Component("delivery"), Bus: bus}),
		renewal: renewal.New(store, sessions, out, zones, mapRenewalConfig(s), renewal.Options{
			Log: log.Component("renewal"),
			Bus: bus,
		}),
		retention: retention.New(store, s.RetentionKeep, nil, log.Component("retention")),
		router:    rt,
		updates:   make(chan kit.Update, 256),
	}

	a.metrics = metrics.New("")
	a.metrics.Gauge("lifecycle_pending", "Messages waiting for automatic deletion.", func() float64 { return float64(life.Pending()) })
	a.metrics.Gauge("task_queue_len", "Tasks queued in the engine.", func() float64 { return float64(engineSvc.Snapshot().QueueLen) })
	a.metrics.Gauge("log_chat_dropped", "Log entries dropped by the chat sink.", func() float64 { return float64(logSvc.Dropped()) })
	a.admin = admin.New(log, a.metrics.Handler(), a.health)

	if err := a.registerJobs(s); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) registerJobs(s config.Settings) error {
	if _, err := a.sched.AddCronOpt(jobDelivery, "@every "+s.DeliveryInterval.String(), s.DeliveryTimeout,
		scheduler.TaskOptions{Overlap: scheduler.OverlapSkipIfRunning, RetryMax: -1}, a.delivery.Run); err != nil {
		return err
	}
	if _, err := a.sched.AddSchedule(jobRenewal, s.RenewalSchedule, renewalTimeout, a.renewal.Run); err != nil {
		return err
	}
	if _, err := a.sched.AddInterval(jobSweep, s.SweepInterval, sweepTimeout, a.sweep); err != nil {
		return err
	}
	_, err := a.sched.AddDaily(jobRetention, s.RetentionAt, retentionTimeout, a.retention.Run)
	return err
}

func (a *App) sweep(ctx context.Context) error {
	_, err := a.life.Sweep(ctx)
	return err
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.root.Component("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	runCtx := a.sup.Context()
	a.engine.Start(runCtx)
	a.out.Start(runCtx)
	a.sched.Start(runCtx)

	if err := a.admin.Apply(runCtx, mapAdminConfig(a.cfgm.Get())); err != nil {
		return err
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}

	a.sup.Go0("telegram.menu", func(c context.Context) { router.PublishMenu(c, a.adapter, a.log) })
	a.sup.Go("router.dispatch", func(c context.Context) error { return a.router.Run(c, a.updates) })
	a.sup.Go("metrics.events", func(c context.Context) error { return a.metrics.Run(c, a.bus) })

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// Debug only: delivery ticks are frequent.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				newCfg = latest(sub, newCfg)
				a.reload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("bot", a.adapter.Username()), logx.String("tz", a.settings.Location.String()))
	return nil
}

func latest(ch <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer := <-ch:
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

// reload applies the hot sections of next. The config was validated
// before it was published.
func (a *App) reload(ctx context.Context, prev, next *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strings("sections", restart))
	}

	s, err := next.Resolve()
	if err != nil {
		a.log.Warn("invalid reminder settings; keeping previous", logx.Err(err))
		return
	}
	changed := make(map[string]bool, len(sections))
	for _, sec := range sections {
		changed[sec] = true
	}

	// target first so Apply never forwards to a stale chat
	a.logs.SetChatTarget(next.Telegram.AdminChat)
	a.logs.Apply(mapLogConfig(next))

	a.router.SetOwners(next.Telegram.OwnerUserIDs)

	if ob, err := mapOutboxConfig(next); err != nil {
		a.log.Warn("invalid outbox config; keeping previous", logx.Err(err))
	} else {
		a.out.Apply(ob)
	}

	if changed["renewal"] {
		a.renewal.Apply(mapRenewalConfig(s))
		if _, err := a.sched.AddSchedule(jobRenewal, s.RenewalSchedule, renewalTimeout, a.renewal.Run); err != nil {
			a.log.Warn("renewal reschedule failed", logx.Err(err))
		}
	}
	if changed["lifecycle"] {
		a.life.Apply(s.DeleteAfter, s.Grace)
		if _, err := a.sched.AddInterval(jobSweep, s.SweepInterval, sweepTimeout, a.sweep); err != nil {
			a.log.Warn("sweep reschedule failed", logx.Err(err))
		}
	}
	if changed["admin"] {
		if err := a.admin.Apply(ctx, mapAdminConfig(next)); err != nil {
			a.log.Warn("admin reconfigure failed", logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) health(context.Context) admin.Health {
	comps := map[string]any{
		"scheduler":         a.sched.Snapshot(),
		"task_engine":       a.engine.Snapshot(),
		"lifecycle_pending": a.life.Pending(),
	}
	ok := true
	if a.sup != nil {
		snap := a.sup.Snapshot()
		comps["app"] = snap
		ok = snap.FirstError == "" && a.sup.Context().Err() == nil
	}
	for name, sp := range map[string]*rtsup.Supervisor{
		"telegram": a.adapter.Supervisor(),
		"outbox":   a.out.Supervisor(),
	} {
		if sp != nil {
			comps[name] = sp.Snapshot()
		}
	}
	return admin.Health{OK: ok, Components: comps}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Each step is bounded so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// fn must honor stepCtx; a late finish is logged as a leak.
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Triggers first, then running jobs, then the queue they fed.
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("outbox", 3*time.Second, func(c context.Context) error { a.out.Stop(c); return nil })
	step("admin", time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, router, etc.)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}
