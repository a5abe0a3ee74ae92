// Package app wires the daemon together: config manager, logging service,
// event bus, scheduler, history persistence, and systemd integration.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickd/internal/config"
	"tickd/internal/eventbus"
	"tickd/internal/history"
	"tickd/internal/runtime/supervisor"
	"tickd/internal/scheduler"
	"tickd/internal/watchdog"
	logx "tickd/pkg/logx"
)

// StopReason is attached to the shutdown log line.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// Reserved ids for built-in daemon items.
const (
	itemHistoryPrune = "history.prune"
	itemHeartbeat    = "heartbeat"
	itemWatchdogPing = "watchdog.ping"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store history.Store
	rec   *history.Recorder

	sched *scheduler.Service
	wd    *watchdog.Watchdog
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// History persistence (optional).
	var (
		store history.Store
		rec   *history.Recorder
	)
	hcfg, hEnabled, err := mapHistoryConfig(cfg)
	if err != nil {
		return nil, err
	}
	if hEnabled {
		store, err = history.Open(hcfg, log.With(logx.String("comp", "history")))
		if err != nil {
			return nil, err
		}
		log.Info("history enabled", logx.String("driver", hcfg.Driver))
	}
	rec = history.NewRecorder(hcfg, store, log.With(logx.String("comp", "history")))

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scfg, log.With(logx.String("comp", "scheduler")), bus)

	wd := watchdog.New(watchdog.Config{Enabled: cfg.Watchdog.Enabled},
		log.With(logx.String("comp", "watchdog")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		rec:     rec,
		sched:   sched,
		wd:      wd,
	}, nil
}

// Scheduler exposes the registration facade so callers can book their own
// items before or after Start.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if cfg.Scheduler.HistorySize < 0 {
			return fmt.Errorf("scheduler.history_size must be >= 0")
		}
		if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
			}
		}
		if _, _, err := mapHistoryConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.registerBuiltins(a.cfgm.Get()); err != nil {
		return err
	}

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	if a.store != nil {
		a.sup.GoRestart("history.record", func(c context.Context) error {
			return a.rec.Run(c, a.bus)
		})
	}

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.wd.NotifyReady()
	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the running components.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		return
	}

	prevEnabled := a.sched.Enabled()
	a.sched.Apply(scfg)

	if prevEnabled && !scfg.Enabled {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	}
	if !prevEnabled && scfg.Enabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	// The store driver is fixed at startup; only warn when it would change.
	if _, enabled, err := mapHistoryConfig(cfg); err == nil {
		if enabled != (a.store != nil) {
			a.log.Warn("history config changed; restart required for changes to take effect")
		}
	}

	if err := a.registerBuiltins(cfg); err != nil {
		a.log.Warn("re-registering built-in items failed", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

// registerBuiltins books the daemon's own items. Registration under a fixed
// id replaces the previous definition, so calling this on reload is safe.
func (a *App) registerBuiltins(cfg *config.Config) error {
	if a.store != nil {
		if err := a.sched.Repeat(itemHistoryPrune, a.rec.PruneJob(), a.rec.PruneEvery()); err != nil {
			return fmt.Errorf("register %s: %w", itemHistoryPrune, err)
		}
	}

	if cfg.Heartbeat.Enabled {
		spec := strings.TrimSpace(cfg.Heartbeat.Spec)
		if spec == "" {
			spec = "@every 1h"
		}
		if err := a.sched.RepeatSpec(itemHeartbeat, a.heartbeatJob(), spec); err != nil {
			return fmt.Errorf("register %s: %w", itemHeartbeat, err)
		}
	} else {
		a.sched.Remove(itemHeartbeat)
	}

	if a.wd.Armed() {
		if err := a.sched.Repeat(itemWatchdogPing, a.wd.PingJob(), 0); err != nil {
			return fmt.Errorf("register %s: %w", itemWatchdogPing, err)
		}
	}
	return nil
}

// heartbeatJob logs a one-line liveness summary.
func (a *App) heartbeatJob() scheduler.Job {
	return func(ctx context.Context) error {
		snap := a.sched.Snap()
		fields := []logx.Field{
			logx.Int("ticking", len(snap.Ticking)),
			logx.Int("pending", len(snap.Pending)),
			logx.Int("history", len(snap.History)),
		}
		if a.sup != nil {
			fields = append(fields, logx.Int64("goroutines", a.sup.Active()))
		}
		if a.rec != nil {
			fields = append(fields, logx.Uint64("records_dropped", a.rec.Dropped()))
		}
		if a.bus != nil {
			fields = append(fields, logx.Uint64("events_dropped", a.bus.Dropped()))
		}
		a.log.Info("heartbeat", fields...)
		return nil
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.wd.NotifyStopping()

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
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
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("history", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
