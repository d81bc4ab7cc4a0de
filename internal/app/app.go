package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/eventbus"
	"relaybot/internal/relay"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/storage"
	"relaybot/internal/texts"
	kit "relaybot/internal/transport"
	telegram "relaybot/internal/transport/telegram/adapter"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	texts *texts.Catalog

	adapter kit.Adapter

	engine  *relay.Engine
	router  *router.Router
	compact *compactionJob

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutOrDefault(),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink off, set its target, then apply the
	// real config so Apply doesn't warn about a missing target.
	baseLogCfg := logConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	if chatID := logTarget(cfg); chatID != 0 {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	tx, err := texts.Load(cfg.Resources.Path, cfg.Resources.LangOrDefault())
	if err != nil {
		log.Warn("text resources not loaded; using built-in texts", logx.Err(err))
		tx = texts.Default()
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		store:   store,
		texts:   tx,
		adapter: ad,
		updates: make(chan kit.Update, 256),
	}
	if c, ok := store.(storage.Compactor); ok {
		a.compact = newCompactionJob(c, log.With(logx.String("comp", "compaction")))
	}
	return a, nil
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
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		if err := config.Validate(c); err != nil {
			return err
		}
		_, err := mapStorageConfig(c)
		return err
	})

	a.engine = relay.New(relay.Deps{
		Adapter:    a.adapter,
		Store:      a.store,
		Texts:      a.texts,
		Bus:        a.bus,
		Supervisor: a.sup,
		Logger:     a.log,
		Settings:   func() relay.Settings { return engineSettings(a.cfgm.Get()) },
	})
	a.engine.SetBroadcastRate(cfg.Broadcast.RatePerSec)
	a.router = router.New(a.log.With(logx.String("comp", "router")), a.adapter, a.engine.Handler(),
		routerOptions(cfg, func() string { return a.texts.Get("busy") }))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("commands.publish", func(c context.Context) {
		router.PublishMenu(c, a.log, a.adapter, a.engine.Commands())
	})

	if a.compact != nil {
		if err := a.compact.Apply(a.sup.Context(), cfg.Storage.CompactSchedule); err != nil {
			return fmt.Errorf("storage.compact_schedule: %w", err)
		}
	}

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
				a.logEvent(e)
			}
		}
	})

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
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

// applyConfig fans a reloaded config out to the live components. Sections
// that need a restart are only reported.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)
	if rs := config.RequiresRestart(sections); len(rs) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(rs, ",")))
	}

	// update log target first (so Apply() doesn't warn when Telegram logging is enabled)
	a.logs.SetTelegramTarget(logTarget(newCfg), newCfg.Logging.Telegram.ThreadID)
	a.logs.Apply(logConfig(newCfg))

	if err := a.texts.Reload(newCfg.Resources.Path, newCfg.Resources.LangOrDefault()); err != nil {
		a.log.Warn("text resources reload failed; keeping previous", logx.Err(err))
	}
	a.engine.SetBroadcastRate(newCfg.Broadcast.RatePerSec)

	if a.compact != nil {
		if err := a.compact.Apply(ctx, newCfg.Storage.CompactSchedule); err != nil {
			a.log.Warn("invalid compaction schedule; keeping previous", logx.Err(err))
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
	a.log.Info("config reloaded", fields...)
}

func (a *App) logEvent(e eventbus.Event) {
	switch e.Type {
	case eventbus.BroadcastFinished:
		if sum, ok := e.Data.(relay.Summary); ok {
			a.log.Info("broadcast finished",
				logx.String("job", sum.JobID),
				logx.Int("sent", sum.Sent),
				logx.Int("failed", sum.Failed),
			)
			return
		}
	case eventbus.OwnerClaimed:
		if id, ok := e.Data.(int64); ok {
			a.log.Info("owner claimed", logx.Int64("user_id", id))
			return
		}
	}
	a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// step runs one shutdown step bounded by max so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
			max = time.Until(dl)
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
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
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("compaction", 2*time.Second, func(c context.Context) error {
		if a.compact != nil {
			a.compact.Stop(c)
		}
		return nil
	})
	// router workers and in-flight broadcast jobs
	step("supervisor", 3*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		cnt := a.sup.Counters()
		a.log.Debug("supervisor drained", logx.Int64("active", cnt.Active), logx.Uint64("started", cnt.Started))
		return err
	})
	step("storage", 2*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
