package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"welcomebot/internal/config"
	"welcomebot/internal/eventbus"
	"welcomebot/internal/router"
	"welcomebot/internal/runtime/supervisor"
	"welcomebot/internal/runtime/systemd"
	"welcomebot/internal/scheduler"
	"welcomebot/internal/transport"
	"welcomebot/internal/welcome"
	"welcomebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	gw      Gateway
	router  *router.Router
	welcome *welcome.Notifier
	stats   *welcome.Stats
	sched   *scheduler.Service
	sd      *systemd.Notifier

	updates chan transport.Update
}

// New loads the configuration and wires every component without connecting.
// A missing token is logged and reported as transport.ErrConfigurationMissing.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(logConfig(cfg), nil)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	token := cfg.ResolvedToken()
	if token == "" {
		log.Error(cfg.TokenEnvName()+" environment variable not set!",
			logx.String("hint", "set it in the environment or a .env file next to the binary"))
		_ = logs.Close()
		return nil, transport.ErrConfigurationMissing
	}
	log.Info("bot token found", logx.Int("length", len(token)), logx.String("platform", cfg.Gateway.Platform))

	gw, err := newGateway(cfg, root)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	logs.SetSender(logx.ChatSenderFunc(func(ctx context.Context, channelID, text string) error {
		return gw.Reply(ctx, transport.ChatTarget{ChannelID: channelID}, text)
	}))

	tmpl, err := welcome.LoadTemplate(cfg.Welcome.Template, cfg.Welcome.TemplateFile)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	stats := welcome.NewStats()

	wn := welcome.New(gw, tmpl, root, bus)
	wn.SetStats(stats)
	wn.SetPrefix(cfg.Gateway.Prefix)

	rt := router.New(gw, root, bus, routerConfig(cfg))
	if err := rt.Register(wn.Commands()...); err != nil {
		_ = logs.Close()
		return nil, err
	}
	rt.SetJoinHandler(wn)

	sd := systemd.New(systemdConfig(cfg), root)
	rt.OnReadyHook(func(ctx context.Context, ready transport.Ready) {
		sd.Ready(fmt.Sprintf("connected as %s; %d groups", ready.Self.Name, ready.Groups))
	})

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		gw:      gw,
		router:  rt,
		welcome: wn,
		stats:   stats,
		sched:   scheduler.New(schedulerConfig(cfg), root),
		sd:      sd,
		updates: make(chan transport.Update, cfg.Gateway.UpdateBuffer),
	}
	if err := a.registerJobs(cfg); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

// TokenEnvName is the environment variable the active platform reads its token from.
func (a *App) TokenEnvName() string { return a.cfgm.Get().TokenEnvName() }

// Done is closed when the app context is canceled (fatal error or Stop).
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

// Start connects the gateway and launches background loops.
// transport.ErrAuthenticationFailed is returned unchanged in the chain.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if cfg.ResolvedToken() == "" {
			return fmt.Errorf("%s: token must not be removed while running", cfg.TokenEnvName())
		}
		if _, err := welcome.LoadTemplate(cfg.Welcome.Template, cfg.Welcome.TemplateFile); err != nil {
			return err
		}
		for _, s := range []string{cfg.Scheduler.PresenceRefresh, cfg.Scheduler.StatsReport} {
			if strings.TrimSpace(s) == "" {
				continue
			}
			if _, err := scheduler.ParseSchedule(s); err != nil {
				return err
			}
		}
		return nil
	})

	// The dispatcher must be draining before the gateway produces its first update.
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if err := a.gw.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(context.Background())
		return err
	}

	a.sup.Go0("welcome.stats", func(c context.Context) { a.stats.Run(c, a.bus) })
	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("systemd.watchdog", a.sd.RunWatchdog)
	a.sched.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("platform", a.gw.Platform()))
	return nil
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.sd.Reloading(func() { a.applyConfig(ctx, last, next) })
			last = next
		}
	}
}

// applyConfig pushes a validated config into the running components.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	changed := changedSections(prev, next)

	a.logs.Apply(logConfig(next))
	a.router.Apply(routerConfig(next))
	a.gw.SetPrefix(next.Gateway.Prefix)
	a.welcome.SetPrefix(next.Gateway.Prefix)

	if tmpl, err := welcome.LoadTemplate(next.Welcome.Template, next.Welcome.TemplateFile); err != nil {
		a.log.Warn("welcome template reload failed; keeping previous", logx.Err(err))
	} else {
		a.welcome.SetTemplate(tmpl)
	}

	if prev.Gateway.Platform != next.Gateway.Platform || prev.ResolvedToken() != next.ResolvedToken() {
		a.log.Warn("gateway platform or token changed; restart required for changes to take effect")
	}

	a.sched.Apply(schedulerConfig(next))
	if err := a.registerJobs(next); err != nil {
		a.log.Warn("scheduled jobs not updated", logx.Err(err))
	}

	if prev.Gateway.Presence != next.Gateway.Presence {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.gw.SetPresence(pctx, next.Gateway.Presence); err != nil {
			a.log.Warn("set presence failed", logx.Err(err))
		}
		cancel()
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: changed})
	if len(changed) > 0 {
		a.log.Info("config reloaded", logx.String("changed", strings.Join(changed, ",")))
	} else {
		a.log.Info("config reloaded (no changes)")
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	step(ctx, a.log, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step(ctx, a.log, "gateway", 3*time.Second, a.gw.Stop)
	step(ctx, a.log, "supervisor", 4*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}
