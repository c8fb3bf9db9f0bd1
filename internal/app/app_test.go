package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"welcomebot/internal/config"
	"welcomebot/internal/eventbus"
	"welcomebot/internal/router"
	"welcomebot/internal/runtime/systemd"
	"welcomebot/internal/scheduler"
	"welcomebot/internal/transport"
	"welcomebot/internal/transport/transporttest"
	"welcomebot/internal/welcome"
	"welcomebot/pkg/logx"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DISCORD_BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "WELCOMEBOT_PLATFORM", "WELCOMEBOT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

type prefixGateway struct {
	*transporttest.Gateway
	prefix string
}

func (g *prefixGateway) SetPrefix(p string) { g.prefix = p }

func TestNew_MissingToken(t *testing.T) {
	clearEnv(t)
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, transport.ErrConfigurationMissing)
}

func TestNew_WiresDiscordGateway(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token-for-test")

	a, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	req.NoError(err)
	req.Equal(config.PlatformDiscord, a.gw.Platform())

	var names []string
	for _, c := range a.router.Commands() {
		names = append(names, c.Name)
	}
	req.Equal([]string{"bot_info", "test_welcome"}, names)
	req.Len(a.sched.Snapshot(), 2)

	// Never started: Stop only releases the logger.
	req.NoError(a.Stop(context.Background(), StopUnknown))
}

func TestNew_WiresTelegramGateway(t *testing.T) {
	clearEnv(t)
	t.Setenv("WELCOMEBOT_PLATFORM", "telegram")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	a, err := New("")
	require.NoError(t, err)
	require.Equal(t, config.PlatformTelegram, a.gw.Platform())
	require.NoError(t, a.Stop(context.Background(), StopUnknown))
}

func newTestApp(t *testing.T) (*App, *prefixGateway, *bytes.Buffer) {
	t.Helper()
	clearEnv(t)
	cfgm := config.NewManager("")
	cfg, err := cfgm.Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "debug")
	logs, _ := logx.New(logx.Config{Level: "error"}, nil)
	t.Cleanup(func() { _ = logs.Close() })

	gw := &prefixGateway{Gateway: &transporttest.Gateway{}, prefix: cfg.Gateway.Prefix}
	bus := eventbus.New()
	wn := welcome.New(gw, welcome.NewTemplate(welcome.DefaultTemplate), log, bus)
	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		gw:      gw,
		router:  router.New(gw, log, bus, routerConfig(cfg)),
		welcome: wn,
		stats:   welcome.NewStats(),
		sched:   scheduler.New(scheduler.Config{}, log),
		sd:      systemd.New(systemd.Config{}, log),
	}
	return a, gw, &buf
}

func TestApplyConfig(t *testing.T) {
	req := require.New(t)
	a, gw, buf := newTestApp(t)
	events, unsub := a.bus.Subscribe(4)
	defer unsub()

	prev := a.cfgm.Get()
	next := *prev
	next.Gateway.Prefix = "?"
	next.Gateway.Presence = "greeting newcomers"
	next.Welcome.Template = "hi {member_mention}"
	next.Scheduler.StatsReport = ""

	a.applyConfig(context.Background(), prev, &next)

	req.Equal("?", gw.prefix)
	req.Equal("hi {member_mention}", a.welcome.Template().Text())
	_, _, presences := gw.Snapshot()
	req.Equal([]string{"greeting newcomers"}, presences)

	var jobs []string
	for _, e := range a.sched.Snapshot() {
		jobs = append(jobs, e.Name)
	}
	req.Equal([]string{jobPresenceRefresh}, jobs)

	select {
	case e := <-events:
		req.Equal(eventbus.TypeConfigReloaded, e.Type)
		req.Equal([]string{"gateway", "welcome", "scheduler"}, e.Data)
	case <-time.After(time.Second):
		t.Fatal("no reload event")
	}
	req.Contains(buf.String(), "config reloaded")
	req.NotContains(buf.String(), "restart required")
}

func TestApplyConfig_TokenChangeNeedsRestart(t *testing.T) {
	a, _, buf := newTestApp(t)
	prev := a.cfgm.Get()
	next := *prev
	next.Gateway.Token = "rotated"

	a.applyConfig(context.Background(), prev, &next)
	require.Contains(t, buf.String(), "restart required")
	require.NotContains(t, buf.String(), "rotated")
}

func TestReportStats(t *testing.T) {
	a, gw, buf := newTestApp(t)
	gw.StatsValue = transport.Stats{Groups: 2, Latency: 30 * time.Millisecond}
	a.stats.Observe(eventbus.Event{Type: eventbus.TypeWelcomeSent})

	require.NoError(t, a.reportStats(context.Background()))
	out := buf.String()
	require.Contains(t, out, "welcome stats")
	require.Contains(t, out, `"sent":1`)
	require.Contains(t, out, `"groups":2`)
}

func TestRefreshPresence(t *testing.T) {
	req := require.New(t)
	a, gw, _ := newTestApp(t)

	req.NoError(a.refreshPresence(context.Background()))
	_, _, presences := gw.Snapshot()
	req.Equal([]string{config.Default().Gateway.Presence}, presences)

	cfg := *a.cfgm.Get()
	cfg.Gateway.Presence = ""
	a.cfgm.Commit(&cfg)
	req.NoError(a.refreshPresence(context.Background()))
	_, _, presences = gw.Snapshot()
	req.Len(presences, 1)
}

func TestChangedSections(t *testing.T) {
	a := config.Default()
	b := config.Default()
	require.Empty(t, changedSections(a, b))

	b.Logging.Level = "debug"
	b.Systemd.Watchdog = false
	require.Equal(t, []string{"logging", "systemd"}, changedSections(a, b))
	require.Nil(t, changedSections(nil, b))
}

func TestStep_DeadlineDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "debug")
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	step(context.Background(), log, "slow", 50*time.Millisecond, func(ctx context.Context) error {
		<-release
		return nil
	})
	require.Less(t, time.Since(start), time.Second)
	require.Contains(t, buf.String(), "stop step deadline reached")
}
