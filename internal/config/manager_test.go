package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DISCORD_BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "WELCOMEBOT_PLATFORM", "WELCOMEBOT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestManager_MissingFileUsesDefaults(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "abc")

	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	req.NoError(err)
	req.Equal(PlatformDiscord, cfg.Gateway.Platform)
	req.Equal("!", cfg.Gateway.Prefix)
	req.Equal("abc", cfg.ResolvedToken())
	req.Equal(1, cfg.Router.Workers)
	req.Same(cfg, m.Get())
}

func TestManager_YAMLOverlaysDefaults(t *testing.T) {
	req := require.New(t)
	clearEnv(t)

	path := writeFile(t, t.TempDir(), "config.yaml", `
gateway:
  prefix: "?"
  owner_user_ids: ["42"]
logging:
  level: DEBUG
scheduler:
  enabled: false
`)
	cfg, err := NewManager(path).Load()
	req.NoError(err)
	req.Equal("?", cfg.Gateway.Prefix)
	req.Equal([]string{"42"}, cfg.Gateway.OwnerUserIDs)
	req.Equal("debug", cfg.Logging.Level)
	req.False(cfg.Scheduler.Enabled)
	req.True(cfg.Logging.Console)
	req.Equal(Default().Messages.PermissionDenied, cfg.Messages.PermissionDenied)
	req.Empty(cfg.ResolvedToken())
}

func TestManager_EnvSelectsPlatformToken(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	t.Setenv("WELCOMEBOT_PLATFORM", "Telegram")
	t.Setenv("DISCORD_BOT_TOKEN", "discord-token")
	t.Setenv("TELEGRAM_BOT_TOKEN", "telegram-token")

	cfg, err := NewManager("").Load()
	req.NoError(err)
	req.Equal(PlatformTelegram, cfg.Gateway.Platform)
	req.Equal("telegram-token", cfg.ResolvedToken())
	req.Equal("TELEGRAM_BOT_TOKEN", cfg.TokenEnvName())
}

func TestManager_RejectsUnknownFields(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.json", `{"gateway":{"prefx":"!"}}`)
	_, err := NewManager(path).Load()
	require.Error(t, err)
}

func TestManager_RejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cases := map[string]string{
		"platform.yaml": "gateway:\n  platform: irc\n",
		"timeout.yaml":  "router:\n  command_timeout: soon\n",
		"tz.yaml":       "scheduler:\n  timezone: Mars/Olympus\n",
		"chat.yaml":     "logging:\n  chat:\n    enabled: true\n",
		"prefix.yaml":   "gateway:\n  prefix: \"! \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewManager(writeFile(t, dir, name, body)).Load()
			require.Error(t, err)
		})
	}
}

func TestManager_ReloadPublishesOnlyChanges(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "gateway:\n  presence: one\n")

	m := NewManager(path)
	_, err := m.Load()
	req.NoError(err)
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	published, err := m.Reload(context.Background())
	req.NoError(err)
	req.False(published)

	req.NoError(os.WriteFile(path, []byte("gateway:\n  presence: two\n"), 0o644))
	published, err = m.Reload(context.Background())
	req.NoError(err)
	req.True(published)

	select {
	case cfg := <-sub:
		req.Equal("two", cfg.Gateway.Presence)
	case <-time.After(time.Second):
		t.Fatal("no config published")
	}
}

func TestManager_ReloadKeepsPreviousOnValidatorError(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", "gateway:\n  presence: one\n")

	m := NewManager(path)
	_, err := m.Load()
	req.NoError(err)
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return os.ErrInvalid
	})

	req.NoError(os.WriteFile(path, []byte("gateway:\n  presence: two\n"), 0o644))
	published, err := m.Reload(context.Background())
	req.ErrorIs(err, os.ErrInvalid)
	req.False(published)
	req.Equal("one", m.Get().Gateway.Presence)
}

func TestConfigTimeouts(t *testing.T) {
	req := require.New(t)
	cfg := Default()

	poll, err := cfg.PollTimeout()
	req.NoError(err)
	req.Equal(DefaultPollTimeout, poll)
	cmd, err := cfg.CommandTimeout()
	req.NoError(err)
	req.Zero(cmd)

	cfg.Gateway.PollTimeout = "0s"
	cfg.Router.CommandTimeout = " 45s "
	poll, err = cfg.PollTimeout()
	req.NoError(err)
	req.Equal(DefaultPollTimeout, poll)
	cmd, err = cfg.CommandTimeout()
	req.NoError(err)
	req.Equal(45*time.Second, cmd)

	cfg.Router.CommandTimeout = "-1s"
	_, err = cfg.CommandTimeout()
	req.ErrorContains(err, "router.command_timeout")
	req.Error(cfg.Validate())
}
