package app

import (
	"welcomebot/internal/config"
	"welcomebot/internal/router"
	"welcomebot/internal/runtime/systemd"
	"welcomebot/internal/scheduler"
	"welcomebot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			ChannelID:  cfg.Logging.Chat.ChannelID,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

// routerConfig assumes cfg passed Validate, so the timeout parses.
func routerConfig(cfg *config.Config) router.Config {
	timeout, _ := cfg.CommandTimeout()
	return router.Config{
		Presence:       cfg.Gateway.Presence,
		Owners:         cfg.Gateway.OwnerUserIDs,
		Workers:        cfg.Router.Workers,
		CommandTimeout: timeout,
		Replies: router.Replies{
			PermissionDenied: cfg.Messages.PermissionDenied,
			CommandFailed:    cfg.Messages.CommandFailed,
		},
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Enabled: cfg.Scheduler.Enabled, Timezone: cfg.Scheduler.Timezone}
}

func systemdConfig(cfg *config.Config) systemd.Config {
	return systemd.Config{Notify: cfg.Systemd.Notify, Watchdog: cfg.Systemd.Watchdog}
}
