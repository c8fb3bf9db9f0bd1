package config

import "strings"

const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
)

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Welcome   WelcomeConfig   `json:"welcome"`
	Messages  MessagesConfig  `json:"messages"`
	Router    RouterConfig    `json:"router"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Systemd   SystemdConfig   `json:"systemd"`
}

// GatewayConfig selects and configures the chat platform client.
//
// The token is normally supplied through the environment
// (DISCORD_BOT_TOKEN / TELEGRAM_BOT_TOKEN) and is never logged.
type GatewayConfig struct {
	Platform string `json:"platform" validate:"required,oneof=discord telegram"`
	Token    string `json:"token,omitempty"`
	Prefix   string `json:"prefix" validate:"required,max=8"`
	Presence string `json:"presence"`

	// OwnerUserIDs are always treated as administrators.
	OwnerUserIDs []string `json:"owner_user_ids,omitempty" validate:"dive,required"`

	// PollTimeout is the Telegram long-poll timeout (Go duration string).
	PollTimeout  string `json:"poll_timeout,omitempty"`
	UpdateBuffer int    `json:"update_buffer,omitempty" validate:"gte=0,lte=65536"`
}

// WelcomeConfig controls the welcome DM text.
//
// Template takes precedence over TemplateFile; both empty means the built-in text.
// Slots: {member_mention} and {server_name}.
type WelcomeConfig struct {
	Template     string `json:"template,omitempty"`
	TemplateFile string `json:"template_file,omitempty"`
}

// MessagesConfig holds the localized replies shown to command invokers.
type MessagesConfig struct {
	PermissionDenied string `json:"permission_denied" validate:"required"`
	CommandFailed    string `json:"command_failed" validate:"required"`
}

type RouterConfig struct {
	// Workers is the number of dispatch workers. 1 keeps handlers strictly sequential.
	Workers int `json:"workers,omitempty" validate:"gte=0,lte=64"`
	// CommandTimeout bounds a single command handler. Empty disables it.
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat mirrors log lines into a channel of the connected platform.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id" validate:"required_if=Enabled true"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

// SchedulerConfig controls periodic housekeeping jobs. Specs use cron syntax
// or descriptors such as "@every 30m"; empty disables the job.
type SchedulerConfig struct {
	Enabled         bool   `json:"enabled"`
	Timezone        string `json:"timezone,omitempty"`
	PresenceRefresh string `json:"presence_refresh,omitempty"`
	StatsReport     string `json:"stats_report,omitempty"`
}

// SystemdConfig enables sd_notify readiness and watchdog pings.
type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Platform:     PlatformDiscord,
			Prefix:       "!",
			Presence:     "for new members 👋",
			UpdateBuffer: 256,
		},
		Messages: MessagesConfig{
			PermissionDenied: "❌ تحتاج لصلاحيات إدارية لاستخدام هذا الأمر",
			CommandFailed:    "❌ حدث خطأ أثناء تنفيذ الأمر",
		},
		Router: RouterConfig{Workers: 1},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Chat:    LoggingChat{MinLevel: "warn", RatePerSec: 1},
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			PresenceRefresh: "@every 30m",
			StatsReport:     "@every 6h",
		},
		Systemd: SystemdConfig{Notify: true, Watchdog: true},
	}
}

// applyDefaults fills zero values a partial file left empty.
func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Gateway.Platform) == "" {
		c.Gateway.Platform = def.Gateway.Platform
	}
	c.Gateway.Platform = strings.ToLower(strings.TrimSpace(c.Gateway.Platform))
	if c.Gateway.Prefix == "" {
		c.Gateway.Prefix = def.Gateway.Prefix
	}
	if c.Gateway.UpdateBuffer == 0 {
		c.Gateway.UpdateBuffer = def.Gateway.UpdateBuffer
	}
	if c.Messages.PermissionDenied == "" {
		c.Messages.PermissionDenied = def.Messages.PermissionDenied
	}
	if c.Messages.CommandFailed == "" {
		c.Messages.CommandFailed = def.Messages.CommandFailed
	}
	if c.Router.Workers == 0 {
		c.Router.Workers = def.Router.Workers
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// ResolvedToken returns the token for the selected platform.
func (c *Config) ResolvedToken() string {
	return strings.TrimSpace(c.Gateway.Token)
}

// TokenEnvName is the environment variable expected to hold the token.
func (c *Config) TokenEnvName() string {
	if c.Gateway.Platform == PlatformTelegram {
		return "TELEGRAM_BOT_TOKEN"
	}
	return "DISCORD_BOT_TOKEN"
}
