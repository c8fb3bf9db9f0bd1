package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct constraints plus the string-encoded durations and timezone.
// It does not require a token; callers decide how a missing token is handled.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.PollTimeout(); err != nil {
		return err
	}
	if _, err := c.CommandTimeout(); err != nil {
		return err
	}
	if strings.ContainsAny(c.Gateway.Prefix, " \t\n") {
		return fmt.Errorf("gateway.prefix: must not contain whitespace")
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

// DefaultPollTimeout applies when gateway.poll_timeout is empty.
const DefaultPollTimeout = 10 * time.Second

// PollTimeout is the Telegram long-poll timeout.
func (c *Config) PollTimeout() (time.Duration, error) {
	return durationKey("gateway.poll_timeout", c.Gateway.PollTimeout, DefaultPollTimeout)
}

// CommandTimeout bounds one command handler; zero disables the bound.
func (c *Config) CommandTimeout() (time.Duration, error) {
	return durationKey("router.command_timeout", c.Router.CommandTimeout, 0)
}

// durationKey parses the Go duration stored under key. Empty or "0s" yields def;
// negative values are rejected.
func durationKey(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: must not be negative", key)
	case d == 0:
		return def, nil
	}
	return d, nil
}
