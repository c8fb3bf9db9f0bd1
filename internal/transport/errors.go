package transport

import "errors"

var (
	// ErrConfigurationMissing means no bot token was configured.
	ErrConfigurationMissing = errors.New("bot token is not configured")
	// ErrAuthenticationFailed means the platform rejected the bot token.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrDirectMessageForbidden means the recipient does not accept direct messages from the bot.
	ErrDirectMessageForbidden = errors.New("direct message forbidden by recipient")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrUnknownCommand         = errors.New("unknown command")
	ErrNoGroupContext         = errors.New("command requires a group context")
)
