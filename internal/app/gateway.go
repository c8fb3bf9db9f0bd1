package app

import (
	"fmt"

	"welcomebot/internal/config"
	"welcomebot/internal/transport"
	"welcomebot/internal/transport/discord"
	"welcomebot/internal/transport/telegram"
	"welcomebot/pkg/logx"
)

// Gateway is a platform client whose command prefix can change at runtime.
type Gateway interface {
	transport.Gateway
	SetPrefix(prefix string)
}

func newGateway(cfg *config.Config, log logx.Logger) (Gateway, error) {
	switch cfg.Gateway.Platform {
	case config.PlatformDiscord:
		return discord.New(discord.Config{
			Token:  cfg.ResolvedToken(),
			Prefix: cfg.Gateway.Prefix,
		}, log)
	case config.PlatformTelegram:
		poll, err := cfg.PollTimeout()
		if err != nil {
			return nil, err
		}
		return telegram.New(telegram.Config{
			Token:       cfg.ResolvedToken(),
			Prefix:      cfg.Gateway.Prefix,
			PollTimeout: poll,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Gateway.Platform)
	}
}
