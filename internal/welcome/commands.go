package welcome

import (
	"context"

	"welcomebot/internal/router"
	"welcomebot/pkg/logx"
)

// Commands returns the chat commands backed by the notifier.
func (n *Notifier) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "test_welcome",
			Description: "Preview message",
			Access:      router.AccessAdmin,
			Handle: func(ctx context.Context, req *router.Request) error {
				inv := req.Invocation
				inv.Admin = req.Admin
				card, err := n.Preview(ctx, inv)
				if err != nil {
					return err
				}
				if err := req.ReplyCard(ctx, card); err != nil {
					return err
				}
				req.Logger.Info("test welcome command used", logx.String("user", inv.Invoker.Name))
				return nil
			},
		},
		{
			Name:        "bot_info",
			Description: "Bot information",
			Access:      router.AccessEveryone,
			Handle: func(ctx context.Context, req *router.Request) error {
				if err := req.ReplyCard(ctx, n.Status(ctx, req.Invocation)); err != nil {
					return err
				}
				req.Logger.Info("bot info command used", logx.String("user", req.Invocation.Invoker.Name))
				return nil
			},
		},
	}
}
