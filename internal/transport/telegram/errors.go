package telegram

import (
	"errors"
	"fmt"
	"net/http"

	tele "gopkg.in/telebot.v4"

	"welcomebot/internal/transport"
)

// classifyDirect maps a failed private send. Telegram answers 403 when the
// user blocked the bot, never started it or was deactivated.
func classifyDirect(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrNotStartedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return fmt.Errorf("%w: %w", transport.ErrDirectMessageForbidden, err)
	}
	var te *tele.Error
	if errors.As(err, &te) && te.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %w", transport.ErrDirectMessageForbidden, err)
	}
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", transport.ErrAuthenticationFailed, err)
	}
	var te *tele.Error
	if errors.As(err, &te) && te.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", transport.ErrAuthenticationFailed, err)
	}
	return err
}
