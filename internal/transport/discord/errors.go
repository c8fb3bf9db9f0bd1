package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"welcomebot/internal/transport"
)

// classify maps discordgo failures onto transport sentinels, keeping the original error wrapped.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return fmt.Errorf("%w: %w", transport.ErrDirectMessageForbidden, err)
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", transport.ErrAuthenticationFailed, err)
	}
	return err
}

// classifyDirect maps a failed DM send. Any 403 means the member does not
// accept messages from the bot (closed DMs, blocked, no shared guild).
func classifyDirect(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", transport.ErrDirectMessageForbidden, err)
	}
	return classify(err)
}
