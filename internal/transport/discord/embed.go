package discord

import (
	"github.com/bwmarrin/discordgo"

	"welcomebot/internal/transport"
)

func toEmbed(c transport.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		Color:       c.Color,
	}
	for _, f := range c.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if c.Footer != "" || c.FooterIcon != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: c.Footer, IconURL: c.FooterIcon}
	}
	return e
}

func toMember(u *discordgo.User) transport.Member {
	if u == nil {
		return transport.Member{}
	}
	return transport.Member{
		ID:      u.ID,
		Name:    u.Username,
		Mention: u.Mention(),
		Bot:     u.Bot,
	}
}

// avatarURL is empty when the account has no custom avatar.
func avatarURL(u *discordgo.User) string {
	if u == nil || u.Avatar == "" {
		return ""
	}
	return u.AvatarURL("")
}

// invocationFrom parses a guild or DM message into a command invocation.
// Admin and the group name are filled in by the adapter.
func invocationFrom(prefix string, m *discordgo.Message) (transport.Invocation, bool) {
	if m == nil || m.Author == nil {
		return transport.Invocation{}, false
	}
	name, args, ok := transport.ParseCommand(prefix, m.Content)
	if !ok {
		return transport.Invocation{}, false
	}
	return transport.Invocation{
		Name:      name,
		Args:      args,
		Invoker:   toMember(m.Author),
		Group:     transport.Group{ID: m.GuildID},
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}, true
}
