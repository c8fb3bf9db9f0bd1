package telegram

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"welcomebot/internal/transport"
)

const textLimit = 4000

func toMember(u *tele.User) transport.Member {
	if u == nil {
		return transport.Member{}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	mention := name
	if u.Username != "" {
		name = u.Username
		mention = "@" + u.Username
	}
	return transport.Member{
		ID:      strconv.FormatInt(u.ID, 10),
		Name:    name,
		Mention: mention,
		Bot:     u.IsBot,
	}
}

func isGroup(c *tele.Chat) bool {
	return c != nil && (c.Type == tele.ChatGroup || c.Type == tele.ChatSuperGroup)
}

func toGroup(c *tele.Chat) transport.Group {
	if !isGroup(c) {
		return transport.Group{}
	}
	return transport.Group{ID: strconv.FormatInt(c.ID, 10), Name: c.Title}
}

// formatCard renders a card as plain text: title, description, one line per field, footer.
func formatCard(c transport.Card) string {
	var b strings.Builder
	if c.Title != "" {
		b.WriteString(c.Title)
		b.WriteString("\n\n")
	}
	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n\n")
	}
	for _, f := range c.Fields {
		b.WriteString(f.Name)
		if strings.Contains(f.Value, "\n") {
			b.WriteString(":\n")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	if c.Footer != "" {
		if len(c.Fields) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Footer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitText cuts s into chunks of at most limit runes, preferring newline boundaries.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	var out []string
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
