// Package discord connects the bot to Discord through discordgo.
package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"welcomebot/internal/runtime/supervisor"
	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

const Platform = "discord"

type Config struct {
	Token  string
	Prefix string
}

// Adapter is a transport.Gateway backed by a discordgo session.
type Adapter struct {
	log     logx.Logger
	session *discordgo.Session

	prefix atomic.Pointer[string]
	outbox transport.Outbox

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor
}

var _ transport.Gateway = (*Adapter)(nil)

var libLogOnce sync.Once

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, transport.ErrConfigurationMissing
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	s.StateEnabled = true

	a := &Adapter{log: log.With(logx.String("comp", "discord")), session: s}
	a.SetPrefix(cfg.Prefix)
	libLogOnce.Do(func() { routeLibraryLogs(a.log) })
	a.registerHandlers()
	return a, nil
}

// routeLibraryLogs sends discordgo's internal log lines through logx.
func routeLibraryLogs(log logx.Logger) {
	log = log.With(logx.String("lib", "discordgo"))
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			log.Error(msg)
		case discordgo.LogWarning:
			log.Warn(msg)
		case discordgo.LogInformational:
			log.Info(msg)
		default:
			log.Debug(msg)
		}
	}
}

func (a *Adapter) Platform() string { return Platform }

// SetPrefix changes the command prefix for subsequent messages.
func (a *Adapter) SetPrefix(p string) {
	p = strings.TrimSpace(p)
	a.prefix.Store(&p)
}

func (a *Adapter) Prefix() string {
	if p := a.prefix.Load(); p != nil {
		return *p
	}
	return ""
}

// guard converts a handler panic into an UpdateError so one bad event cannot kill the session.
func (a *Adapter) guard(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic in discord handler", logx.String("event", event), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			a.outbox.Push(transport.Update{Kind: transport.UpdateError, Err: fmt.Errorf("discord %s handler: %v", event, r)})
		}
	}()
	fn()
}

func (a *Adapter) registerHandlers() {
	a.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.guard("ready", func() {
			a.outbox.Push(transport.Update{
				Kind:  transport.UpdateReady,
				Ready: &transport.Ready{Self: toMember(r.User), Groups: len(r.Guilds)},
			})
		})
	})

	a.session.AddHandler(func(s *discordgo.Session, ev *discordgo.GuildMemberAdd) {
		a.guard("guild_member_add", func() {
			if ev.Member == nil || ev.User == nil {
				return
			}
			a.outbox.Push(transport.Update{
				Kind: transport.UpdateJoin,
				Join: &transport.JoinEvent{
					Member: toMember(ev.User),
					Group:  transport.Group{ID: ev.GuildID, Name: a.guildName(ev.GuildID)},
				},
			})
		})
	})

	a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.guard("message_create", func() {
			if m.Message == nil || m.Author == nil || m.Author.Bot {
				return
			}
			if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
				return
			}
			inv, ok := invocationFrom(a.Prefix(), m.Message)
			if !ok {
				return
			}
			if inv.InGroup() {
				inv.Group.Name = a.guildName(inv.Group.ID)
				inv.Admin = a.isAdmin(m.Author.ID, m.ChannelID)
			}
			a.outbox.Push(transport.Update{Kind: transport.UpdateCommand, Command: &inv})
		})
	})

	a.session.AddHandler(func(s *discordgo.Session, ev *discordgo.Disconnect) {
		a.log.Warn("gateway disconnected")
	})
	a.session.AddHandler(func(s *discordgo.Session, ev *discordgo.Resumed) {
		a.log.Info("gateway session resumed")
	})
}

func (a *Adapter) guildName(guildID string) string {
	if guildID == "" {
		return ""
	}
	if g, err := a.session.State.Guild(guildID); err == nil && g != nil {
		return g.Name
	}
	g, err := a.session.Guild(guildID)
	if err != nil {
		a.log.Debug("guild lookup failed", logx.String("guild_id", guildID), logx.Err(err))
		return ""
	}
	return g.Name
}

// isAdmin reports whether the user holds Administrator in the channel.
// Guild owners resolve to all permissions.
func (a *Adapter) isAdmin(userID, channelID string) bool {
	perms, err := a.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		a.log.Debug("permission lookup failed", logx.String("user_id", userID), logx.Err(classify(err)))
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// Start verifies the token, opens the gateway and begins forwarding events to out.
func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}

	if _, err := a.session.User("@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: verify token: %w", classify(err))
	}

	a.outbox.Attach(out)
	if err := a.session.Open(); err != nil {
		a.outbox.Attach(nil)
		return fmt.Errorf("discord: open gateway: %w", classify(err))
	}
	a.running = true

	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false),
	)
	a.sup.Go0("updates.drop_report", func(c context.Context) {
		a.outbox.ReportDrops(c, a.log, 5*time.Second)
	})
	a.log.Info("gateway connected")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	a.outbox.Attach(nil)
	if !wasRunning {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates", a.outbox.Dropped()))

	err := a.session.Close()
	if sup != nil {
		sup.Cancel()
		if werr := sup.Wait(ctx); werr != nil {
			a.log.Warn("discord stop timed out", logx.Err(werr))
		}
	}
	return err
}

func (a *Adapter) SendDirect(ctx context.Context, userID, text string) error {
	ch, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDirect(err)
	}
	if _, err := a.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return classifyDirect(err)
	}
	return nil
}

func (a *Adapter) Reply(ctx context.Context, to transport.ChatTarget, text string) error {
	_, err := a.session.ChannelMessageSend(to.ChannelID, text, discordgo.WithContext(ctx))
	return classify(err)
}

func (a *Adapter) ReplyCard(ctx context.Context, to transport.ChatTarget, card transport.Card) error {
	_, err := a.session.ChannelMessageSendEmbed(to.ChannelID, toEmbed(card), discordgo.WithContext(ctx))
	return classify(err)
}

// SetPresence shows "Watching <text>" on the bot profile.
func (a *Adapter) SetPresence(ctx context.Context, text string) error {
	return a.session.UpdateWatchStatus(0, text)
}

func (a *Adapter) Stats() transport.Stats {
	st := a.session.State
	if st == nil {
		return transport.Stats{}
	}
	st.RLock()
	groups := len(st.Guilds)
	self := st.User
	st.RUnlock()
	return transport.Stats{
		Groups:  groups,
		Latency: a.session.HeartbeatLatency(),
		Self:    toMember(self),
		Avatar:  avatarURL(self),
	}
}
