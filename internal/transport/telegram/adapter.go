// Package telegram connects the bot to Telegram through telebot.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"welcomebot/internal/runtime/supervisor"
	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

const Platform = "telegram"

type Config struct {
	Token       string
	Prefix      string
	PollTimeout time.Duration
}

// Adapter is a transport.Gateway backed by a telebot long poller.
//
// Telegram has no "guild list", so the group count is the number of
// distinct groups the bot has seen traffic from since start.
type Adapter struct {
	log logx.Logger
	bot *tele.Bot

	prefix  atomic.Pointer[string]
	outbox  transport.Outbox
	latency atomic.Int64
	self    atomic.Pointer[tele.User]

	groupsMu sync.Mutex
	groups   map[int64]struct{}

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor
}

var _ transport.Gateway = (*Adapter)(nil)

// New builds the bot offline; the token is first checked by Start.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, transport.ErrConfigurationMissing
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	a := &Adapter{
		log:    log.With(logx.String("comp", "telegram")),
		groups: map[int64]struct{}{},
	}
	// Multi-member joins reuse one Message and overwrite UserJoined per
	// member, so handlers must finish before the next member is written.
	b, err := tele.NewBot(tele.Settings{
		Token:       token,
		Offline:     true,
		Synchronous: true,
		Poller: &tele.LongPoller{
			Timeout:        timeout,
			AllowedUpdates: []string{"message"},
		},
		OnError: a.onError,
	})
	if err != nil {
		return nil, err
	}
	a.bot = b
	a.SetPrefix(cfg.Prefix)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) Platform() string { return Platform }

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

func (a *Adapter) onError(err error, c tele.Context) {
	if err == nil {
		return
	}
	a.outbox.Push(transport.Update{Kind: transport.UpdateError, Err: fmt.Errorf("telegram: %w", err)})
}

func (a *Adapter) seen(c *tele.Chat) {
	if !isGroup(c) {
		return
	}
	a.groupsMu.Lock()
	a.groups[c.ID] = struct{}{}
	a.groupsMu.Unlock()
}

func (a *Adapter) groupCount() int {
	a.groupsMu.Lock()
	defer a.groupsMu.Unlock()
	return len(a.groups)
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Sender.IsBot {
			return nil
		}
		a.seen(m.Chat)
		name, args, ok := transport.ParseCommand(a.Prefix(), m.Text)
		if !ok {
			return nil
		}
		inv := transport.Invocation{
			Name:      name,
			Args:      args,
			Invoker:   toMember(m.Sender),
			Group:     toGroup(m.Chat),
			ChannelID: strconv.FormatInt(m.Chat.ID, 10),
			MessageID: strconv.Itoa(m.ID),
		}
		if inv.InGroup() {
			inv.Admin = a.isAdmin(m.Chat, m.Sender)
		}
		a.outbox.Push(transport.Update{Kind: transport.UpdateCommand, Command: &inv})
		return nil
	})

	// telebot emits one OnUserJoined per member for multi-member joins.
	// Handlers only push to the outbox, so synchronous dispatch never blocks polling.
	a.bot.Handle(tele.OnUserJoined, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.UserJoined == nil {
			return nil
		}
		a.seen(m.Chat)
		a.outbox.Push(transport.Update{
			Kind: transport.UpdateJoin,
			Join: &transport.JoinEvent{Member: toMember(m.UserJoined), Group: toGroup(m.Chat)},
		})
		return nil
	})
}

func (a *Adapter) isAdmin(chat *tele.Chat, user *tele.User) bool {
	cm, err := a.bot.ChatMemberOf(chat, user)
	if err != nil {
		a.log.Debug("chat member lookup failed", logx.Int64("chat_id", chat.ID), logx.Err(err))
		return false
	}
	return cm.Role == tele.Administrator || cm.Role == tele.Creator
}

// getMe verifies the token and records the round trip as latency.
func (a *Adapter) getMe() (*tele.User, error) {
	start := time.Now()
	raw, err := a.bot.Raw("getMe", nil)
	if err != nil {
		return nil, classify(err)
	}
	a.latency.Store(int64(time.Since(start)))

	var resp struct {
		Result tele.User `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	return &resp.Result, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}

	me, err := a.getMe()
	if err != nil {
		return fmt.Errorf("telegram: verify token: %w", err)
	}
	a.bot.Me = me
	a.self.Store(me)
	a.outbox.Attach(out)
	a.running = true

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false),
	)
	a.sup = sup

	sup.Go0("updates.drop_report", func(c context.Context) {
		a.outbox.ReportDrops(c, a.log, 5*time.Second)
	})
	sup.Go0("latency.probe", a.probeLatency)
	sup.Go0("telebot.stop_on_cancel", a.stopOnCancel)
	// telebot's Start blocks until Stop; restart it if it returns early.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	},
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		supervisor.WithStopOnCleanExit(false),
	)

	// Long polling has no ready event; report one once polling is set up.
	a.outbox.Push(transport.Update{
		Kind:  transport.UpdateReady,
		Ready: &transport.Ready{Self: toMember(me), Groups: a.groupCount()},
	})
	return nil
}

// stopOnCancel stops the poller once ctx is done. bot.Stop blocks until the
// poll loop takes the signal, which never happens if Start was not reached.
func (a *Adapter) stopOnCancel(ctx context.Context) {
	<-ctx.Done()
	go a.bot.Stop()
}

func (a *Adapter) probeLatency(ctx context.Context) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.getMe(); err != nil {
				a.log.Debug("latency probe failed", logx.Err(err))
			}
		}
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	a.outbox.Attach(nil)
	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates", a.outbox.Dropped()))
	sup.Cancel()

	// Keep shutdown snappy even while getUpdates is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func parseChatID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", id, err)
	}
	return n, nil
}

func (a *Adapter) send(ctx context.Context, to tele.Recipient, text string) error {
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.bot.Send(to, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SendDirect(ctx context.Context, userID, text string) error {
	id, err := parseChatID(userID)
	if err != nil {
		return err
	}
	return classifyDirect(a.send(ctx, &tele.User{ID: id}, text))
}

func (a *Adapter) Reply(ctx context.Context, to transport.ChatTarget, text string) error {
	id, err := parseChatID(to.ChannelID)
	if err != nil {
		return err
	}
	return classify(a.send(ctx, &tele.Chat{ID: id}, text))
}

func (a *Adapter) ReplyCard(ctx context.Context, to transport.ChatTarget, card transport.Card) error {
	return a.Reply(ctx, to, formatCard(card))
}

// SetPresence sets the bot's short description, the closest Telegram has to a status line.
func (a *Adapter) SetPresence(ctx context.Context, text string) error {
	_, err := a.bot.Raw("setMyShortDescription", map[string]string{"short_description": text})
	return classify(err)
}

func (a *Adapter) Stats() transport.Stats {
	return transport.Stats{
		Groups:  a.groupCount(),
		Latency: time.Duration(a.latency.Load()),
		Self:    toMember(a.self.Load()),
	}
}
