package welcome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"welcomebot/internal/eventbus"
	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

const (
	ColorGreen = 0x2ecc71
	ColorBlue  = 0x3498db
)

// Gateway is what the notifier needs from a connected platform client.
type Gateway interface {
	transport.Sender
	Stats() transport.Stats
}

// Delivery is the payload of welcome.* bus events.
type Delivery struct {
	Member transport.Member
	Group  transport.Group
	Err    error
}

// Notifier greets new members by DM and renders the preview/status cards.
type Notifier struct {
	gw      Gateway
	log     logx.Logger
	bus     eventbus.Bus
	stats   *Stats
	started time.Time

	tmpl atomic.Pointer[Template]

	mu     sync.RWMutex
	prefix string
}

func New(gw Gateway, tmpl Template, log logx.Logger, bus eventbus.Bus) *Notifier {
	n := &Notifier{
		gw:      gw,
		log:     log.With(logx.String("comp", "welcome")),
		bus:     bus,
		started: time.Now(),
		prefix:  "!",
	}
	n.tmpl.Store(&tmpl)
	return n
}

// SetStats attaches counters shown on the status card.
func (n *Notifier) SetStats(s *Stats) { n.stats = s }

func (n *Notifier) SetTemplate(t Template) { n.tmpl.Store(&t) }

func (n *Notifier) Template() Template { return *n.tmpl.Load() }

// SetPrefix changes the prefix shown in the status card usage text.
func (n *Notifier) SetPrefix(p string) {
	n.mu.Lock()
	n.prefix = p
	n.mu.Unlock()
}

func (n *Notifier) commandPrefix() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.prefix
}

// HandleJoin sends the rendered welcome text to a new member exactly once.
// Delivery failures are logged and never retried.
func (n *Notifier) HandleJoin(ctx context.Context, ev transport.JoinEvent) {
	log := n.log.With(
		logx.String("member", ev.Member.Name),
		logx.String("member_id", ev.Member.ID),
		logx.String("group", ev.Group.Name),
	)
	log.Info("new member joined")

	if ev.Member.Bot {
		log.Info("skipping bot account")
		n.publish(eventbus.TypeWelcomeSkipped, ev, nil)
		return
	}

	text := n.Template().Render(ev.Member.Mention, ev.Group.Name)
	err := n.gw.SendDirect(ctx, ev.Member.ID, text)
	switch {
	case err == nil:
		log.Info("welcome DM sent")
		n.publish(eventbus.TypeWelcomeSent, ev, nil)
	case errors.Is(err, transport.ErrDirectMessageForbidden):
		log.Warn("cannot DM member; direct messages are closed", logx.Err(err))
		n.publish(eventbus.TypeWelcomeBlocked, ev, err)
	default:
		log.Error("welcome DM failed", logx.Err(err))
		n.publish(eventbus.TypeWelcomeFailed, ev, err)
	}
}

func (n *Notifier) publish(typ string, ev transport.JoinEvent, err error) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(eventbus.Event{Type: typ, Data: Delivery{Member: ev.Member, Group: ev.Group, Err: err}})
}

// Preview renders the welcome text for the invoker inside the invocation's group.
// Non-admins get ErrPermissionDenied before anything is rendered.
func (n *Notifier) Preview(ctx context.Context, inv transport.Invocation) (transport.Card, error) {
	if !inv.Admin {
		return transport.Card{}, transport.ErrPermissionDenied
	}
	if !inv.InGroup() {
		return transport.Card{}, fmt.Errorf("preview: %w", transport.ErrNoGroupContext)
	}
	st := n.gw.Stats()
	return transport.Card{
		Title:       "🔍 Welcome Message Preview",
		Description: n.Template().Render(inv.Invoker.Mention, inv.Group.Name),
		Color:       ColorGreen,
		Footer:      "Welcome Bot Test",
		FooterIcon:  st.Avatar,
	}, nil
}

// Status reports connectivity and usage. Open to everyone.
func (n *Notifier) Status(ctx context.Context, inv transport.Invocation) transport.Card {
	st := n.gw.Stats()
	p := n.commandPrefix()
	counts := n.stats.Snapshot()
	return transport.Card{
		Title: "🤖 Welcome Bot Information",
		Color: ColorBlue,
		Fields: []transport.CardField{
			{Name: "Purpose", Value: "Sends Arabic welcome DMs to new members"},
			{Name: "Servers", Value: fmt.Sprint(st.Groups), Inline: true},
			{Name: "Ping", Value: fmt.Sprintf("%dms", st.Latency.Round(time.Millisecond).Milliseconds()), Inline: true},
			{Name: "Uptime", Value: strings.TrimSpace(humanize.RelTime(n.started, time.Now(), "", "")), Inline: true},
			{Name: "Welcomes", Value: fmt.Sprintf("sent %s · blocked %s · failed %s",
				humanize.Comma(int64(counts.Sent)), humanize.Comma(int64(counts.Blocked)), humanize.Comma(int64(counts.Failed)))},
			{Name: "Commands", Value: fmt.Sprintf("`%stest_welcome` - Preview message\n`%sbot_info` - Bot information", p, p)},
		},
		Footer:     "Welcome Bot",
		FooterIcon: st.Avatar,
	}
}
