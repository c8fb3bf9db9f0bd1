package welcome

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"welcomebot/internal/eventbus"
	"welcomebot/internal/router"
	"welcomebot/internal/transport"
	"welcomebot/internal/transport/transporttest"
	"welcomebot/pkg/logx"
)

func newTestNotifier(t *testing.T) (*Notifier, *transporttest.Gateway, *bytes.Buffer, eventbus.Bus) {
	t.Helper()
	gw := &transporttest.Gateway{StatsValue: transport.Stats{
		Groups:  3,
		Latency: 42*time.Millisecond + 600*time.Microsecond,
		Avatar:  "https://cdn.example/avatar.png",
	}}
	var buf bytes.Buffer
	bus := eventbus.New()
	return New(gw, NewTemplate(DefaultTemplate), logx.NewWriter(&buf, "debug"), bus), gw, &buf, bus
}

func joinEvent(bot bool) transport.JoinEvent {
	return transport.JoinEvent{
		Member: transport.Member{ID: "11", Name: "newuser", Mention: "<@11>", Bot: bot},
		Group:  transport.Group{ID: "1", Name: "Test Server"},
	}
}

func TestHandleJoin_SendsOneDM(t *testing.T) {
	req := require.New(t)
	n, gw, buf, _ := newTestNotifier(t)

	n.HandleJoin(context.Background(), joinEvent(false))

	directs, replies, _ := gw.Snapshot()
	req.Len(directs, 1)
	req.Empty(replies)
	req.Equal("11", directs[0].UserID)
	req.Equal(Render(DefaultTemplate, "<@11>", "Test Server"), directs[0].Text)
	req.Contains(buf.String(), "welcome DM sent")
}

func TestHandleJoin_SkipsBots(t *testing.T) {
	req := require.New(t)
	n, gw, buf, bus := newTestNotifier(t)
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	n.HandleJoin(context.Background(), joinEvent(true))

	directs, replies, _ := gw.Snapshot()
	req.Empty(directs)
	req.Empty(replies)
	req.Contains(buf.String(), "skipping bot account")
	req.Equal(eventbus.TypeWelcomeSkipped, (<-sub).Type)
}

func TestHandleJoin_ForbiddenIsWarning(t *testing.T) {
	req := require.New(t)
	n, gw, buf, bus := newTestNotifier(t)
	gw.DirectErr = fmt.Errorf("send: %w", transport.ErrDirectMessageForbidden)
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	n.HandleJoin(context.Background(), joinEvent(false))

	directs, replies, _ := gw.Snapshot()
	req.Len(directs, 1)
	req.Empty(replies)
	req.Contains(buf.String(), `"level":"warn"`)
	req.Contains(buf.String(), "cannot DM member")
	ev := <-sub
	req.Equal(eventbus.TypeWelcomeBlocked, ev.Type)
	req.ErrorIs(ev.Data.(Delivery).Err, transport.ErrDirectMessageForbidden)
}

func TestHandleJoin_OtherFailureIsError(t *testing.T) {
	req := require.New(t)
	n, gw, buf, _ := newTestNotifier(t)
	gw.DirectErr = errors.New("http 500")

	n.HandleJoin(context.Background(), joinEvent(false))

	directs, _, _ := gw.Snapshot()
	req.Len(directs, 1)
	req.Contains(buf.String(), `"level":"error"`)
	req.Contains(buf.String(), "http 500")
}

func TestPreview_NonAdminDenied(t *testing.T) {
	n, _, _, _ := newTestNotifier(t)
	inv := transport.Invocation{Invoker: transport.Member{Mention: "@bob"}, Group: transport.Group{ID: "1", Name: "G"}}

	_, err := n.Preview(context.Background(), inv)
	require.ErrorIs(t, err, transport.ErrPermissionDenied)
}

func TestPreview_AdminUsesInvoker(t *testing.T) {
	req := require.New(t)
	n, _, _, _ := newTestNotifier(t)
	inv := transport.Invocation{
		Admin:   true,
		Invoker: transport.Member{ID: "7", Mention: "<@7>"},
		Group:   transport.Group{ID: "1", Name: "Test Server"},
	}

	card, err := n.Preview(context.Background(), inv)
	req.NoError(err)
	req.Equal("🔍 Welcome Message Preview", card.Title)
	req.Equal(ColorGreen, card.Color)
	req.Equal("Welcome Bot Test", card.Footer)
	req.Equal("https://cdn.example/avatar.png", card.FooterIcon)
	req.Equal(Render(DefaultTemplate, "<@7>", "Test Server"), card.Description)
}

func TestPreview_OutsideGroup(t *testing.T) {
	n, _, _, _ := newTestNotifier(t)
	_, err := n.Preview(context.Background(), transport.Invocation{Admin: true})
	require.ErrorIs(t, err, transport.ErrNoGroupContext)
}

func TestStatus_Card(t *testing.T) {
	req := require.New(t)
	n, _, _, _ := newTestNotifier(t)
	stats := NewStats()
	stats.Observe(eventbus.Event{Type: eventbus.TypeWelcomeSent})
	stats.Observe(eventbus.Event{Type: eventbus.TypeWelcomeBlocked})
	n.SetStats(stats)

	card := n.Status(context.Background(), transport.Invocation{})
	req.Equal("🤖 Welcome Bot Information", card.Title)
	req.Equal(ColorBlue, card.Color)
	req.Equal("Welcome Bot", card.Footer)

	fields := map[string]transport.CardField{}
	for _, f := range card.Fields {
		fields[f.Name] = f
	}
	req.Equal("Sends Arabic welcome DMs to new members", fields["Purpose"].Value)
	req.False(fields["Purpose"].Inline)
	req.Equal("3", fields["Servers"].Value)
	req.True(fields["Servers"].Inline)
	req.Equal("43ms", fields["Ping"].Value)
	req.Equal("`!test_welcome` - Preview message\n`!bot_info` - Bot information", fields["Commands"].Value)
	req.Equal("sent 1 · blocked 1 · failed 0", fields["Welcomes"].Value)
	req.NotEmpty(fields["Uptime"].Value)
}

func TestCommands_ThroughRouter(t *testing.T) {
	req := require.New(t)
	n, gw, _, _ := newTestNotifier(t)
	r := router.New(gw, logx.Nop(), nil, router.Config{Replies: router.Replies{PermissionDenied: "denied", CommandFailed: "failed"}})
	req.NoError(r.Register(n.Commands()...))

	inv := transport.Invocation{
		Name:      "test_welcome",
		Invoker:   transport.Member{ID: "7", Name: "bob", Mention: "<@7>"},
		Group:     transport.Group{ID: "1", Name: "Test Server"},
		ChannelID: "c",
	}
	r.OnCommand(context.Background(), inv)

	inv.Admin = true
	r.OnCommand(context.Background(), inv)

	inv.Name = "bot_info"
	inv.Admin = false
	r.OnCommand(context.Background(), inv)

	_, replies, _ := gw.Snapshot()
	req.Len(replies, 3)
	req.Equal("denied", replies[0].Text)
	req.Nil(replies[0].Card)
	req.NotNil(replies[1].Card)
	req.Equal("🔍 Welcome Message Preview", replies[1].Card.Title)
	req.NotNil(replies[2].Card)
	req.Equal("🤖 Welcome Bot Information", replies[2].Card.Title)
}

func TestStats_Run(t *testing.T) {
	bus := eventbus.New()
	s := NewStats()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(eventbus.Event{Type: eventbus.TypeWelcomeFailed})
		return s.Snapshot().Failed > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
