// Package transporttest provides an in-memory gateway for handler tests.
package transporttest

import (
	"context"
	"sync"

	"welcomebot/internal/transport"
)

type DirectMessage struct {
	UserID string
	Text   string
}

type Reply struct {
	Target transport.ChatTarget
	Text   string
	Card   *transport.Card
}

// Gateway records everything sent through it. Set the *Err fields to make
// the matching call fail.
type Gateway struct {
	mu sync.Mutex

	DirectErr   error
	ReplyErr    error
	PresenceErr error

	StatsValue transport.Stats

	Directs   []DirectMessage
	Replies   []Reply
	Presences []string
}

var _ transport.Gateway = (*Gateway)(nil)

func (g *Gateway) Platform() string { return "fake" }

func (g *Gateway) Start(ctx context.Context, out chan<- transport.Update) error {
	<-ctx.Done()
	return nil
}

func (g *Gateway) Stop(ctx context.Context) error { return nil }

func (g *Gateway) Stats() transport.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.StatsValue
}

func (g *Gateway) SendDirect(ctx context.Context, userID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Directs = append(g.Directs, DirectMessage{UserID: userID, Text: text})
	return g.DirectErr
}

func (g *Gateway) Reply(ctx context.Context, to transport.ChatTarget, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Replies = append(g.Replies, Reply{Target: to, Text: text})
	return g.ReplyErr
}

func (g *Gateway) ReplyCard(ctx context.Context, to transport.ChatTarget, card transport.Card) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := card
	g.Replies = append(g.Replies, Reply{Target: to, Card: &c})
	return g.ReplyErr
}

func (g *Gateway) SetPresence(ctx context.Context, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Presences = append(g.Presences, text)
	return g.PresenceErr
}

// Snapshot returns copies of the recorded calls.
func (g *Gateway) Snapshot() (directs []DirectMessage, replies []Reply, presences []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]DirectMessage(nil), g.Directs...),
		append([]Reply(nil), g.Replies...),
		append([]string(nil), g.Presences...)
}
