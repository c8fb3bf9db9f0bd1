package welcome

import (
	"context"
	"sync/atomic"

	"welcomebot/internal/eventbus"
)

// Stats counts welcome outcomes by listening on the event bus.
type Stats struct {
	sent    atomic.Uint64
	blocked atomic.Uint64
	failed  atomic.Uint64
	skipped atomic.Uint64
}

type StatsSnapshot struct {
	Sent    uint64
	Blocked uint64
	Failed  uint64
	Skipped uint64
}

func NewStats() *Stats { return &Stats{} }

// Observe counts one event; unrelated types are ignored.
func (s *Stats) Observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeWelcomeSent:
		s.sent.Add(1)
	case eventbus.TypeWelcomeBlocked:
		s.blocked.Add(1)
	case eventbus.TypeWelcomeFailed:
		s.failed.Add(1)
	case eventbus.TypeWelcomeSkipped:
		s.skipped.Add(1)
	}
}

// Run observes bus events until ctx is done.
func (s *Stats) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.Observe(ev)
		}
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Sent:    s.sent.Load(),
		Blocked: s.blocked.Load(),
		Failed:  s.failed.Load(),
		Skipped: s.skipped.Load(),
	}
}
