package transport

import (
	"context"
	"sync/atomic"
	"time"

	"welcomebot/pkg/logx"
)

// Outbox forwards adapter updates to the current consumer channel without
// blocking the platform client. Drops are counted and reported periodically.
type Outbox struct {
	out     atomic.Pointer[chan<- Update]
	dropped atomic.Uint64
}

// Attach sets the consumer channel; nil detaches it.
func (o *Outbox) Attach(out chan<- Update) {
	if out == nil {
		o.out.Store(nil)
		return
	}
	o.out.Store(&out)
}

// Push delivers up if a consumer is attached and has room. It reports whether up was delivered.
func (o *Outbox) Push(up Update) bool {
	p := o.out.Load()
	if p == nil {
		return false
	}
	select {
	case *p <- up:
		return true
	default:
		o.dropped.Add(1)
		return false
	}
}

func (o *Outbox) Dropped() uint64 { return o.dropped.Load() }

// ReportDrops logs the number of dropped updates every interval until ctx is done,
// with a final flush on exit.
func (o *Outbox) ReportDrops(ctx context.Context, log logx.Logger, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	flush := func() {
		if n := o.dropped.Swap(0); n > 0 {
			log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n))
		}
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-t.C:
			flush()
		}
	}
}
