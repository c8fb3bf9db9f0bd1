package systemd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"welcomebot/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestNotifier(cfg Config, wd time.Duration) (*Notifier, *recorder) {
	rec := &recorder{}
	n := New(cfg, logx.Nop())
	n.notify = rec.notify
	n.watchdogEnabled = func() (time.Duration, error) { return wd, nil }
	return n, rec
}

func TestNotifier_ReadyOnce(t *testing.T) {
	n, rec := newTestNotifier(Config{Notify: true}, 0)
	n.Ready("connected")
	n.Ready("reconnected")
	n.Stopping()
	require.Equal(t, []string{"READY=1", "STATUS=connected", "STATUS=reconnected", "STOPPING=1"}, rec.snapshot())
}

func TestNotifier_Disabled(t *testing.T) {
	n, rec := newTestNotifier(Config{Notify: false, Watchdog: true}, time.Second)
	n.Ready("x")
	n.Reloading(func() {})
	n.RunWatchdog(context.Background())
	require.Empty(t, rec.snapshot())
}

func TestNotifier_Reloading(t *testing.T) {
	n, rec := newTestNotifier(Config{Notify: true}, 0)
	called := false
	n.Reloading(func() { called = true })
	require.True(t, called)
	require.Equal(t, []string{"RELOADING=1", "READY=1"}, rec.snapshot())
}

func TestNotifier_Watchdog(t *testing.T) {
	n, rec := newTestNotifier(Config{Notify: true, Watchdog: true}, 40*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.RunWatchdog(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 2 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
	require.Equal(t, "WATCHDOG=1", rec.snapshot()[0])
}

func TestNotifier_NoWatchdogConfigured(t *testing.T) {
	n, rec := newTestNotifier(Config{Notify: true, Watchdog: true}, 0)
	n.RunWatchdog(context.Background())
	require.Empty(t, rec.snapshot())
}
