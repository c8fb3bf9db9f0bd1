// Package systemd reports service state to systemd through sd_notify.
// Outside a systemd unit every call is a silent no-op.
package systemd

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"welcomebot/pkg/logx"
)

type Config struct {
	Notify   bool
	Watchdog bool
}

type Notifier struct {
	cfg Config
	log logx.Logger

	notify          func(state string) (bool, error)
	watchdogEnabled func() (time.Duration, error)

	readyOnce sync.Once
}

func New(cfg Config, log logx.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "systemd")),
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		watchdogEnabled: func() (time.Duration, error) {
			return daemon.SdWatchdogEnabled(false)
		},
	}
}

func (n *Notifier) send(state string) {
	if !n.cfg.Notify {
		return
	}
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// Ready sends READY=1 once; later calls only update STATUS.
func (n *Notifier) Ready(status string) {
	first := false
	n.readyOnce.Do(func() { first = true })
	if first {
		n.send(daemon.SdNotifyReady)
	}
	n.Status(status)
}

func (n *Notifier) Status(text string) {
	if text != "" {
		n.send("STATUS=" + text)
	}
}

// Reloading wraps a config reload in RELOADING=1 / READY=1.
func (n *Notifier) Reloading(fn func()) {
	n.send(daemon.SdNotifyReloading)
	fn()
	n.send(daemon.SdNotifyReady)
}

func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// RunWatchdog pings WATCHDOG=1 at half the unit's WatchdogSec until ctx is done.
// It returns immediately when the unit has no watchdog configured.
func (n *Notifier) RunWatchdog(ctx context.Context) {
	if !n.cfg.Notify || !n.cfg.Watchdog {
		return
	}
	interval, err := n.watchdogEnabled()
	if err != nil {
		n.log.Warn("watchdog detection failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	every := interval / 2
	n.log.Info("watchdog enabled", logx.Duration("interval", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
