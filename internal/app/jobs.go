package app

import (
	"context"
	"time"

	"welcomebot/internal/config"
	"welcomebot/pkg/logx"
)

const (
	jobPresenceRefresh = "presence.refresh"
	jobStatsReport     = "stats.report"
)

// registerJobs (re)installs the housekeeping jobs; an empty schedule removes a job.
func (a *App) registerJobs(cfg *config.Config) error {
	if err := a.sched.Add(jobPresenceRefresh, cfg.Scheduler.PresenceRefresh, 15*time.Second, a.refreshPresence); err != nil {
		return err
	}
	return a.sched.Add(jobStatsReport, cfg.Scheduler.StatsReport, 5*time.Second, a.reportStats)
}

// refreshPresence reapplies the configured status; some gateways drop it after a resume.
// An empty presence is left alone, as on ready, since sending it would clear the status.
func (a *App) refreshPresence(ctx context.Context) error {
	presence := a.cfgm.Get().Gateway.Presence
	if presence == "" {
		return nil
	}
	return a.gw.SetPresence(ctx, presence)
}

func (a *App) reportStats(ctx context.Context) error {
	w := a.stats.Snapshot()
	g := a.gw.Stats()
	a.log.Info("welcome stats",
		logx.Uint64("sent", w.Sent),
		logx.Uint64("blocked", w.Blocked),
		logx.Uint64("failed", w.Failed),
		logx.Uint64("skipped", w.Skipped),
		logx.Int("groups", g.Groups),
		logx.Duration("latency", g.Latency),
	)
	return nil
}
