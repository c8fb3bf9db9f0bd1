// Package scheduler runs the bot's periodic housekeeping jobs on robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"welcomebot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA name; empty means local time
}

type JobFunc func(ctx context.Context) error

type jobDef struct {
	name    string
	spec    string
	timeout time.Duration
	fn      JobFunc
	entry   cron.EntryID
	state   *runState
}

type runState struct {
	mu      sync.Mutex
	runs    uint64
	lastErr string
	lastRun time.Time
}

// Entry is a read-only view of a registered job.
type Entry struct {
	Name    string
	Spec    string
	Next    time.Time
	LastRun time.Time
	Runs    uint64
	LastErr string
}

// Service owns one cron instance. Jobs are kept across Apply and Stop so
// they are re-registered on the next Start.
type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]*jobDef
}

func New(cfg Config, log logx.Logger) *Service {
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "scheduler")),
		// SecondOptional allows both 5-field and 6-field specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*jobDef{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Add registers or replaces the job called name. An empty schedule removes it.
func (s *Service) Add(name, schedule string, timeout time.Duration, fn JobFunc) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("scheduler: name and job required")
	}
	if strings.TrimSpace(schedule) == "" {
		s.Remove(name)
		return nil
	}
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &jobDef{name: name, spec: spec, timeout: timeout, fn: fn, state: &runState{}}
	s.jobs[name] = d
	if s.c != nil {
		if err := s.registerLocked(d); err != nil {
			return err
		}
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout))
	return nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.jobs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entry != 0 {
		s.c.Remove(d.entry)
	}
	delete(s.jobs, name)
	return true
}

func (s *Service) registerLocked(d *jobDef) error {
	id, err := s.c.AddFunc(d.spec, func() { s.run(d) })
	if err != nil {
		s.log.Error("schedule register failed", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return err
	}
	d.entry = id
	return nil
}

func (s *Service) run(d *jobDef) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx := parent
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.fn(ctx)

	d.state.mu.Lock()
	d.state.runs++
	d.state.lastRun = start
	d.state.lastErr = ""
	if err != nil {
		d.state.lastErr = err.Error()
	}
	d.state.mu.Unlock()

	if err != nil {
		s.log.Warn("job failed", logx.String("name", d.name), logx.Duration("dur", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("job ok", logx.String("name", d.name), logx.Duration("dur", time.Since(start)))
}

// Start begins triggering jobs. It is a no-op when disabled or already running;
// ctx is remembered so Apply can start the scheduler later.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = ctx
	if s.c != nil || !s.cfg.Enabled {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startLocked()
}

func (s *Service) startLocked() {
	s.loc = s.loadLocationLocked()
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, d := range s.jobs {
		_ = s.registerLocked(d)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Apply swaps the config. A timezone change restarts cron; toggling Enabled
// starts or stops it when a parent context is known.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	running := s.c != nil
	parent := s.parent
	s.mu.Unlock()

	switch {
	case running && !cfg.Enabled:
		s.Stop(context.Background())
	case running && strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone):
		s.mu.Lock()
		c := s.c
		s.c = nil
		s.startLocked()
		s.mu.Unlock()
		<-c.Stop().Done()
	case !running && cfg.Enabled && parent != nil:
		s.Start(parent)
	}
}

// Stop stops triggering and waits for running jobs until ctx is done.
// Registered jobs are kept for the next Start.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Snapshot lists registered jobs sorted by name.
func (s *Service) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for _, d := range s.jobs {
		e := Entry{Name: d.name, Spec: d.spec}
		if s.c != nil && d.entry != 0 {
			e.Next = s.c.Entry(d.entry).Next
		}
		d.state.mu.Lock()
		e.Runs = d.state.runs
		e.LastRun = d.state.lastRun
		e.LastErr = d.state.lastErr
		d.state.mu.Unlock()
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
