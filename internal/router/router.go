package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"welcomebot/internal/eventbus"
	"welcomebot/internal/runtime/supervisor"
	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

// Config is the hot-reloadable part of the router.
type Config struct {
	Presence       string
	Owners         []string
	Workers        int
	CommandTimeout time.Duration
	Replies        Replies
}

// Replies are the localized texts sent back when a command fails.
type Replies struct {
	PermissionDenied string
	CommandFailed    string
}

type JoinHandler interface {
	HandleJoin(ctx context.Context, ev transport.JoinEvent)
}

type ReadyHook func(ctx context.Context, ready transport.Ready)

// CommandFailure is published on the bus for unexpected command errors.
type CommandFailure struct {
	Command string
	Group   string
	User    string
	Err     error
}

// Router turns gateway updates into handler calls. It implements
// transport.EventHandler.
type Router struct {
	sender transport.Sender
	log    logx.Logger
	bus    eventbus.Bus

	mu    sync.RWMutex
	cfg   Config
	cmds  map[string]Command
	join  JoinHandler
	hooks []ReadyHook
}

var _ transport.EventHandler = (*Router)(nil)

func New(sender transport.Sender, log logx.Logger, bus eventbus.Bus, cfg Config) *Router {
	return &Router{
		sender: sender,
		log:    log.With(logx.String("comp", "router")),
		bus:    bus,
		cfg:    normalize(cfg),
		cmds:   map[string]Command{},
	}
}

func normalize(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	cfg.Owners = append([]string(nil), cfg.Owners...)
	return cfg
}

// Register adds commands. Names are matched case-sensitively.
func (r *Router) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Handle == nil {
			return fmt.Errorf("router: invalid command %q", c.Name)
		}
		if _, dup := r.cmds[name]; dup {
			return fmt.Errorf("router: duplicate command %q", name)
		}
		c.Name = name
		r.cmds[name] = c
	}
	return nil
}

// Commands lists registered commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	out := lo.Values(r.cmds)
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Router) SetJoinHandler(h JoinHandler) {
	r.mu.Lock()
	r.join = h
	r.mu.Unlock()
}

// OnReadyHook registers fn to run after the presence update on every ready event.
func (r *Router) OnReadyHook(fn ReadyHook) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Apply swaps the hot-reloadable settings. Safe during dispatch.
// Workers only takes effect on the next DispatchLoop.
func (r *Router) Apply(cfg Config) {
	cfg = normalize(cfg)
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

func (r *Router) config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

func (r *Router) isAdmin(inv transport.Invocation) bool {
	if inv.Admin {
		return true
	}
	return lo.Contains(r.config().Owners, inv.Invoker.ID)
}

func (r *Router) OnReady(ctx context.Context, ready transport.Ready) {
	r.log.Info("connected",
		logx.String("bot", ready.Self.Name),
		logx.String("bot_id", ready.Self.ID),
		logx.Int("groups", ready.Groups),
	)

	if presence := r.config().Presence; presence != "" {
		if err := r.sender.SetPresence(ctx, presence); err != nil {
			r.log.Warn("set presence failed", logx.Err(err))
		}
	}

	r.mu.RLock()
	hooks := append([]ReadyHook(nil), r.hooks...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, ready)
	}
	r.publish(eventbus.TypeGatewayReady, ready)
}

func (r *Router) OnMemberJoin(ctx context.Context, ev transport.JoinEvent) {
	r.mu.RLock()
	h := r.join
	r.mu.RUnlock()
	if h == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in join handler", logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()
	h.HandleJoin(ctx, ev)
}

func (r *Router) OnCommand(ctx context.Context, inv transport.Invocation) {
	r.mu.RLock()
	cmd, ok := r.cmds[inv.Name]
	r.mu.RUnlock()

	cfg := r.config()
	req := &Request{
		Invocation: inv,
		Chat:       transport.ChatTarget{ChannelID: inv.ChannelID},
		Command:    inv.Name,
		ReqID:      newReqID(),
		Admin:      r.isAdmin(inv),
		Sender:     r.sender,
	}
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.String("cmd", inv.Name),
		logx.String("user_id", inv.Invoker.ID),
		logx.String("channel_id", inv.ChannelID),
	)

	if !ok {
		r.HandleError(ctx, req, fmt.Errorf("%w: %s", transport.ErrUnknownCommand, inv.Name))
		return
	}
	if cmd.Access == AccessAdmin && !req.Admin {
		r.HandleError(ctx, req, transport.ErrPermissionDenied)
		return
	}

	timeout := cfg.CommandTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)
	r.HandleError(ctx, req, final(ctx, req))
}

// HandleError maps a command error to the user-visible outcome:
// permission problems get the localized denial, unknown commands are
// ignored, everything else is logged and answered with the generic failure text.
func (r *Router) HandleError(ctx context.Context, req *Request, err error) {
	if err == nil {
		return
	}
	replies := r.config().Replies
	switch {
	case errors.Is(err, transport.ErrUnknownCommand):
		req.Logger.Debug("unknown command ignored")
		return
	case errors.Is(err, transport.ErrPermissionDenied):
		req.Logger.Info("permission denied")
		r.reply(ctx, req, replies.PermissionDenied)
	default:
		req.Logger.Error("command failed", logx.Err(err))
		r.publish(eventbus.TypeCommandFailed, CommandFailure{
			Command: req.Command,
			Group:   req.Invocation.Group.Name,
			User:    req.Invocation.Invoker.Name,
			Err:     err,
		})
		r.reply(ctx, req, replies.CommandFailed)
	}
}

func (r *Router) reply(ctx context.Context, req *Request, text string) {
	if text == "" {
		return
	}
	if err := req.Reply(ctx, text); err != nil {
		req.Logger.Warn("error reply failed", logx.Err(err))
	}
}

func (r *Router) OnError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	r.log.Error("gateway error", logx.Err(err))
}

func (r *Router) publish(typ string, data any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Dispatch routes a single update to the matching handler.
func (r *Router) Dispatch(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateReady:
		if up.Ready != nil {
			r.OnReady(ctx, *up.Ready)
		}
	case transport.UpdateJoin:
		if up.Join != nil {
			r.OnMemberJoin(ctx, *up.Join)
		}
	case transport.UpdateCommand:
		if up.Command != nil {
			r.OnCommand(ctx, *up.Command)
		}
	case transport.UpdateError:
		r.OnError(ctx, up.Err)
	}
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
// With one worker (the default) handlers run strictly in arrival order.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := r.config().Workers
	jobs := make(chan transport.Update, workers)

	sup := supervisor.New(ctx,
		supervisor.WithLogger(r.log),
		supervisor.WithCancelOnError(false),
	)
	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("dispatch.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-jobs:
					if !ok {
						return nil
					}
					r.Dispatch(c, up)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}
	r.log.Info("dispatcher started", logx.Int("workers", workers))

	defer func() {
		close(jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		sup.Cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case jobs <- up:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
