package router

import (
	"context"
	"time"

	"github.com/google/uuid"

	"welcomebot/internal/transport"
	"welcomebot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin admits group administrators and configured owners.
	AccessAdmin
)

func (a Access) String() string {
	if a == AccessAdmin {
		return "admin"
	}
	return "everyone"
}

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Description string
	Access      Access
	// Timeout overrides router.command_timeout when positive.
	Timeout time.Duration
	Handle  HandlerFunc
}

// Request is one command invocation as seen by a handler.
type Request struct {
	Invocation transport.Invocation
	Chat       transport.ChatTarget
	Command    string
	ReqID      string

	// Admin is true when the invoker is a group administrator or an owner.
	Admin bool

	Sender transport.Sender
	Logger logx.Logger
}

func (r *Request) Reply(ctx context.Context, text string) error {
	return r.Sender.Reply(ctx, r.Chat, text)
}

func (r *Request) ReplyCard(ctx context.Context, card transport.Card) error {
	return r.Sender.ReplyCard(ctx, r.Chat, card)
}

func newReqID() string {
	id := uuid.NewString()
	return id[:8]
}
