package transport

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateReady   UpdateKind = "ready"
	UpdateJoin    UpdateKind = "member_join"
	UpdateCommand UpdateKind = "command"
	UpdateError   UpdateKind = "error"
)

// Update is a single gateway notification handed from an adapter to the router.
// Exactly one of the pointer fields is set, matching Kind.
type Update struct {
	Kind    UpdateKind
	Ready   *Ready
	Join    *JoinEvent
	Command *Invocation
	Err     error
}

// Member identifies a user on the chat platform.
type Member struct {
	ID      string
	Name    string
	Mention string // platform-specific reference, e.g. "<@123>" or "@name"
	Bot     bool
}

// Group is a server/guild/group chat.
type Group struct {
	ID   string
	Name string
}

type Ready struct {
	Self   Member
	Groups int
}

type JoinEvent struct {
	Member Member
	Group  Group
}

// Invocation is a prefix-triggered text command.
// Group is zero when the command was sent in a direct message.
type Invocation struct {
	Name      string
	Args      []string
	Invoker   Member
	Admin     bool
	Group     Group
	ChannelID string
	MessageID string
}

func (i Invocation) InGroup() bool { return i.Group.ID != "" }

// ChatTarget is where a reply goes.
type ChatTarget struct {
	ChannelID string
}

// Card is a structured reply (embed on Discord, formatted text elsewhere).
type Card struct {
	Title       string
	Description string
	Color       int
	Fields      []CardField
	Footer      string
	FooterIcon  string
}

type CardField struct {
	Name   string
	Value  string
	Inline bool
}

// Stats is a best-effort view of gateway connectivity.
type Stats struct {
	Groups  int
	Latency time.Duration
	Self    Member
	Avatar  string
}

// EventHandler receives the four notifications a gateway delivers.
type EventHandler interface {
	OnReady(ctx context.Context, r Ready)
	OnMemberJoin(ctx context.Context, ev JoinEvent)
	OnCommand(ctx context.Context, inv Invocation)
	OnError(ctx context.Context, err error)
}

// Sender is the outbound half of a gateway.
type Sender interface {
	SendDirect(ctx context.Context, userID, text string) error
	Reply(ctx context.Context, to ChatTarget, text string) error
	ReplyCard(ctx context.Context, to ChatTarget, card Card) error
	SetPresence(ctx context.Context, text string) error
}

// Gateway is a connected chat platform client.
type Gateway interface {
	Sender

	Platform() string
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
	Stats() Stats
}
