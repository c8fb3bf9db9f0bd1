package logx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSender) send(ctx context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, channelID+"|"+text)
	return nil
}

func (r *recordingSender) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestService_ChatSinkMirrorsWarnings(t *testing.T) {
	rec := &recordingSender{}
	svc, log := New(Config{
		Level: "debug",
		Chat:  ChatConfig{Enabled: true, ChannelID: "ops", MinLevel: "warn", RatePerSec: 50},
	}, ChatSenderFunc(rec.send))
	defer svc.Close()

	log.Info("not mirrored")
	log.Warn("cannot DM member", String("member", "bob"))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	line := rec.snapshot()[0]
	require.True(t, strings.HasPrefix(line, "ops|[WARN] cannot DM member\n"))
	require.Contains(t, line, "- member=bob")
}

func TestService_ApplyChangesLevel(t *testing.T) {
	svc, log := New(Config{Level: "info"}, nil)
	defer svc.Close()
	require.False(t, log.Enabled(LevelDebug))

	svc.Apply(Config{Level: "debug"})
	require.True(t, log.Enabled(LevelDebug))
}
