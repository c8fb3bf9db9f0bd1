package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"welcomebot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	cases := map[string]string{
		"*/5 * * * *": "*/5 * * * *",
		"@hourly":     "@hourly",
		"@every 30m":  "@every 30m",
		"10m":         "@every 10m0s",
		"01:30":       "@every 1h30m0s",
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseSchedule(raw)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}

	for _, bad := range []string{"", "soon", "-5m", "00:00", "01:75"} {
		_, err := ParseSchedule(bad)
		require.Error(t, err, bad)
	}
}

func TestService_AddValidatesSpec(t *testing.T) {
	s := New(Config{Enabled: true}, logx.Nop())
	job := func(ctx context.Context) error { return nil }

	require.Error(t, s.Add("bad", "61 * * * *", 0, job))
	require.Error(t, s.Add("", "@hourly", 0, job))
	require.NoError(t, s.Add("ok", "@hourly", 0, job))
	require.NoError(t, s.Add("ok", "", 0, job))
	require.Empty(t, s.Snapshot())
}

func TestService_RunsJobs(t *testing.T) {
	req := require.New(t)
	s := New(Config{Enabled: true}, logx.Nop())
	var runs atomic.Int32
	req.NoError(s.Add("tick", "@every 1s", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("expected")
	}))

	s.Start(context.Background())
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	req.Len(snap, 1)
	req.False(snap[0].Next.IsZero())

	req.Eventually(func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	req.Eventually(func() bool {
		snap := s.Snapshot()
		return snap[0].Runs > 0 && snap[0].LastErr == "expected"
	}, time.Second, 20*time.Millisecond)
}

func TestService_DisabledDoesNotStart(t *testing.T) {
	s := New(Config{Enabled: false}, logx.Nop())
	require.NoError(t, s.Add("tick", "@every 1s", 0, func(ctx context.Context) error { return nil }))
	s.Start(context.Background())
	require.True(t, s.Snapshot()[0].Next.IsZero())

	s.Apply(Config{Enabled: true})
	defer s.Stop(context.Background())
	require.False(t, s.Snapshot()[0].Next.IsZero())
}
