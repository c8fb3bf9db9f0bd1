package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutbox_PushDropsWhenFull(t *testing.T) {
	req := require.New(t)
	var o Outbox
	req.False(o.Push(Update{Kind: UpdateReady}))
	req.Zero(o.Dropped())

	ch := make(chan Update, 1)
	o.Attach(ch)
	req.True(o.Push(Update{Kind: UpdateReady}))
	req.False(o.Push(Update{Kind: UpdateJoin}))
	req.Equal(uint64(1), o.Dropped())
	req.Equal(UpdateReady, (<-ch).Kind)

	o.Attach(nil)
	req.False(o.Push(Update{Kind: UpdateReady}))
	req.Equal(uint64(1), o.Dropped())
}
