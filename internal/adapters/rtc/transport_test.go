package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingTransport() *Transport {
	return &Transport{ready: make(chan struct{}), done: make(chan struct{})}
}

func TestWaitReadyTimeoutLeavesNoHooks(t *testing.T) {
	tr := pendingTransport()
	for range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		err := tr.waitReady(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	tr.closeMu.Lock()
	defer tr.closeMu.Unlock()
	assert.Empty(t, tr.hooks)
}

func TestWaitReady(t *testing.T) {
	tr := pendingTransport()
	close(tr.ready)
	assert.NoError(t, tr.waitReady(context.Background()))

	tr = pendingTransport()
	errc := make(chan error, 1)
	go func() { errc <- tr.waitReady(context.Background()) }()
	close(tr.done)
	assert.ErrorIs(t, <-errc, ErrTransportClosed)
}
