package iocp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(2)
	ctx, cancel := context.WithCancel(context.Background())

	var done int32
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	for i := 0; i < 10; i++ {
		i := i
		err := p.Submit(ctx, func(ctx context.Context) error {
			atomic.AddInt32(&done, 1)
			return nil
		}, i%2 == 0)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&done) == 10
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestPoolPropagatesTaskError(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	boom := assert.AnError
	err := p.Submit(ctx, func(ctx context.Context) error {
		return boom
	}, true)
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("pool did not report task error")
	}
}

func TestSubmitRespectsCancellation(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Submit(ctx, func(ctx context.Context) error { return nil }, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultWidthPositive(t *testing.T) {
	assert.Greater(t, DefaultWidth(), 0)
}
