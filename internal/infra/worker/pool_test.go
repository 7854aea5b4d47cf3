//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func TestPool(t *testing.T) {
	t.Run("runs every submitted task", func(t *testing.T) {
		p := NewPool(4, newTestLogger())
		p.Start(context.Background())
		defer p.Stop()

		var n int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			if err := p.Submit(func(ctx context.Context) error {
				defer wg.Done()
				atomic.AddInt32(&n, 1)
				return nil
			}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		wg.Wait()
		if n != 10 {
			t.Errorf("expected 10 runs, got %d", n)
		}
	})

	t.Run("a panicking task does not kill the worker", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		p.Start(context.Background())
		defer p.Stop()

		done := make(chan struct{})
		_ = p.Submit(func(ctx context.Context) error { panic("boom") })
		_ = p.Submit(func(ctx context.Context) error { close(done); return nil })
		<-done
	})

	t.Run("rejects when saturated", func(t *testing.T) {
		p := NewPool(1, newTestLogger()) // not started, queue holds 4
		var err error
		for i := 0; i < 5; i++ {
			err = p.Submit(func(ctx context.Context) error { return nil })
		}
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("submit wait queues once a slot frees", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		for i := 0; i < 4; i++ {
			if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
				t.Fatalf("fill: %v", err)
			}
		}
		ran := make(chan struct{})
		queued := make(chan error, 1)
		go func() {
			queued <- p.SubmitWait(context.Background(), func(ctx context.Context) error { close(ran); return nil })
		}()

		p.Start(context.Background())
		defer p.Stop()

		if err := <-queued; err != nil {
			t.Fatalf("expected the task queued, got %v", err)
		}
		<-ran
	})

	t.Run("submit wait gives up with the context", func(t *testing.T) {
		p := NewPool(1, newTestLogger()) // not started, queue holds 4
		for i := 0; i < 4; i++ {
			_ = p.Submit(func(ctx context.Context) error { return nil })
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.SubmitWait(ctx, func(ctx context.Context) error { return nil })

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
