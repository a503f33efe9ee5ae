package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/careconnector/gateway/internal/app"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type blockingServer struct {
	err error
}

func (b blockingServer) Run(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	<-ctx.Done()
	return nil
}

type fakeScheduler struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (f *fakeScheduler) Start() error { f.started.Store(true); return nil }
func (f *fakeScheduler) Stop() error  { f.stopped.Store(true); return nil }

func TestRun_StopsEverythingOnCancel(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{}
	a := app.New(discard, blockingServer{}, sched)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, sched.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, sched.stopped.Load())
}

func TestRun_ServerFailureStopsScheduler(t *testing.T) {
	t.Parallel()

	boom := errors.New("address in use")
	sched := &fakeScheduler{}
	err := app.New(discard, blockingServer{err: boom}, sched).Run(context.Background())

	assert.ErrorIs(t, err, boom)
	if sched.started.Load() {
		assert.True(t, sched.stopped.Load())
	}
}
