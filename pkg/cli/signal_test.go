package cli

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/reportforge/pkg/defaults"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestSignalContext_InterruptCancelsWithCause(t *testing.T) {
	var seen atomic.Value
	in := Interrupt{
		Grace:       5 * time.Second,
		OnInterrupt: func(s os.Signal) { seen.Store(s) },
		signals:     make(chan os.Signal, 1),
	}
	ctx, cancel := SignalContext(in)
	defer cancel()

	in.signals <- os.Interrupt
	waitDone(t, ctx)

	assert.ErrorIs(t, context.Cause(ctx), ErrInterrupted)
	assert.Equal(t, os.Interrupt, seen.Load())
}

func TestSignalContext_ManualCancel(t *testing.T) {
	called := false
	ctx, cancel := SignalContext(Interrupt{
		Grace:       5 * time.Second,
		OnInterrupt: func(os.Signal) { called = true },
		signals:     make(chan os.Signal, 1),
	})
	cancel()
	waitDone(t, ctx)

	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
	assert.False(t, called)
}

func TestSignalContext_SecondSignalExits(t *testing.T) {
	var code atomic.Int32
	code.Store(-1)
	in := Interrupt{
		Grace:   5 * time.Second,
		signals: make(chan os.Signal, 2),
		exit:    func(c int) { code.Store(int32(c)) },
	}
	ctx, cancel := SignalContext(in)
	defer cancel()

	in.signals <- os.Interrupt
	waitDone(t, ctx)
	in.signals <- os.Interrupt

	require.Eventually(t, func() bool {
		return code.Load() == defaults.ExitInternalError
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalContext_GraceExpires(t *testing.T) {
	var exited atomic.Bool
	in := Interrupt{
		Grace:   50 * time.Millisecond,
		signals: make(chan os.Signal, 1),
		exit:    func(int) { exited.Store(true) },
	}
	_, cancel := SignalContext(in)
	defer cancel()

	in.signals <- os.Interrupt
	time.Sleep(200 * time.Millisecond)

	assert.False(t, exited.Load(), "one signal must not force an exit")
}

func TestSignalContext_NoSignal(t *testing.T) {
	ctx, cancel := SignalContext(Interrupt{Grace: time.Second, signals: make(chan os.Signal, 1)})
	defer cancel()

	assert.NoError(t, ctx.Err())
}
