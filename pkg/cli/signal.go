package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waftester/reportforge/pkg/defaults"
)

// ErrInterrupted is the cancel cause of a context cancelled by SIGINT or
// SIGTERM. Exports report it through context.Cause.
var ErrInterrupted = errors.New("interrupted")

// Interrupt configures SignalContext.
type Interrupt struct {
	// Grace is how long a second signal forces an exit after the first.
	Grace time.Duration

	// OnInterrupt runs once when the first signal arrives, before the
	// context is cancelled. Commands use it to stop spinners and say
	// that exports are being abandoned.
	OnInterrupt func(os.Signal)

	signals chan os.Signal
	exit    func(int)
}

// SignalContext returns a context cancelled with ErrInterrupted on
// SIGINT/SIGTERM. A second signal within the grace period exits the
// process with ExitInternalError without waiting for exports to unwind.
//
//	ctx, cancel := cli.SignalContext(cli.Interrupt{Grace: duration.ShutdownGrace})
//	defer cancel()
func SignalContext(in Interrupt) (context.Context, context.CancelFunc) {
	ctx, cancelCause := context.WithCancelCause(context.Background())
	cancel := func() { cancelCause(context.Canceled) }

	sigs := in.signals
	owned := sigs == nil
	if owned {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	}
	exit := in.exit
	if exit == nil {
		exit = os.Exit
	}

	go func() {
		if owned {
			defer signal.Stop(sigs)
		}
		var sig os.Signal
		select {
		case sig = <-sigs:
		case <-ctx.Done():
			return
		}
		if in.OnInterrupt != nil {
			in.OnInterrupt(sig)
		}
		cancelCause(ErrInterrupted)

		select {
		case <-sigs:
			exit(defaults.ExitInternalError)
		case <-time.After(in.Grace):
		}
	}()

	return ctx, cancel
}
