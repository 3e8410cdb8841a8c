package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// SpinnerType represents different spinner animation styles
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerLine
)

// Spinner holds spinner animation frames
type Spinner struct {
	Frames   []string
	Interval time.Duration
}

// Spinners provides the available spinner animation styles
var Spinners = map[SpinnerType]Spinner{
	SpinnerDots: {
		Frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		Interval: 80 * time.Millisecond,
	},
	SpinnerLine: {
		Frames:   []string{"-", "\\", "|", "/"},
		Interval: 100 * time.Millisecond,
	},
}

// Activity animates a spinner next to a message while work runs. On
// anything but an interactive terminal it prints the message once.
type Activity struct {
	message string
	spinner Spinner
	animate bool

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewActivity returns an Activity for message.
func NewActivity(message string) *Activity {
	return &Activity{
		message: Clean(message),
		spinner: DefaultSpinner(),
		animate: Terminal().Interactive && !IsSilent(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation. It does nothing once Stop has run.
func (a *Activity) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped {
		return
	}
	a.started = true
	if !a.animate {
		PrintInfo(a.message)
		close(a.done)
		return
	}
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.spinner.Interval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			f := a.spinner.Frames[frame%len(a.spinner.Frames)]
			fmt.Fprintf(output(), "\r  %s %s", SpinnerStyle.Render(f), a.message)
			select {
			case <-a.stop:
				fmt.Fprintf(output(), "\r%s\r", strings.Repeat(" ", len(a.message)+6))
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the animation and clears its line. It may run more than once,
// and before Start when an interrupt lands first.
func (a *Activity) Stop() {
	a.mu.Lock()
	if !a.stopped {
		a.stopped = true
		close(a.stop)
	}
	started := a.started
	a.mu.Unlock()
	if started {
		<-a.done
	}
}
