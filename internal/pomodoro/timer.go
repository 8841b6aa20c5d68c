// Package pomodoro implements the countdown state machine behind the
// study timer: three modes, manual and automatic transitions, and a
// completion callback fired when a focus interval runs out.
package pomodoro

import (
	"context"
	"sync"
	"time"
)

// Mode is a timer phase.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "short_break"
	ModeLongBreak  Mode = "long_break"
)

// Settings holds the configurable durations, in minutes. Changes take
// effect on the next mode entry.
type Settings struct {
	FocusMinutes      int
	ShortBreakMinutes int
	LongBreakMinutes  int
}

// DefaultSettings is the classic 25/5/15 split.
var DefaultSettings = Settings{
	FocusMinutes:      25,
	ShortBreakMinutes: 5,
	LongBreakMinutes:  15,
}

func (s Settings) duration(mode Mode) int {
	switch mode {
	case ModeShortBreak:
		return s.ShortBreakMinutes * 60
	case ModeLongBreak:
		return s.LongBreakMinutes * 60
	default:
		return s.FocusMinutes * 60
	}
}

// Timer is a one-second countdown over the three modes. The zero-second
// transitions: focus advances to short break after firing the completion
// callback with the elapsed focus minutes; either break returns to focus
// with no callback.
type Timer struct {
	mu         sync.Mutex
	mode       Mode
	remaining  int
	running    bool
	settings   Settings
	onComplete func(focusMinutes int)
}

// New creates a stopped timer in focus mode. onComplete may be nil.
func New(settings Settings, onComplete func(focusMinutes int)) *Timer {
	return &Timer{
		mode:       ModeFocus,
		remaining:  settings.duration(ModeFocus),
		settings:   settings,
		onComplete: onComplete,
	}
}

// Start begins or resumes the countdown.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

// Pause suspends the countdown without losing the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Toggle flips between running and paused.
func (t *Timer) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = !t.running
}

// Reset stops the countdown and restores the full duration for the
// current mode. The completion callback does not fire.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.remaining = t.settings.duration(t.mode)
}

// Skip stops the countdown and forces the next mode immediately, without
// firing the completion callback.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enterLocked(t.next())
}

// SetMode switches to the given mode, cancelling any running countdown
// and loading that mode's configured duration.
func (t *Timer) SetMode(mode Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enterLocked(mode)
}

// UpdateSettings replaces the configured durations. The new values apply
// on the next mode entry; the current countdown is untouched.
func (t *Timer) UpdateSettings(settings Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = settings
}

// Tick advances the countdown by one second. Reaching zero fires the
// completion callback (for focus mode only, with the configured focus
// minutes) and auto-advances to the next mode, stopped.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}

	t.remaining--
	if t.remaining > 0 {
		t.mu.Unlock()
		return
	}

	var callback func(int)
	var focusMinutes int
	if t.mode == ModeFocus {
		callback = t.onComplete
		focusMinutes = t.settings.FocusMinutes
	}
	t.enterLocked(t.next())
	t.mu.Unlock()

	// Invoked outside the lock so the callback may call back into the
	// timer.
	if callback != nil {
		callback(focusMinutes)
	}
}

// Run drives the timer with a one-second ticker until the context is
// cancelled.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Mode returns the current phase.
func (t *Timer) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Remaining returns the seconds left in the current countdown.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// next returns the mode an expiring or skipped countdown advances to:
// short break after focus, focus after any break.
func (t *Timer) next() Mode {
	if t.mode == ModeFocus {
		return ModeShortBreak
	}
	return ModeFocus
}

func (t *Timer) enterLocked(mode Mode) {
	t.running = false
	t.mode = mode
	t.remaining = t.settings.duration(mode)
}
