package pomodoro

import "testing"

func testSettings() Settings {
	return Settings{FocusMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15}
}

func tickN(t *Timer, n int) {
	for i := 0; i < n; i++ {
		t.Tick()
	}
}

func TestNewStartsStoppedInFocus(t *testing.T) {
	timer := New(testSettings(), nil)

	if timer.Mode() != ModeFocus {
		t.Errorf("expected focus mode, got %s", timer.Mode())
	}
	if timer.Running() {
		t.Error("timer should not be running before Start")
	}
	if got := timer.Remaining(); got != 25*60 {
		t.Errorf("expected %d seconds remaining, got %d", 25*60, got)
	}
}

func TestTickOnlyWhileRunning(t *testing.T) {
	timer := New(testSettings(), nil)

	timer.Tick()
	if got := timer.Remaining(); got != 25*60 {
		t.Errorf("paused tick changed remaining to %d", got)
	}

	timer.Start()
	timer.Tick()
	if got := timer.Remaining(); got != 25*60-1 {
		t.Errorf("expected %d seconds remaining, got %d", 25*60-1, got)
	}
}

func TestFocusCompletionFiresCallbackAndEntersBreak(t *testing.T) {
	var calls []int
	timer := New(Settings{FocusMinutes: 1, ShortBreakMinutes: 1, LongBreakMinutes: 2}, func(focusMinutes int) {
		calls = append(calls, focusMinutes)
	})

	timer.Start()
	tickN(timer, 60)

	if len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("expected one callback with 1 focus minute, got %v", calls)
	}
	if timer.Mode() != ModeShortBreak {
		t.Errorf("expected short break after focus, got %s", timer.Mode())
	}
	if got := timer.Remaining(); got != 60 {
		t.Errorf("expected 60 seconds remaining, got %d", got)
	}
	if timer.Running() {
		t.Error("timer should stop at the phase boundary")
	}

	tickN(timer, 5)
	if len(calls) != 1 {
		t.Errorf("stopped timer fired additional callbacks, got %v", calls)
	}
}

func TestFullFocusIntervalReportsConfiguredMinutes(t *testing.T) {
	var got int
	timer := New(testSettings(), func(focusMinutes int) { got = focusMinutes })

	timer.Start()
	tickN(timer, 25*60)

	if got != 25 {
		t.Errorf("expected callback with 25 focus minutes, got %d", got)
	}
	if timer.Mode() != ModeShortBreak {
		t.Errorf("expected short break after focus, got %s", timer.Mode())
	}
}

func TestBreakCompletionReturnsToFocusWithoutCallback(t *testing.T) {
	calls := 0
	timer := New(Settings{FocusMinutes: 2, ShortBreakMinutes: 1, LongBreakMinutes: 2}, func(int) {
		calls++
	})

	timer.SetMode(ModeShortBreak)
	timer.Start()
	tickN(timer, 60)

	if calls != 0 {
		t.Errorf("break completion fired the focus callback %d times", calls)
	}
	if timer.Mode() != ModeFocus {
		t.Errorf("expected focus after break, got %s", timer.Mode())
	}
}

func TestResetStopsAndRestoresDuration(t *testing.T) {
	calls := 0
	timer := New(testSettings(), func(int) { calls++ })

	timer.Start()
	timer.Tick()
	timer.Tick()
	timer.Reset()

	if timer.Running() {
		t.Error("reset should stop the timer")
	}
	if got := timer.Remaining(); got != 25*60 {
		t.Errorf("expected full duration after reset, got %d", got)
	}
	if calls != 0 {
		t.Errorf("reset fired the completion callback %d times", calls)
	}
}

func TestSkipAdvancesModeWithoutCallback(t *testing.T) {
	calls := 0
	timer := New(testSettings(), func(int) { calls++ })

	timer.Skip()
	if timer.Mode() != ModeShortBreak {
		t.Errorf("expected short break after skip, got %s", timer.Mode())
	}
	if got := timer.Remaining(); got != 5*60 {
		t.Errorf("expected 5 minutes remaining, got %d", got)
	}

	timer.Skip()
	if timer.Mode() != ModeFocus {
		t.Errorf("expected focus after second skip, got %s", timer.Mode())
	}
	if calls != 0 {
		t.Errorf("skip fired the completion callback %d times", calls)
	}
}

func TestSetModeResetsRemaining(t *testing.T) {
	timer := New(testSettings(), nil)

	timer.Start()
	timer.Tick()
	timer.SetMode(ModeLongBreak)

	if timer.Mode() != ModeLongBreak {
		t.Errorf("expected long break, got %s", timer.Mode())
	}
	if got := timer.Remaining(); got != 15*60 {
		t.Errorf("expected 15 minutes remaining, got %d", got)
	}
}

func TestUpdateSettingsAppliesOnNextEntry(t *testing.T) {
	timer := New(testSettings(), nil)

	timer.Start()
	timer.Tick()
	timer.UpdateSettings(Settings{FocusMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 20})

	if got := timer.Remaining(); got != 25*60-1 {
		t.Errorf("settings update changed the current countdown to %d", got)
	}

	timer.Skip()
	if got := timer.Remaining(); got != 10*60 {
		t.Errorf("expected new short break duration, got %d", got)
	}

	timer.Skip()
	if got := timer.Remaining(); got != 50*60 {
		t.Errorf("expected new focus duration, got %d", got)
	}
}

func TestToggle(t *testing.T) {
	timer := New(testSettings(), nil)

	timer.Toggle()
	if !timer.Running() {
		t.Error("toggle should start a stopped timer")
	}
	timer.Toggle()
	if timer.Running() {
		t.Error("toggle should pause a running timer")
	}
}
