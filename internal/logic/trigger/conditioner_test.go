package trigger

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// sample is one raw reading at a millisecond offset from t0.
type sample struct {
	ms  int
	raw bool
}

// run polls every sample in order and returns the offsets at which Poll fired.
func run(c *Conditioner, samples []sample) []int {
	var fired []int
	for _, s := range samples {
		if c.Poll(s.raw, at(s.ms)) {
			fired = append(fired, s.ms)
		}
	}
	return fired
}

func TestConditioner_ShortPulseNeverCommits(t *testing.T) {
	c := New()
	fired := run(c, []sample{
		{0, true},
		{50, true},
		{99, true},
		{100, false},
		{200, false},
	})
	if len(fired) != 0 {
		t.Errorf("pulse shorter than window fired at %v", fired)
	}
	if c.Stable() {
		t.Error("stable level should still be low")
	}
}

func TestConditioner_HeldCommitsOnce(t *testing.T) {
	c := New()
	fired := run(c, []sample{
		{0, true},
		{40, true},
		{99, true},
		{100, true},
		{150, true},
		{1000, true},
		{5000, true},
	})
	if len(fired) != 1 || fired[0] != 100 {
		t.Errorf("fired at %v, want exactly [100]", fired)
	}
	if !c.Stable() {
		t.Error("stable level should be high")
	}
}

func TestConditioner_BounceRestartsWindow(t *testing.T) {
	c := New()
	fired := run(c, []sample{
		{0, true},
		{30, false}, // bounce: candidate discarded
		{40, true},  // new window starts here
		{120, true}, // 80ms into the new window, not yet
		{139, true},
		{140, true}, // 100ms after 40
		{300, true},
	})
	if len(fired) != 1 || fired[0] != 140 {
		t.Errorf("fired at %v, want exactly [140]", fired)
	}
}

func TestConditioner_SinglePollAfterLongGap(t *testing.T) {
	c := New()
	if c.Poll(true, at(0)) {
		t.Fatal("first sample must not fire")
	}
	if !c.Poll(true, at(250)) {
		t.Error("sample past the deadline should fire")
	}
	if c.Poll(true, at(260)) {
		t.Error("event must be consumed after it was observed once")
	}
}

func TestConditioner_ReleaseDoesNotFire(t *testing.T) {
	c := New()
	run(c, []sample{{0, true}, {100, true}})

	fired := run(c, []sample{
		{200, false},
		{300, false},
		{400, false},
	})
	if len(fired) != 0 {
		t.Errorf("falling edge fired at %v", fired)
	}
	if c.Stable() {
		t.Error("stable level should be low after release")
	}
}

func TestConditioner_EachPressFiresOnce(t *testing.T) {
	c := New()
	var samples []sample
	ms := 0
	for press := 0; press < 3; press++ {
		for i := 0; i < 20; i++ {
			samples = append(samples, sample{ms, true})
			ms += 10
		}
		for i := 0; i < 20; i++ {
			samples = append(samples, sample{ms, false})
			ms += 10
		}
	}
	fired := run(c, samples)
	if len(fired) != 3 {
		t.Errorf("three presses fired %d times (%v)", len(fired), fired)
	}
}

func TestConditioner_ReleaseBounceKeepsHigh(t *testing.T) {
	c := New()
	run(c, []sample{{0, true}, {100, true}})

	fired := run(c, []sample{
		{150, false},
		{170, true}, // contact chatter while held
		{180, false},
		{190, true},
		{400, true},
	})
	if len(fired) != 0 {
		t.Errorf("chatter while held fired at %v", fired)
	}
	if !c.Stable() {
		t.Error("stable level should remain high")
	}
}

func TestConditioner_RestartDropsPendingChange(t *testing.T) {
	c := New()
	c.Poll(true, at(0))
	c.Restart()
	if c.Poll(true, at(5000)) {
		t.Fatal("a candidate from before Restart must not commit on one sample")
	}
	if !c.Poll(true, at(5100)) {
		t.Error("level held for a full window after Restart should fire")
	}
}

func TestConditioner_RestartKeepsStableLevel(t *testing.T) {
	c := New()
	run(c, []sample{{0, true}, {100, true}})
	c.Restart()
	if !c.Stable() {
		t.Error("Restart must not change the stable level")
	}
	if c.Poll(true, at(200)) {
		t.Error("Restart must not re-arm an edge that was already reported")
	}
}
