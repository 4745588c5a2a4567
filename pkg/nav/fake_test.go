package nav

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errScriptDone = errors.New("sensor script exhausted")

// step is one scripted sensor read.
type step struct {
	reading  Reading
	position int
	err      error
}

// fakeHardware replays a sensor script and records every motor command.
// When the script runs out every read fails.
type fakeHardware struct {
	script    []step
	reads     int
	commands  []MotorCommand
	events    []string
	motorErr  error
	clock     *fakeClock
	afterRead func(n int)
}

func newFakeHardware(clock *fakeClock, script ...step) *fakeHardware {
	hw := &fakeHardware{script: script, clock: clock}
	clock.hw = hw
	return hw
}

func (h *fakeHardware) ReadLine(ctx context.Context) (Reading, int, error) {
	n := h.reads
	h.reads++
	if h.afterRead != nil {
		defer h.afterRead(h.reads)
	}
	if n >= len(h.script) {
		return Reading{}, 0, errScriptDone
	}
	s := h.script[n]
	return s.reading, s.position, s.err
}

func (h *fakeHardware) SetMotors(ctx context.Context, left, right int) error {
	if h.motorErr != nil {
		return h.motorErr
	}
	h.commands = append(h.commands, MotorCommand{Left: left, Right: right})
	h.events = append(h.events, fmt.Sprintf("motors(%d,%d)", left, right))
	return nil
}

func (h *fakeHardware) lastCommand() MotorCommand {
	if len(h.commands) == 0 {
		return MotorCommand{}
	}
	return h.commands[len(h.commands)-1]
}

// fakeClock records sleeps and never blocks.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	hw     *fakeHardware
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.hw != nil {
		c.hw.events = append(c.hw.events, fmt.Sprintf("sleep(%v)", d))
	}
}

// Common readings.
var (
	centered  = step{reading: Reading{0, 0, 1000, 0, 0}, position: Center}
	lost      = step{reading: Reading{0, 0, 0, 0, 0}, position: 0}
	sideLeft  = step{reading: Reading{900, 600, 300, 0, 0}, position: 800}
	leftOnly  = step{reading: Reading{500, 0, 0, 0, 0}, position: 0}
	rightOnly = step{reading: Reading{0, 0, 0, 0, 500}, position: MaxPosition}
	nothing   = step{reading: Reading{0, 0, 0, 0, 0}, position: 0}
	ahead     = step{reading: Reading{0, 0, 500, 0, 0}, position: Center}
	goal      = step{reading: Reading{0, 700, 900, 700, 0}, position: Center}
)

func repeat(s step, n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func script(parts ...[]step) []step {
	var out []step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func one(s step) []step { return []step{s} }
