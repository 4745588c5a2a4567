package nav

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Probe is what the prober found at an intersection.
type Probe struct {
	Branches BranchSet
	Goal     bool
	Faulted  bool // a sample failed and its branches were assumed absent
}

// Prober classifies an intersection after a segment ends.
//
// Side branches are sampled after a short nudge, before the robot is
// centred over the junction. The straight continuation and the goal
// pattern are sampled after the longer advance.
type Prober struct {
	hw    Hardware
	clock Clock
	cfg   Config

	// Fault, if set, is called when a sample fails.
	Fault func(error)
}

// NewProber creates an intersection prober.
func NewProber(hw Hardware, clock Clock, cfg Config) *Prober {
	return &Prober{hw: hw, clock: clock, cfg: cfg}
}

// Probe nudges forward, samples the side sensors, advances, then samples
// the centre sensors.
func (p *Prober) Probe(ctx context.Context) (Probe, error) {
	var probe Probe

	side, err := p.sample(ctx, p.cfg.NudgeSpeed, time.Duration(p.cfg.NudgeDuration))
	switch {
	case err == errSample:
		probe.Faulted = true
	case err != nil:
		return probe, err
	default:
		probe.Branches.Left = side[0] > p.cfg.SideBranchThreshold
		probe.Branches.Right = side[NumSensors-1] > p.cfg.SideBranchThreshold
	}

	ahead, err := p.sample(ctx, p.cfg.AdvanceSpeed, time.Duration(p.cfg.AdvanceDuration))
	switch {
	case err == errSample:
		probe.Faulted = true
	case err != nil:
		return probe, err
	default:
		probe.Branches.Straight = ahead[1] > p.cfg.StraightThreshold ||
			ahead[2] > p.cfg.StraightThreshold ||
			ahead[3] > p.cfg.StraightThreshold
		probe.Goal = IsGoal(ahead, p.cfg.GoalThreshold)
	}

	return probe, nil
}

// IsGoal reports whether all three centre sensors are at or above threshold.
func IsGoal(r Reading, threshold int) bool {
	return r[1] >= threshold && r[2] >= threshold && r[3] >= threshold
}

var errSample = errors.New("sample failed")

// sample drives straight at speed for d and reads the sensors. A failed or
// invalid read is reported through Fault and returned as errSample.
func (p *Prober) sample(ctx context.Context, speed int, d time.Duration) (Reading, error) {
	if err := p.hw.SetMotors(ctx, speed, speed); err != nil {
		return Reading{}, fmt.Errorf("set motors: %w", err)
	}
	p.clock.Sleep(d)

	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	r, _, err := p.hw.ReadLine(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Reading{}, ctx.Err()
		}
		p.fault(fmt.Errorf("probe read: %w", err))
		return Reading{}, errSample
	}
	if !r.Valid() {
		p.fault(fmt.Errorf("probe reading out of range: %v", r))
		return Reading{}, errSample
	}
	return r, nil
}

func (p *Prober) fault(err error) {
	if p.Fault != nil {
		p.Fault(err)
	}
}
