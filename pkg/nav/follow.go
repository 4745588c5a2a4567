package nav

import (
	"context"
	"fmt"
	"time"
)

// Exit is the reason a segment ended.
type Exit int

const (
	ExitLostCenter   Exit = iota + 1 // no line under the centre sensors
	ExitSideDetected                 // an outer sensor sees a branch
	ExitSensorFault                  // read failed or returned garbage
)

func (e Exit) String() string {
	switch e {
	case ExitLostCenter:
		return "lost-center"
	case ExitSideDetected:
		return "side-detected"
	case ExitSensorFault:
		return "sensor-fault"
	default:
		return fmt.Sprintf("Exit(%d)", int(e))
	}
}

// Tick describes one control tick of the follower.
type Tick struct {
	Reading  Reading
	Position int
	Steer    Steer
	Latency  time.Duration
}

// Follower keeps the robot on the line until the segment ends.
type Follower struct {
	hw       Hardware
	clock    Clock
	steering *Steering
	cfg      Config

	// Observe, if set, is called after every tick.
	Observe func(Tick)
	// Fault, if set, is called with the cause of a sensor fault exit.
	Fault func(error)
}

// NewFollower creates a segment follower.
func NewFollower(hw Hardware, clock Clock, cfg Config) *Follower {
	return &Follower{
		hw:       hw,
		clock:    clock,
		steering: NewSteering(cfg),
		cfg:      cfg,
	}
}

// Steering returns the follower's controller.
func (f *Follower) Steering() *Steering {
	return f.steering
}

// Follow runs the control loop as fast as the sensors allow and returns
// when the raw readings show the end of the segment. The controller state
// is zeroed on entry and before returning.
func (f *Follower) Follow(ctx context.Context) (Exit, error) {
	f.steering.Reset()
	defer f.steering.Reset()

	for ticks := 0; ; ticks++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if f.cfg.MaxSegmentTicks > 0 && ticks >= f.cfg.MaxSegmentTicks {
			f.fault(fmt.Errorf("no intersection after %d ticks", ticks))
			return ExitSensorFault, nil
		}

		start := f.clock.Now()
		reading, position, err := f.hw.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			f.fault(fmt.Errorf("read line: %w", err))
			return ExitSensorFault, nil
		}
		if !reading.Valid() || position < 0 || position > MaxPosition {
			f.fault(fmt.Errorf("reading out of range: %v position %d", reading, position))
			return ExitSensorFault, nil
		}

		steer := f.steering.Step(position)
		if err := f.hw.SetMotors(ctx, steer.Command.Left, steer.Command.Right); err != nil {
			return 0, fmt.Errorf("set motors: %w", err)
		}

		if f.Observe != nil {
			f.Observe(Tick{
				Reading:  reading,
				Position: position,
				Steer:    steer,
				Latency:  f.clock.Now().Sub(start),
			})
		}

		if exit, ok := f.exitFor(reading); ok {
			return exit, nil
		}
	}
}

func (f *Follower) exitFor(r Reading) (Exit, bool) {
	lost := f.cfg.LostCenterThreshold
	if r[1] < lost && r[2] < lost && r[3] < lost {
		return ExitLostCenter, true
	}
	side := f.cfg.SideExitThreshold
	if r[0] > side || r[NumSensors-1] > side {
		return ExitSideDetected, true
	}
	return 0, false
}

func (f *Follower) fault(err error) {
	if f.Fault != nil {
		f.Fault(err)
	}
}
