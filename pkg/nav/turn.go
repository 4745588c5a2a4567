package nav

import (
	"context"
	"fmt"
	"time"
)

// SelectTurn picks a branch using the left-hand rule: left, then straight,
// then right, and back when the intersection is a dead end.
func SelectTurn(b BranchSet) TurnSymbol {
	switch {
	case b.Left:
		return Left
	case b.Straight:
		return Straight
	case b.Right:
		return Right
	default:
		return Back
	}
}

// Executor performs open-loop timed pivots. Accuracy depends on battery
// voltage and floor friction; there is no feedback during the motion.
type Executor struct {
	hw    Motors
	clock Clock
	speed int
	dur   time.Duration
}

// NewExecutor creates a turn executor.
func NewExecutor(hw Motors, clock Clock, cfg Config) *Executor {
	return &Executor{
		hw:    hw,
		clock: clock,
		speed: cfg.TurnSpeed,
		dur:   time.Duration(cfg.TurnDuration),
	}
}

// Execute pivots in place for t and stops the motors. Straight does nothing.
func (e *Executor) Execute(ctx context.Context, t TurnSymbol) error {
	var cmd MotorCommand
	d := e.dur
	switch t {
	case Straight:
		return nil
	case Left:
		cmd = MotorCommand{Left: -e.speed, Right: e.speed}
	case Right:
		cmd = MotorCommand{Left: e.speed, Right: -e.speed}
	case Back:
		cmd = MotorCommand{Left: e.speed, Right: -e.speed}
		d *= 2
	default:
		return fmt.Errorf("unknown turn %v", t)
	}

	if err := e.hw.SetMotors(ctx, cmd.Left, cmd.Right); err != nil {
		return fmt.Errorf("turn %v: %w", t, err)
	}
	e.clock.Sleep(d)
	if err := e.hw.SetMotors(ctx, 0, 0); err != nil {
		return fmt.Errorf("stop after turn %v: %w", t, err)
	}
	return nil
}
