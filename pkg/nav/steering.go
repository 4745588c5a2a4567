package nav

// ControllerState is the PID memory carried between ticks of one segment.
type ControllerState struct {
	PreviousError int
	Integral      int64
}

// Steer is the result of one controller tick.
type Steer struct {
	Error           int
	PowerDifference int
	Command         MotorCommand
}

// Steering is a fixed-point PID controller for differential drive.
// One wheel always runs at BaseSpeed and the other is slowed, so normal
// following never commands reverse power.
type Steering struct {
	gains    Gains
	base     int
	maxPower int
	state    ControllerState
}

// NewSteering creates a controller from cfg.
func NewSteering(cfg Config) *Steering {
	return &Steering{
		gains:    cfg.Gains,
		base:     cfg.BaseSpeed,
		maxPower: cfg.MaxPower,
	}
}

// Step consumes one line position and returns the wheel command.
func (s *Steering) Step(position int) Steer {
	errv := position - Center
	derivative := errv - s.state.PreviousError
	s.state.Integral += int64(errv)
	s.state.PreviousError = errv

	diff := errv/s.gains.PInv +
		int(s.state.Integral/int64(s.gains.IInv)) +
		derivative*s.gains.DNum/s.gains.DDen
	diff = clamp(diff, s.base)

	cmd := MotorCommand{Left: s.base, Right: s.base - diff}
	if diff < 0 {
		cmd = MotorCommand{Left: s.base + diff, Right: s.base}
	}

	return Steer{
		Error:           errv,
		PowerDifference: diff,
		Command:         cmd.Clamp(s.maxPower),
	}
}

// Reset zeroes the controller state.
func (s *Steering) Reset() {
	s.state = ControllerState{}
}

// State returns the current controller state.
func (s *Steering) State() ControllerState {
	return s.state
}
