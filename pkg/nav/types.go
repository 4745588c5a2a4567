// Package nav implements line following and maze exploration for a
// two-wheeled line-following robot.
package nav

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sensor array geometry.
const (
	NumSensors   = 5
	MaxIntensity = 1000
	MaxPosition  = MaxIntensity * (NumSensors - 1)
	Center       = MaxPosition / 2
)

var (
	// ErrPathFull is returned when a turn is recorded on a full path.
	ErrPathFull = errors.New("path capacity exceeded")

	// ErrSensorFault is returned when the line sensors keep failing.
	ErrSensorFault = errors.New("line sensor fault")
)

// Reading holds one intensity per sensor, left to right.
// 0 is white and MaxIntensity is the darkest calibrated value.
type Reading [NumSensors]int

// Valid reports whether every value lies in [0, MaxIntensity].
func (r Reading) Valid() bool {
	for _, v := range r {
		if v < 0 || v > MaxIntensity {
			return false
		}
	}
	return true
}

// MotorCommand is a pair of signed wheel powers.
type MotorCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Clamp limits both powers to [-max, max].
func (c MotorCommand) Clamp(max int) MotorCommand {
	return MotorCommand{Left: clamp(c.Left, max), Right: clamp(c.Right, max)}
}

func (c MotorCommand) String() string {
	return fmt.Sprintf("(%d,%d)", c.Left, c.Right)
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

// BranchSet records which continuations exist at an intersection.
type BranchSet struct {
	Left     bool
	Straight bool
	Right    bool
}

// TurnSymbol is the decision taken at an intersection.
type TurnSymbol byte

const (
	Left     TurnSymbol = 'L'
	Straight TurnSymbol = 'S'
	Right    TurnSymbol = 'R'
	Back     TurnSymbol = 'B'
)

// Valid reports whether t is one of the four symbols.
func (t TurnSymbol) Valid() bool {
	switch t {
	case Left, Straight, Right, Back:
		return true
	}
	return false
}

func (t TurnSymbol) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TurnSymbol(%d)", byte(t))
	}
	return string(rune(t))
}

// LineSensors reads the calibrated sensor array.
type LineSensors interface {
	// ReadLine returns the calibrated values and the line position in
	// [0, MaxPosition].
	ReadLine(ctx context.Context) (Reading, int, error)
}

// Motors drives the two wheels.
type Motors interface {
	SetMotors(ctx context.Context, left, right int) error
}

// Hardware is everything the exploration loop needs from the robot.
type Hardware interface {
	LineSensors
	Motors
}

// Clock provides time for open-loop motions and tick measurement.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock implements Clock using the time package.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
