package nav

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes JSON as "200ms".
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("parse duration %s: %w", data, err)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Gains holds the fixed-point PID constants. The steering output is
// error/PInv + integral/IInv + derivative*DNum/DDen.
type Gains struct {
	PInv int `json:"p_inv"`
	IInv int `json:"i_inv"`
	DNum int `json:"d_num"`
	DDen int `json:"d_den"`
}

// Config holds navigation tuning.
type Config struct {
	Gains     Gains `json:"gains"`
	BaseSpeed int   `json:"base_speed"`
	MaxPower  int   `json:"max_power"` // platform drive range

	// Segment exit thresholds, applied to raw readings.
	LostCenterThreshold int `json:"lost_center_threshold"`
	SideExitThreshold   int `json:"side_exit_threshold"`

	// Intersection probing.
	SideBranchThreshold int      `json:"side_branch_threshold"`
	StraightThreshold   int      `json:"straight_threshold"`
	GoalThreshold       int      `json:"goal_threshold"`
	NudgeSpeed          int      `json:"nudge_speed"`
	NudgeDuration       Duration `json:"nudge_duration"`
	AdvanceSpeed        int      `json:"advance_speed"`
	AdvanceDuration     Duration `json:"advance_duration"`

	// Open-loop pivots. Back turns for twice TurnDuration.
	TurnSpeed    int      `json:"turn_speed"`
	TurnDuration Duration `json:"turn_duration"`

	PathCapacity    int `json:"path_capacity"`
	MaxSegmentTicks int `json:"max_segment_ticks"` // 0 = unlimited
	MaxSensorFaults int `json:"max_sensor_faults"`
}

// DefaultConfig returns the tuning used on the reference 3pi.
func DefaultConfig() Config {
	return Config{
		Gains:               Gains{PInv: 20, IInv: 10000, DNum: 3, DDen: 2},
		BaseSpeed:           60,
		MaxPower:            255,
		LostCenterThreshold: 100,
		SideExitThreshold:   200,
		SideBranchThreshold: 100,
		StraightThreshold:   200,
		GoalThreshold:       600,
		NudgeSpeed:          50,
		NudgeDuration:       Duration(50 * time.Millisecond),
		AdvanceSpeed:        40,
		AdvanceDuration:     Duration(200 * time.Millisecond),
		TurnSpeed:           80,
		TurnDuration:        Duration(200 * time.Millisecond),
		PathCapacity:        100,
		MaxSegmentTicks:     0,
		MaxSensorFaults:     3,
	}
}

// Validate checks that the configuration can drive the robot.
func (c Config) Validate() error {
	if c.Gains.PInv == 0 || c.Gains.IInv == 0 || c.Gains.DDen == 0 {
		return fmt.Errorf("gains: divisors must be non-zero")
	}
	if c.MaxPower <= 0 {
		return fmt.Errorf("max_power must be positive, got %d", c.MaxPower)
	}
	if c.BaseSpeed <= 0 || c.BaseSpeed > c.MaxPower {
		return fmt.Errorf("base_speed must be in (0, %d], got %d", c.MaxPower, c.BaseSpeed)
	}
	for name, v := range map[string]int{
		"nudge_speed":   c.NudgeSpeed,
		"advance_speed": c.AdvanceSpeed,
		"turn_speed":    c.TurnSpeed,
	} {
		if v < 0 || v > c.MaxPower {
			return fmt.Errorf("%s must be in [0, %d], got %d", name, c.MaxPower, v)
		}
	}
	if c.NudgeDuration < 0 || c.AdvanceDuration < 0 || c.TurnDuration <= 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.PathCapacity <= 0 {
		return fmt.Errorf("path_capacity must be positive, got %d", c.PathCapacity)
	}
	if c.MaxSegmentTicks < 0 {
		return fmt.Errorf("max_segment_ticks must not be negative")
	}
	if c.MaxSensorFaults <= 0 {
		return fmt.Errorf("max_sensor_faults must be positive, got %d", c.MaxSensorFaults)
	}
	return nil
}
