package robot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gwillem/mazebot/pkg/nav"
)

// SensorCalibration holds the raw range seen by one reflectance sensor.
type SensorCalibration struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Calibration holds calibration data for all sensors, left to right.
type Calibration [nav.NumSensors]SensorCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	var cal Calibration
	data, err := os.ReadFile(path)
	if err != nil {
		return cal, fmt.Errorf("read calibration file: %w", err)
	}
	if err := json.Unmarshal(data, &cal); err != nil {
		return cal, fmt.Errorf("parse calibration JSON: %w", err)
	}
	return cal, nil
}

// Normalize converts a raw reading to [0, nav.MaxIntensity].
// A sensor that never saw a range reads 0.
func (c SensorCalibration) Normalize(raw int) int {
	span := c.Max - c.Min
	if span <= 0 {
		return 0
	}
	v := (raw - c.Min) * nav.MaxIntensity / span
	if v < 0 {
		return 0
	}
	if v > nav.MaxIntensity {
		return nav.MaxIntensity
	}
	return v
}

// Apply normalizes every sensor of a raw reading.
func (c Calibration) Apply(raw nav.Reading) nav.Reading {
	var out nav.Reading
	for i, v := range raw {
		out[i] = c[i].Normalize(v)
	}
	return out
}

// IsCalibrated returns true if every sensor has a usable range.
func (c Calibration) IsCalibrated() bool {
	for _, sc := range c {
		if sc.Max <= sc.Min {
			return false
		}
	}
	return true
}

// Calibrator accumulates the raw range of each sensor while the robot
// sweeps over the line.
type Calibrator struct {
	cal     Calibration
	samples int
}

// Observe records one raw reading.
func (c *Calibrator) Observe(raw nav.Reading) {
	for i, v := range raw {
		if c.samples == 0 || v < c.cal[i].Min {
			c.cal[i].Min = v
		}
		if c.samples == 0 || v > c.cal[i].Max {
			c.cal[i].Max = v
		}
	}
	c.samples++
}

// Samples returns the number of readings observed.
func (c *Calibrator) Samples() int {
	return c.samples
}

// Calibration returns the ranges observed so far.
func (c *Calibrator) Calibration() Calibration {
	return c.cal
}
