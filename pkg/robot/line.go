package robot

import "github.com/gwillem/mazebot/pkg/nav"

const (
	onLineThreshold = 200 // a sensor above this sees the line
	noiseThreshold  = 50  // values at or below this are ignored
)

// LineEstimator turns calibrated readings into a line position.
//
// The position is the intensity-weighted mean of the sensor indices times
// 1000. When no sensor sees the line it reports the edge on the side the
// line was last seen.
type LineEstimator struct {
	last int
}

// Position returns the line position in [0, nav.MaxPosition].
func (e *LineEstimator) Position(r nav.Reading) int {
	var avg, sum int64
	onLine := false
	for i, v := range r {
		if v > onLineThreshold {
			onLine = true
		}
		if v > noiseThreshold {
			avg += int64(v) * int64(i*nav.MaxIntensity)
			sum += int64(v)
		}
	}

	if !onLine {
		if e.last < nav.Center {
			return 0
		}
		return nav.MaxPosition
	}

	e.last = int(avg / sum)
	return e.last
}
