// Package trajectory keeps short rolling histories of recent positions and
// speeds and derives bearing, smoothed approach speed and approach patterns.
package trajectory

import (
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
)

const (
	positionWindow = 5
	speedWindow    = 10

	// approachSamples is how many recent speed readings feed the smoothed
	// approach speed, once at least minSamplesForAverage exist.
	approachSamples      = 5
	minSamplesForAverage = 3
)

type positionSample struct {
	coord models.Coordinate
	ts    time.Time
}

// Approach classifies recent motion relative to a target location.
type Approach struct {
	HasHistory    bool
	IsApproaching bool // distance to target decreased over the last two samples
	IsMovingAway  bool // distance increased
	IsSlowingDown bool // speed decreased over the last two samples
}

// Tracker owns the rolling sample windows. It is not safe for concurrent use;
// the guide loop is its single owner.
type Tracker struct {
	logger *zap.Logger

	positions []positionSample
	speeds    []models.SpeedReading

	currentSpeed float64 // mph
	bearing      float64
	hasBearing   bool
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Record appends a position sample, evicting history beyond the window, and
// recomputes speed and bearing.
func (t *Tracker) Record(p models.Position) {
	t.positions = append(t.positions, positionSample{coord: p.Coordinate, ts: p.Timestamp})
	if len(t.positions) > positionWindow {
		t.positions = t.positions[1:]
	}

	t.currentSpeed = p.SpeedMPH()
	t.speeds = append(t.speeds, models.SpeedReading{MPH: t.currentSpeed, Timestamp: p.Timestamp})
	if len(t.speeds) > speedWindow {
		t.speeds = t.speeds[1:]
	}

	if n := len(t.positions); n >= 2 {
		from := t.positions[n-2].coord
		to := t.positions[n-1].coord
		if from != to {
			t.bearing = geo.Bearing(from, to)
			t.hasBearing = true
		}
	}
}

// CurrentSpeedMPH returns the most recent speed reading in mph.
func (t *Tracker) CurrentSpeedMPH() float64 {
	return t.currentSpeed
}

// HasSpeedReading reports whether at least one speed sample was recorded.
func (t *Tracker) HasSpeedReading() bool {
	return len(t.speeds) > 0
}

// AverageApproachSpeedMPH returns the mean of the last few fresh speed
// samples. Until enough history exists it falls back to the current speed.
func (t *Tracker) AverageApproachSpeedMPH() float64 {
	fresh := t.freshSpeeds()
	if len(fresh) < minSamplesForAverage {
		return t.currentSpeed
	}
	start := len(fresh) - approachSamples
	if start < 0 {
		start = 0
	}
	var sum float64
	window := fresh[start:]
	for _, s := range window {
		sum += s.MPH
	}
	return sum / float64(len(window))
}

// Bearing returns the direction of travel in degrees [0,360) derived from the
// last two positions, and whether one could be computed.
func (t *Tracker) Bearing() (float64, bool) {
	return t.bearing, t.hasBearing
}

// HistoryDepth returns how many position samples are held.
func (t *Tracker) HistoryDepth() int {
	return len(t.positions)
}

// ClassifyApproach compares the last two samples against a target location.
func (t *Tracker) ClassifyApproach(target models.Coordinate) Approach {
	if len(t.positions) < 2 {
		return Approach{}
	}
	n := len(t.positions)
	prev := geo.Distance(t.positions[n-2].coord, target)
	last := geo.Distance(t.positions[n-1].coord, target)

	a := Approach{
		HasHistory:    true,
		IsApproaching: last < prev,
		IsMovingAway:  last > prev,
	}
	if m := len(t.speeds); m >= 2 {
		a.IsSlowingDown = t.speeds[m-1].MPH < t.speeds[m-2].MPH
	}
	return a
}

// Reset clears all history, e.g. when a new tour starts.
func (t *Tracker) Reset() {
	t.positions = nil
	t.speeds = nil
	t.currentSpeed = 0
	t.hasBearing = false
}

// freshSpeeds drops readings older than the staleness bound relative to the
// newest reading.
func (t *Tracker) freshSpeeds() []models.SpeedReading {
	if len(t.speeds) == 0 {
		return nil
	}
	newest := t.speeds[len(t.speeds)-1].Timestamp
	cutoff := newest.Add(-models.SpeedReadingMaxAge)
	for i, s := range t.speeds {
		if !s.Timestamp.Before(cutoff) {
			return t.speeds[i:]
		}
	}
	return nil
}
