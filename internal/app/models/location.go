package models

import "time"

// MetersPerSecondToMPH converts GPS speed readings to the mph thresholds the
// validation rules are written in.
const MetersPerSecondToMPH = 2.23694

// SpeedReadingMaxAge is how long a speed sample stays usable for smoothing.
const SpeedReadingMaxAge = 30 * time.Second

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position is a single reading from the location feed.
type Position struct {
	Coordinate
	HorizontalAccuracy float64   `json:"horizontal_accuracy"` // meters, <=0 means invalid
	Speed              float64   `json:"speed"`               // m/s, negative means unknown
	Heading            float64   `json:"heading"`             // degrees, negative means unknown
	Timestamp          time.Time `json:"timestamp"`
}

// SpeedMPH returns the reading's speed in mph, treating unknown speed as 0.
func (p Position) SpeedMPH() float64 {
	if p.Speed < 0 {
		return 0
	}
	return p.Speed * MetersPerSecondToMPH
}

// SpeedReading is one smoothed-history sample kept by the trajectory tracker.
type SpeedReading struct {
	MPH       float64
	Timestamp time.Time
}

// IsStale reports whether the reading is too old to be trusted.
func (s SpeedReading) IsStale(now time.Time) bool {
	return now.Sub(s.Timestamp) > SpeedReadingMaxAge
}
