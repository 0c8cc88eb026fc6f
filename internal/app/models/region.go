package models

import (
	"time"

	"github.com/google/uuid"
)

// Region scheduling limits. MaxRegionBudget is a hard platform constraint on
// simultaneously monitored regions, not a tunable.
const (
	MaxRegionBudget       = 20
	MaxMonitoringDistance = 5000 // meters
	RegionUpdateThreshold = 500  // meters moved before regions are recomputed
	MinDynamicRadius      = 30   // meters
	MaxDynamicRadius      = 1000 // meters
)

// MonitoredRegion is an ephemeral geofence registered with the location feed.
// The whole set is recreated on every scheduler pass.
type MonitoredRegion struct {
	ID                         uuid.UUID
	POI                        *PointOfInterest
	PriorityTier               Importance
	DynamicRadius              float64 // meters
	DistanceFromUserAtCreation float64 // meters, -1 when no fix was available
	CreatedAt                  time.Time
}

// VisitSession is the single live visit being tracked. At most one exists at
// any time.
type VisitSession struct {
	ID                uuid.UUID
	POI               *PointOfInterest
	TourID            uuid.UUID
	StartTime         time.Time
	StartLocation     Coordinate
	RequiredDwellTime time.Duration
}

// Elapsed returns how long the session has been running.
func (s *VisitSession) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// CompletedVisit is the record emitted when a session ends as a valid visit.
type CompletedVisit struct {
	POI         *PointOfInterest
	TourID      uuid.UUID
	StartedAt   time.Time
	CompletedAt time.Time
	Dwell       time.Duration
	DriveBy     bool // completed via drive-by rule rather than dwell
}
