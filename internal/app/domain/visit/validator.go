// Package visit implements the per-POI visit state machine: Idle -> Active ->
// Completed/Cancelled -> Idle, driven by region crossings and periodic
// re-checks.
package visit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/domain/trajectory"
	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/bus"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
)

const (
	// drivingSpeedThresholdMPH is where motion counts as driving regardless
	// of tour type.
	drivingSpeedThresholdMPH = 15.0
	// walkingSpeedLimitMPH is the stationarity bound for walking visits.
	walkingSpeedLimitMPH = 3.0

	validationRadiusFactor = 0.8
	driveByRadiusFactor    = 1.5
	mixedFastRadiusFactor  = 1.3
	passedByRadiusFactor   = 1.5
	slowingRadiusFactor    = 2.0
	maxApproachAngleDeg    = 120.0

	minTrajectorySamples = 3
)

// Validation failure reasons. These are expected outcomes that drive state
// transitions, not errors.
const (
	ReasonAccuracy          = "insufficient GPS accuracy"
	ReasonTooFar            = "too far from POI"
	ReasonAlreadyVisited    = "POI already visited"
	ReasonClosed            = "POI currently closed"
	ReasonOverspeed         = "speed too high"
	ReasonDriveByTooFar     = "too far for drive-by visit"
	ReasonNotStationary     = "moving too fast for a walking visit"
	ReasonPoorApproachAngle = "heading away from POI"
	ReasonPassedBy          = "already passed POI"
	ReasonForced            = "monitoring stopped"
)

// Decision is the outcome of a validation pass.
type Decision struct {
	Valid  bool
	Reason string
}

func valid() Decision                { return Decision{Valid: true} }
func invalid(reason string) Decision { return Decision{Reason: reason} }

// InvalidConditionsError reports a session start attempt that failed
// validation.
type InvalidConditionsError struct {
	Reason string
}

func (e *InvalidConditionsError) Error() string {
	return fmt.Sprintf("invalid visit conditions: %s", e.Reason)
}

// Marker persists a POI's visited state. Implementations must be safe to call
// fire-and-forget; the state machine never waits on them.
type Marker interface {
	MarkVisitedAsync(poi *models.PointOfInterest, visit *models.CompletedVisit)
}

// Validator owns the single live visit session. Not safe for concurrent use;
// the guide loop is its single owner.
type Validator struct {
	logger  *zap.Logger
	tracker *trajectory.Tracker
	events  *bus.Bus
	marker  Marker

	tour    *models.Tour
	session *models.VisitSession
}

// NewValidator creates a validator. The marker may be nil when persistence is
// handled elsewhere.
func NewValidator(tracker *trajectory.Tracker, events *bus.Bus, marker Marker, logger *zap.Logger) *Validator {
	return &Validator{
		logger:  logger,
		tracker: tracker,
		events:  events,
		marker:  marker,
	}
}

// SetTour configures the tour whose rules validations run under. Any active
// session is force-ended first.
func (v *Validator) SetTour(tour *models.Tour) {
	if v.session != nil {
		v.end(ReasonForced)
	}
	v.tour = tour
}

// ActiveSession returns the live session, or nil when idle.
func (v *Validator) ActiveSession() *models.VisitSession {
	return v.session
}

// HandleRegionEntry attempts to start a session for the entered POI. If a
// session for a different POI is active it is resolved first. Returns
// *InvalidConditionsError when the entry does not qualify.
func (v *Validator) HandleRegionEntry(poi *models.PointOfInterest, pos *models.Position) error {
	if v.tour == nil {
		return models.ErrNoTourConfigured
	}
	if v.session != nil && v.session.POI.ID == poi.ID {
		return nil // already tracking this POI
	}

	decision := v.Validate(poi, pos)
	if !decision.Valid {
		v.logger.Debug("region entry rejected",
			zap.String("poi", poi.Name),
			zap.String("reason", decision.Reason))
		return &InvalidConditionsError{Reason: decision.Reason}
	}

	if v.session != nil {
		v.end("superseded by new session")
	}

	now := time.Now()
	session := &models.VisitSession{
		ID:                uuid.New(),
		POI:               poi,
		TourID:            v.tour.ID,
		StartTime:         now,
		RequiredDwellTime: v.tour.EffectiveDwellTime(poi),
	}
	if pos != nil {
		session.StartLocation = pos.Coordinate
	}
	v.session = session

	v.logger.Info("visit session started",
		zap.String("poi", poi.Name),
		zap.Duration("required_dwell", session.RequiredDwellTime))
	v.events.PublishVisit(&models.VisitEvent{
		Type:      models.VisitSessionStarted,
		POI:       poi,
		Session:   session,
		Timestamp: now,
	})
	return nil
}

// HandleRegionExit ends the session when it belongs to the exited POI.
// Exits for other POIs are ignored.
func (v *Validator) HandleRegionExit(poi *models.PointOfInterest) {
	if v.session == nil || v.session.POI.ID != poi.ID {
		return
	}
	v.end("left region")
}

// Revalidate re-runs validation for the live session against the newest
// position, force-ending it on failure. No-op when idle.
func (v *Validator) Revalidate(pos *models.Position) {
	if v.session == nil || pos == nil {
		return
	}
	decision := v.Validate(v.session.POI, pos)
	if !decision.Valid {
		v.logger.Debug("session revalidation failed",
			zap.String("poi", v.session.POI.Name),
			zap.String("reason", decision.Reason))
		v.end(decision.Reason)
	}
}

// EndSession explicitly ends the live session. Ending without one is a
// no-op error, never a crash.
func (v *Validator) EndSession(reason string) error {
	if v.session == nil {
		return models.ErrNoActiveSession
	}
	v.end(reason)
	return nil
}

// end resolves the session to Completed or Cancelled and returns to idle.
// The in-memory transition commits here; persistence is fire-and-forget.
func (v *Validator) end(reason string) {
	session := v.session
	v.session = nil

	now := time.Now()
	elapsed := session.Elapsed(now)
	dwellSatisfied := elapsed >= session.RequiredDwellTime
	completed := dwellSatisfied || v.tour.Config().SupportsDriveByVisits

	if !completed {
		v.logger.Info("visit session cancelled",
			zap.String("poi", session.POI.Name),
			zap.Duration("elapsed", elapsed),
			zap.String("reason", reason))
		v.events.PublishVisit(&models.VisitEvent{
			Type:      models.VisitSessionCancelled,
			POI:       session.POI,
			Session:   session,
			Reason:    reason,
			Timestamp: now,
		})
		return
	}

	poi := session.POI
	poi.IsVisited = true
	visitedAt := session.StartTime
	poi.VisitedAt = &visitedAt
	poi.AccumulatedDwell += elapsed

	record := &models.CompletedVisit{
		POI:         poi,
		TourID:      session.TourID,
		StartedAt:   session.StartTime,
		CompletedAt: now,
		Dwell:       elapsed,
		DriveBy:     !dwellSatisfied,
	}

	v.logger.Info("visit completed",
		zap.String("poi", poi.Name),
		zap.Duration("dwell", elapsed),
		zap.Bool("drive_by", record.DriveBy))
	v.events.PublishVisit(&models.VisitEvent{
		Type:      models.VisitCompleted,
		POI:       poi,
		Session:   session,
		Completed: record,
		Timestamp: now,
	})
	if v.marker != nil {
		v.marker.MarkVisitedAsync(poi, record)
	}
}

// Validate runs the ordered visit checks for a POI at a position. Failures
// are values, not errors.
//
// When motion is at driving speed the speed-based rule owns the distance
// gate (drive-by and mixed-tour radii); otherwise the strict validation
// radius of 80% of the authored radius applies.
func (v *Validator) Validate(poi *models.PointOfInterest, pos *models.Position) Decision {
	cfg := v.tour.Config()

	if pos == nil || pos.HorizontalAccuracy <= 0 || pos.HorizontalAccuracy > cfg.RequiredGPSAccuracy {
		return invalid(ReasonAccuracy)
	}

	dist := geo.Distance(pos.Coordinate, poi.Coordinate())
	speed := v.tracker.CurrentSpeedMPH()
	drivingSpeed := speed >= drivingSpeedThresholdMPH
	speedBased := drivingSpeed || v.tour.Type == models.TourTypeDriving

	if !speedBased && dist > poi.BaseRadius*validationRadiusFactor {
		return invalid(ReasonTooFar)
	}
	if poi.IsVisited {
		return invalid(ReasonAlreadyVisited)
	}
	if !poi.IsOpenAt(pos.Timestamp) {
		return invalid(ReasonClosed)
	}

	if speedBased {
		return v.speedDecision(poi, dist, speed, drivingSpeed)
	}
	if v.tracker.HistoryDepth() < minTrajectorySamples {
		return valid()
	}
	return v.trajectoryDecision(poi, pos, dist, speed)
}

// speedDecision applies the speed-based rule for driving-speed motion and
// driving tours.
func (v *Validator) speedDecision(poi *models.PointOfInterest, dist, speed float64, drivingSpeed bool) Decision {
	if speed > v.tour.EffectiveMaxSpeed(poi) {
		return invalid(ReasonOverspeed)
	}

	if v.tour.Type == models.TourTypeMixed {
		// Mixed tours interpolate by instantaneous speed rather than a
		// tour-wide default.
		radius := poi.BaseRadius * validationRadiusFactor
		if drivingSpeed {
			radius = poi.BaseRadius * mixedFastRadiusFactor
		}
		if dist > radius {
			return invalid(ReasonTooFar)
		}
		return valid()
	}

	if drivingSpeed && v.tour.Config().SupportsDriveByVisits {
		if dist > poi.BaseRadius*driveByRadiusFactor {
			return invalid(ReasonDriveByTooFar)
		}
		return valid()
	}

	// Driving tour below driving speed: the user has effectively stopped.
	if dist > poi.BaseRadius*validationRadiusFactor {
		return invalid(ReasonTooFar)
	}
	return valid()
}

// trajectoryDecision applies the approach-geometry rule when the speed-based
// rule did not.
func (v *Validator) trajectoryDecision(poi *models.PointOfInterest, pos *models.Position, dist, speed float64) Decision {
	if v.tour.Type == models.TourTypeWalking {
		// Distance was already gated at the strict validation radius; the
		// walking rule only adds the stationary-pace requirement.
		if speed > walkingSpeedLimitMPH {
			return invalid(ReasonNotStationary)
		}
		return valid()
	}

	approach := v.tracker.ClassifyApproach(poi.Coordinate())
	if approach.IsMovingAway && dist > poi.BaseRadius*passedByRadiusFactor {
		return invalid(ReasonPassedBy)
	}
	// Slowing down near the POI reads as stopping for it, even when the
	// instantaneous bearing is noisy.
	if approach.IsSlowingDown && dist <= poi.BaseRadius*slowingRadiusFactor {
		return valid()
	}
	if bearing, ok := v.tracker.Bearing(); ok {
		toPOI := geo.Bearing(pos.Coordinate, poi.Coordinate())
		if geo.AngularDelta(bearing, toPOI) > maxApproachAngleDeg {
			return invalid(ReasonPoorApproachAngle)
		}
	}
	return valid()
}
