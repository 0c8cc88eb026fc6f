package geofence

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/location"
	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/bus"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
)

// Snapshot is the consistent view of the world a scheduling pass works from.
// It is captured before any recomputation so an in-flight pass is never
// affected by newer samples.
type Snapshot struct {
	Tour     *models.Tour
	Position *models.Coordinate // nil when no fix yet
	SpeedMPH *float64           // nil when no speed reading available
	Now      time.Time
}

// Scheduler selects the top POIs under the region budget and keeps the
// location feed's registered regions in sync. Regions are fully replaced on
// every pass; the movement hysteresis bounds the churn.
type Scheduler struct {
	logger *zap.Logger
	feed   location.Feed
	events *bus.Bus
	scorer *Scorer

	lastUpdatePos *models.Coordinate
	regions       []models.MonitoredRegion
	regionIndex   map[uuid.UUID]*models.PointOfInterest
}

// NewScheduler creates a scheduler issuing commands to the given feed.
func NewScheduler(feed location.Feed, events *bus.Bus, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:      logger,
		feed:        feed,
		events:      events,
		scorer:      NewScorer(),
		regionIndex: make(map[uuid.UUID]*models.PointOfInterest),
	}
}

// ShouldUpdate reports whether the user moved far enough since the last pass
// to justify re-registering regions. The first call is always true.
func (s *Scheduler) ShouldUpdate(pos models.Coordinate) bool {
	if s.lastUpdatePos == nil {
		return true
	}
	return geo.Distance(pos, *s.lastUpdatePos) >= models.RegionUpdateThreshold
}

// UpdateRegions recomputes the monitored set from the snapshot and replaces
// the feed's registrations wholesale. Returns the number of regions
// registered.
func (s *Scheduler) UpdateRegions(ctx context.Context, snap Snapshot) (int, error) {
	ctx, span := otel.Tracer("loci-guide").Start(ctx, "Scheduler.UpdateRegions", trace.WithAttributes(
		attribute.Int("poi.count", len(snap.Tour.POIs)),
		attribute.String("tour.type", string(snap.Tour.Type)),
	))
	defer span.End()

	if len(snap.Tour.POIs) == 0 {
		return 0, models.ErrNoPOIsFound
	}

	ranked := s.scorer.Rank(snap.Tour.POIs, snap.Position, snap.Tour)
	if len(ranked) > models.MaxRegionBudget {
		ranked = ranked[:models.MaxRegionBudget]
	}

	regions := make([]models.MonitoredRegion, 0, len(ranked))
	for _, entry := range ranked {
		regions = append(regions, models.MonitoredRegion{
			ID:                         uuid.New(),
			POI:                        entry.POI,
			PriorityTier:               entry.Tier,
			DynamicRadius:              DynamicRadius(entry.POI, snap.Tour, snap.SpeedMPH),
			DistanceFromUserAtCreation: entry.Distance,
			CreatedAt:                  snap.Now,
		})
	}
	if len(regions) > models.MaxRegionBudget {
		// Unreachable: the rank slice was already capped. Guard anyway.
		return 0, models.ErrMaxRegionsExceeded
	}

	if err := s.feed.UnregisterAll(ctx); err != nil {
		return 0, err
	}
	// Only regions the feed accepted are kept; a failed registration must
	// not leave a phantom entry that session evaluation would retry against.
	registered := make([]models.MonitoredRegion, 0, len(regions))
	index := make(map[uuid.UUID]*models.PointOfInterest, len(regions))
	for _, r := range regions {
		if err := s.feed.RegisterRegion(ctx, r.ID, r.POI.Coordinate(), r.DynamicRadius); err != nil {
			s.logger.Error("failed to register region",
				zap.String("poi", r.POI.Name),
				zap.Float64("radius", r.DynamicRadius),
				zap.Error(err))
			continue
		}
		registered = append(registered, r)
		index[r.ID] = r.POI
	}

	s.regions = registered
	s.regionIndex = index
	if snap.Position != nil {
		pos := *snap.Position
		s.lastUpdatePos = &pos
	}

	s.logger.Info("monitored regions replaced",
		zap.Int("count", len(registered)),
		zap.String("tour_type", string(snap.Tour.Type)))
	s.events.PublishScheduler(&models.SchedulerStatus{
		State:       models.SchedulerRegionsUpdated,
		RegionCount: len(registered),
		Timestamp:   snap.Now,
	})
	return len(registered), nil
}

// Regions returns the current monitored set.
func (s *Scheduler) Regions() []models.MonitoredRegion {
	return s.regions
}

// POIForRegion resolves a feed region id back to its POI, or nil.
func (s *Scheduler) POIForRegion(id uuid.UUID) *models.PointOfInterest {
	return s.regionIndex[id]
}

// Clear unregisters everything and forgets scheduling state.
func (s *Scheduler) Clear(ctx context.Context) error {
	err := s.feed.UnregisterAll(ctx)
	s.regions = nil
	s.regionIndex = make(map[uuid.UUID]*models.PointOfInterest)
	s.lastUpdatePos = nil
	return err
}

// DynamicRadius computes the monitoring radius for a POI: speed-bucketed when
// a reading exists, otherwise the tour default, scaled by importance and
// clamped to the platform limits.
func DynamicRadius(poi *models.PointOfInterest, tour *models.Tour, speedMPH *float64) float64 {
	radius := tour.Config().RecommendedGeofenceRadius

	if speedMPH != nil {
		speed := *speedMPH
		base := poi.BaseRadius
		switch {
		case speed <= 5:
			radius = math.Max(50, base*0.8)
		case speed <= 15:
			radius = math.Max(75, base)
		case speed <= 35:
			radius = math.Max(200, base*2.0)
		case speed <= 55:
			radius = math.Max(400, base*3.0)
		default:
			radius = math.Max(600, base*4.0)
		}
	}

	radius *= poi.Importance.RadiusScale()

	if radius < models.MinDynamicRadius {
		radius = models.MinDynamicRadius
	}
	if radius > models.MaxDynamicRadius {
		radius = models.MaxDynamicRadius
	}
	return radius
}
