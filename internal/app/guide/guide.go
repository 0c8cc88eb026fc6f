// Package guide wires the trajectory tracker, region scheduler and visit
// validator into a single-owner event loop. All domain state is mutated from
// exactly one goroutine; location samples, region signals, the revalidation
// ticker and external commands are serialized onto it.
package guide

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/domain/geofence"
	"github.com/FACorreiaa/loci-guide/internal/app/domain/trajectory"
	"github.com/FACorreiaa/loci-guide/internal/app/domain/visit"
	"github.com/FACorreiaa/loci-guide/internal/app/location"
	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/bus"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
	"github.com/FACorreiaa/loci-guide/internal/pkg/metrics"
)

// Guide is the public entry point of the tour core.
type Guide struct {
	logger    *zap.Logger
	feed      location.Feed
	events    *bus.Bus
	tracker   *trajectory.Tracker
	scheduler *geofence.Scheduler
	validator *visit.Validator

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	commands chan func()

	// Loop-owned state below; touched only from run().
	tour         *models.Tour
	lastPosition *models.Position
	metricsSub   *bus.Subscription
}

// New assembles a guide around a location feed. The marker persists visited
// POIs and may be nil.
func New(feed location.Feed, marker visit.Marker, logger *zap.Logger) *Guide {
	metrics.InitGuideMetrics()
	events := bus.New(bus.DefaultBufferSize, logger)
	tracker := trajectory.NewTracker(logger)
	return &Guide{
		logger:    logger,
		feed:      feed,
		events:    events,
		tracker:   tracker,
		scheduler: geofence.NewScheduler(feed, events, logger),
		validator: visit.NewValidator(tracker, events, marker, logger),
	}
}

// Events returns the bus carrying region, visit and scheduler notifications.
func (g *Guide) Events() *bus.Bus {
	return g.events
}

// SetCurrentTour configures the tour for the next monitoring session. It
// cannot be swapped while monitoring runs.
func (g *Guide) SetCurrentTour(tour *models.Tour) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return models.ErrMonitoringActive
	}
	g.tour = tour
	return nil
}

// StartMonitoring begins tracking the tour. An empty tour fails fast with
// ErrNoPOIsFound before any region is touched.
func (g *Guide) StartMonitoring(ctx context.Context, tour *models.Tour, initial *models.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return models.ErrMonitoringActive
	}
	if tour == nil {
		tour = g.tour
	}
	if tour == nil {
		return models.ErrNoTourConfigured
	}
	if len(tour.POIs) == 0 {
		return models.ErrNoPOIsFound
	}

	g.tour = tour
	g.tracker.Reset()
	g.validator.SetTour(tour)
	g.lastPosition = initial
	if initial != nil {
		g.tracker.Record(*initial)
	}

	snap := g.snapshot(time.Now())
	count, err := g.scheduler.UpdateRegions(ctx, snap)
	if err != nil {
		return err
	}
	g.recordRegionUpdate(ctx, count)

	loopCtx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	g.commands = make(chan func(), 8)
	g.metricsSub = g.events.Subscribe()
	g.running = true

	g.logger.Info("monitoring started",
		zap.String("tour", tour.Name),
		zap.String("tour_type", string(tour.Type)),
		zap.Int("regions", count))
	g.events.PublishScheduler(&models.SchedulerStatus{State: models.SchedulerStarted, Timestamp: time.Now()})

	go g.run(loopCtx)
	return nil
}

// StopMonitoring halts the loop, resolves any live session and unregisters
// all regions. Safe to call when not monitoring.
func (g *Guide) StopMonitoring() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.cancel()
	<-g.done
	g.running = false
	g.mu.Unlock()

	// The loop has exited; state is single-owned again.
	if err := g.validator.EndSession(visit.ReasonForced); err != nil && !errors.Is(err, models.ErrNoActiveSession) {
		g.logger.Warn("failed to end session on stop", zap.Error(err))
	}
	if err := g.scheduler.Clear(context.Background()); err != nil {
		g.logger.Warn("failed to unregister regions on stop", zap.Error(err))
	}
	g.drainMetrics()
	g.metricsSub.Close()
	metrics.Get().MonitoredRegionsGauge.Record(context.Background(), 0)

	g.events.PublishScheduler(&models.SchedulerStatus{State: models.SchedulerStopped, Timestamp: time.Now()})
	g.logger.Info("monitoring stopped")
	return nil
}

// UpdateRegions requests a region re-evaluation from the given position. The
// movement hysteresis still applies.
func (g *Guide) UpdateRegions(pos models.Position) error {
	errc := make(chan error, 1)
	if !g.submit(func() {
		errc <- g.maybeUpdateRegions(context.Background(), &pos)
	}) {
		return models.ErrNoTourConfigured
	}
	return <-errc
}

// submit runs f on the loop goroutine; reports false when not running.
func (g *Guide) submit(f func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return false
	}
	g.commands <- f
	return true
}

func (g *Guide) run(ctx context.Context) {
	defer close(g.done)
	// Pending commands must still get their replies after cancellation.
	defer g.drainCommands()

	ticker := time.NewTicker(g.tour.Config().ValidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-g.commands:
			cmd()
		case p, ok := <-g.feed.Positions():
			if !ok {
				return
			}
			g.handleSample(ctx, p)
		case sig, ok := <-g.feed.RegionEvents():
			if !ok {
				return
			}
			g.handleSignal(sig)
		case <-ticker.C:
			g.handleTick()
		case e := <-g.metricsSub.C:
			g.recordEvent(ctx, e)
		}
	}
}

func (g *Guide) handleSample(ctx context.Context, p models.Position) {
	if !geo.ValidateCoordinates(p.Latitude, p.Longitude) {
		g.logger.Debug("dropping sample with invalid coordinates")
		return
	}
	g.tracker.Record(p)
	g.lastPosition = &p

	if err := g.maybeUpdateRegions(ctx, &p); err != nil {
		g.logger.Error("region update failed", zap.Error(err))
	}
	g.evaluateSessions()
}

func (g *Guide) handleSignal(sig location.RegionSignal) {
	poi := g.scheduler.POIForRegion(sig.RegionID)
	if poi == nil {
		// Signal for a region torn down by a newer scheduling pass.
		return
	}

	g.events.PublishRegion(&models.RegionEvent{
		Type:      sig.Type,
		POI:       poi,
		Position:  g.lastPosition,
		Timestamp: sig.Timestamp,
	})

	switch sig.Type {
	case models.RegionEntered:
		g.tryStartSession(poi)
	case models.RegionExited:
		g.validator.HandleRegionExit(poi)
	}
}

func (g *Guide) handleTick() {
	g.evaluateSessions()
}

// evaluateSessions revalidates the live session, or retries session starts
// while idle: an entry rejected at the region boundary (e.g. a drive-by
// still out of validation range) may qualify on a later, closer sample. Runs
// on both new samples and the periodic timer.
func (g *Guide) evaluateSessions() {
	if g.lastPosition == nil {
		return
	}
	if g.validator.ActiveSession() != nil {
		g.validator.Revalidate(g.lastPosition)
		return
	}
	for _, region := range g.scheduler.Regions() {
		if region.POI.IsVisited {
			continue
		}
		if geo.Distance(g.lastPosition.Coordinate, region.POI.Coordinate()) > region.DynamicRadius {
			continue
		}
		if g.tryStartSession(region.POI) {
			return
		}
	}
}

func (g *Guide) tryStartSession(poi *models.PointOfInterest) bool {
	err := g.validator.HandleRegionEntry(poi, g.lastPosition)
	if err == nil {
		return g.validator.ActiveSession() != nil
	}
	var invalid *visit.InvalidConditionsError
	if errors.As(err, &invalid) {
		metrics.Get().ValidationFailuresTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("reason", invalid.Reason)))
		return false
	}
	g.logger.Warn("region entry handling failed", zap.String("poi", poi.Name), zap.Error(err))
	return false
}

// maybeUpdateRegions runs a scheduling pass, subject to the movement
// hysteresis. Every re-evaluation path funnels through here so a manual
// trigger cannot churn regions any more than a position sample can.
func (g *Guide) maybeUpdateRegions(ctx context.Context, pos *models.Position) error {
	if pos != nil && !g.scheduler.ShouldUpdate(pos.Coordinate) {
		return nil
	}
	snap := g.snapshot(time.Now())
	if pos != nil {
		snap.Position = &pos.Coordinate
	}
	count, err := g.scheduler.UpdateRegions(ctx, snap)
	if err != nil {
		return err
	}
	g.recordRegionUpdate(ctx, count)
	return nil
}

// snapshot captures the consistent view a scheduling pass works from.
func (g *Guide) snapshot(now time.Time) geofence.Snapshot {
	snap := geofence.Snapshot{Tour: g.tour, Now: now}
	if g.lastPosition != nil {
		pos := g.lastPosition.Coordinate
		snap.Position = &pos
	}
	if g.tracker.HasSpeedReading() {
		speed := g.tracker.AverageApproachSpeedMPH()
		snap.SpeedMPH = &speed
	}
	return snap
}

func (g *Guide) recordRegionUpdate(ctx context.Context, count int) {
	m := metrics.Get()
	m.RegionUpdatesTotal.Add(ctx, 1)
	m.RegionsRegisteredTotal.Add(ctx, int64(count))
	m.MonitoredRegionsGauge.Record(ctx, int64(count))
}

func (g *Guide) recordEvent(ctx context.Context, e bus.Event) {
	if e.Visit == nil {
		return
	}
	m := metrics.Get()
	switch e.Visit.Type {
	case models.VisitSessionStarted:
		m.SessionsStartedTotal.Add(ctx, 1)
	case models.VisitCompleted:
		m.VisitsCompletedTotal.Add(ctx, 1)
		if e.Visit.Completed != nil {
			m.VisitDwellSeconds.Record(ctx, e.Visit.Completed.Dwell.Seconds())
		}
	case models.VisitSessionCancelled:
		m.SessionsCancelledTotal.Add(ctx, 1)
	}
}

func (g *Guide) drainCommands() {
	for {
		select {
		case cmd := <-g.commands:
			cmd()
		default:
			return
		}
	}
}

func (g *Guide) drainMetrics() {
	for {
		select {
		case e := <-g.metricsSub.C:
			g.recordEvent(context.Background(), e)
		default:
			return
		}
	}
}
