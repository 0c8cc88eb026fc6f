package guide

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/location"
	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/bus"
)

const metersToLat = 1.0 / 111320.0

const eventTimeout = 3 * time.Second

func walkingPOI(name string, northOffsetMeters float64) *models.PointOfInterest {
	zero := time.Duration(0)
	return &models.PointOfInterest{
		ID:            uuid.New(),
		Name:          name,
		Latitude:      38.7223 + northOffsetMeters*metersToLat,
		Longitude:     -9.1393,
		BaseRadius:    50,
		Importance:    models.ImportanceHigh,
		DwellOverride: &zero, // keep tests fast
	}
}

func walkingTour(pois ...*models.PointOfInterest) *models.Tour {
	return &models.Tour{ID: uuid.New(), Name: "old town", Type: models.TourTypeWalking, POIs: pois}
}

func positionAt(northOffsetMeters, mph float64) models.Position {
	return models.Position{
		Coordinate: models.Coordinate{
			Latitude:  38.7223 + northOffsetMeters*metersToLat,
			Longitude: -9.1393,
		},
		HorizontalAccuracy: 10,
		Speed:              mph / models.MetersPerSecondToMPH,
		Timestamp:          time.Now(),
	}
}

func waitVisitEvent(t *testing.T, sub *bus.Subscription, want models.VisitEventType) models.VisitEvent {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case e := <-sub.C:
			if e.Visit != nil && e.Visit.Type == want {
				return *e.Visit
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func waitSchedulerState(t *testing.T, sub *bus.Subscription, want models.SchedulerState) models.SchedulerStatus {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case e := <-sub.C:
			if e.Scheduler != nil && e.Scheduler.State == want {
				return *e.Scheduler
			}
		case <-deadline:
			t.Fatalf("timed out waiting for scheduler state %s", want)
		}
	}
}

func TestStartMonitoringEmptyTourFails(t *testing.T) {
	g := New(location.NewReplayFeed(), nil, zap.NewNop())
	err := g.StartMonitoring(context.Background(), walkingTour(), nil)
	assert.ErrorIs(t, err, models.ErrNoPOIsFound)
}

func TestStartMonitoringWithoutTourFails(t *testing.T) {
	g := New(location.NewReplayFeed(), nil, zap.NewNop())
	err := g.StartMonitoring(context.Background(), nil, nil)
	assert.ErrorIs(t, err, models.ErrNoTourConfigured)
}

func TestStartMonitoringRegistersRegions(t *testing.T) {
	feed := location.NewReplayFeed()
	g := New(feed, nil, zap.NewNop())
	sub := g.Events().Subscribe()
	defer sub.Close()

	tour := walkingTour(
		walkingPOI("castle", 200),
		walkingPOI("cathedral", 400),
		walkingPOI("miradouro", 900),
	)
	initial := positionAt(0, 0)
	require.NoError(t, g.StartMonitoring(context.Background(), tour, &initial))
	defer g.StopMonitoring()

	assert.Equal(t, 3, feed.RegisteredCount())
	waitSchedulerState(t, sub, models.SchedulerStarted)

	// Second start while running is rejected, as is swapping tours.
	assert.ErrorIs(t, g.StartMonitoring(context.Background(), tour, nil), models.ErrMonitoringActive)
	assert.ErrorIs(t, g.SetCurrentTour(tour), models.ErrMonitoringActive)
}

func TestStopMonitoringClearsRegions(t *testing.T) {
	feed := location.NewReplayFeed()
	g := New(feed, nil, zap.NewNop())
	sub := g.Events().Subscribe()
	defer sub.Close()

	tour := walkingTour(walkingPOI("castle", 200))
	initial := positionAt(0, 0)
	require.NoError(t, g.StartMonitoring(context.Background(), tour, &initial))
	require.NoError(t, g.StopMonitoring())

	assert.Zero(t, feed.RegisteredCount())
	waitSchedulerState(t, sub, models.SchedulerStopped)

	// Stopping again is a no-op.
	assert.NoError(t, g.StopMonitoring())
}

func TestWalkThroughCompletesVisit(t *testing.T) {
	feed := location.NewReplayFeed()
	g := New(feed, nil, zap.NewNop())
	sub := g.Events().Subscribe()
	defer sub.Close()

	poi := walkingPOI("castle", 0)
	tour := walkingTour(poi, walkingPOI("cathedral", 600))

	initial := positionAt(300, 2)
	require.NoError(t, g.StartMonitoring(context.Background(), tour, &initial))
	defer g.StopMonitoring()

	// Walk toward the POI and into its validation radius.
	for _, offset := range []float64{250, 150, 80, 20, 5} {
		feed.Push(positionAt(offset, 2))
	}

	started := waitVisitEvent(t, sub, models.VisitSessionStarted)
	assert.Equal(t, poi.ID, started.POI.ID)

	// Walk away again; the dwell override is zero so the exit completes it.
	for _, offset := range []float64{80, 150, 250} {
		feed.Push(positionAt(offset, 2))
	}

	completed := waitVisitEvent(t, sub, models.VisitCompleted)
	assert.Equal(t, poi.ID, completed.POI.ID)
	require.NotNil(t, completed.Completed)
	assert.True(t, poi.IsVisited)
}

func TestOverspeedWalkNeverStartsSession(t *testing.T) {
	feed := location.NewReplayFeed()
	g := New(feed, nil, zap.NewNop())
	sub := g.Events().Subscribe()
	defer sub.Close()

	poi := walkingPOI("castle", 0)
	tour := walkingTour(poi)

	initial := positionAt(300, 30)
	require.NoError(t, g.StartMonitoring(context.Background(), tour, &initial))
	defer g.StopMonitoring()

	// Blasting past a walking POI at 30mph: overspeed, no session.
	for _, offset := range []float64{200, 100, 20, 5, 100, 200} {
		feed.Push(positionAt(offset, 30))
	}

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case e := <-sub.C:
			if e.Visit != nil {
				t.Fatalf("unexpected visit event %s", e.Visit.Type)
			}
		case <-deadline:
			assert.False(t, poi.IsVisited)
			return
		}
	}
}

func TestUpdateRegionsRequiresRunning(t *testing.T) {
	g := New(location.NewReplayFeed(), nil, zap.NewNop())
	err := g.UpdateRegions(positionAt(0, 0))
	assert.ErrorIs(t, err, models.ErrNoTourConfigured)
}

func TestUpdateRegionsHonorsHysteresis(t *testing.T) {
	feed := location.NewReplayFeed()
	g := New(feed, nil, zap.NewNop())
	sub := g.Events().Subscribe()
	defer sub.Close()

	tour := walkingTour(walkingPOI("castle", 200))
	initial := positionAt(0, 0)
	require.NoError(t, g.StartMonitoring(context.Background(), tour, &initial))
	defer g.StopMonitoring()
	waitSchedulerState(t, sub, models.SchedulerStarted)

	// 100m of travel is under the movement threshold: the manual trigger
	// must be a no-op, without error and without a scheduling pass.
	require.NoError(t, g.UpdateRegions(positionAt(100, 0)))
	assertNoRegionsUpdated(t, sub)
	assert.Equal(t, 1, feed.RegisteredCount())

	// 600m from the last pass clears the threshold and re-registers.
	require.NoError(t, g.UpdateRegions(positionAt(600, 0)))
	waitSchedulerState(t, sub, models.SchedulerRegionsUpdated)
}

// assertNoRegionsUpdated drains events already published and fails on any
// scheduling pass among them. UpdateRegions replies only after its pass would
// have published, so an empty drain means no pass ran.
func assertNoRegionsUpdated(t *testing.T, sub *bus.Subscription) {
	t.Helper()
	for {
		select {
		case e := <-sub.C:
			if e.Scheduler != nil && e.Scheduler.State == models.SchedulerRegionsUpdated {
				t.Fatal("regions were replaced below the movement threshold")
			}
		default:
			return
		}
	}
}
