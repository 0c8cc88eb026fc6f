package geofence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

// metersToLat converts a northward offset in meters to degrees of latitude.
const metersToLat = 1.0 / 111320.0

func testPOI(name string, imp models.Importance, order int, northOffsetMeters float64) *models.PointOfInterest {
	return &models.PointOfInterest{
		Name:       name,
		Latitude:   38.7223 + northOffsetMeters*metersToLat,
		Longitude:  -9.1393,
		BaseRadius: 100,
		Importance: imp,
		Order:      order,
	}
}

func testTour(tt models.TourType, pois ...*models.PointOfInterest) *models.Tour {
	return &models.Tour{Name: "test tour", Type: tt, POIs: pois}
}

func origin() *models.Coordinate {
	return &models.Coordinate{Latitude: 38.7223, Longitude: -9.1393}
}

func TestRankMonotonicImportance(t *testing.T) {
	// Equal distance and order: higher importance always scores higher.
	pois := []*models.PointOfInterest{
		testPOI("low", models.ImportanceLow, 5, 500),
		testPOI("medium", models.ImportanceMedium, 5, 500),
		testPOI("high", models.ImportanceHigh, 5, 500),
		testPOI("critical", models.ImportanceCritical, 5, 500),
	}
	tour := testTour(models.TourTypeWalking, pois...)

	ranked := NewScorer().Rank(pois, origin(), tour)
	require.Len(t, ranked, 4)
	assert.Equal(t, "critical", ranked[0].POI.Name)
	assert.Equal(t, "high", ranked[1].POI.Name)
	assert.Equal(t, "medium", ranked[2].POI.Name)
	assert.Equal(t, "low", ranked[3].POI.Name)
}

func TestRankExcludesBeyondMonitoringDistance(t *testing.T) {
	near := testPOI("near", models.ImportanceLow, 0, 4000)
	far := testPOI("far", models.ImportanceCritical, 0, 6000)
	tour := testTour(models.TourTypeWalking, near, far)

	ranked := NewScorer().Rank(tour.POIs, origin(), tour)
	require.Len(t, ranked, 1)
	assert.Equal(t, "near", ranked[0].POI.Name)
}

func TestRankProximityElevatesTier(t *testing.T) {
	close := testPOI("close", models.ImportanceLow, 0, 800)
	distant := testPOI("distant", models.ImportanceLow, 0, 3000)
	tour := testTour(models.TourTypeWalking, close, distant)

	ranked := NewScorer().Rank(tour.POIs, origin(), tour)
	require.Len(t, ranked, 2)

	assert.Equal(t, "close", ranked[0].POI.Name)
	assert.Equal(t, models.ImportanceMedium, ranked[0].Tier)
	// 25 (low) + 50 (proximity bonus) + 20 (order 0)
	assert.InDelta(t, 95, ranked[0].Score, 0.01)

	assert.Equal(t, models.ImportanceLow, ranked[1].Tier)
	// 25 + max(0, 50 - 3000/100) + 20 = 25 + 20 + 20
	assert.InDelta(t, 65, ranked[1].Score, 0.5)
}

func TestRankDrivingUsesWiderProximity(t *testing.T) {
	poi := testPOI("ahead", models.ImportanceMedium, 0, 1500)

	walking := testTour(models.TourTypeWalking, poi)
	driving := testTour(models.TourTypeDriving, poi)

	w := NewScorer().Rank(walking.POIs, origin(), walking)
	d := NewScorer().Rank(driving.POIs, origin(), driving)

	// 1500m is beyond the walking threshold but inside the driving one.
	assert.Equal(t, models.ImportanceMedium, w[0].Tier)
	assert.Equal(t, models.ImportanceHigh, d[0].Tier)
	// Driving: 50 + 30 (bonus) + 15 (order 0)
	assert.InDelta(t, 95, d[0].Score, 0.01)
}

func TestRankVisitedPenalty(t *testing.T) {
	visited := testPOI("visited", models.ImportanceMedium, 0, 500)
	visited.IsVisited = true
	fresh := testPOI("fresh", models.ImportanceMedium, 0, 500)
	tour := testTour(models.TourTypeWalking, visited, fresh)

	ranked := NewScorer().Rank(tour.POIs, origin(), tour)
	require.Len(t, ranked, 2)
	assert.Equal(t, "fresh", ranked[0].POI.Name)
	assert.InDelta(t, 30, ranked[0].Score-ranked[1].Score, 0.01)
}

func TestRankOrderTermRewardsEarlyStops(t *testing.T) {
	first := testPOI("first", models.ImportanceMedium, 0, 500)
	tenth := testPOI("tenth", models.ImportanceMedium, 10, 500)
	thirtieth := testPOI("thirtieth", models.ImportanceMedium, 30, 500)
	tour := testTour(models.TourTypeWalking, thirtieth, tenth, first)

	ranked := NewScorer().Rank(tour.POIs, origin(), tour)
	require.Len(t, ranked, 3)
	assert.Equal(t, "first", ranked[0].POI.Name)
	assert.Equal(t, "tenth", ranked[1].POI.Name)
	// Order term floors at zero; no extra penalty past the weight.
	assert.InDelta(t, 20, ranked[0].Score-ranked[2].Score, 0.01)
}

func TestRankWithoutPositionIncludesEverything(t *testing.T) {
	pois := []*models.PointOfInterest{
		testPOI("near", models.ImportanceLow, 1, 100),
		testPOI("very far", models.ImportanceLow, 0, 50000),
	}
	tour := testTour(models.TourTypeWalking, pois...)

	ranked := NewScorer().Rank(pois, nil, tour)
	require.Len(t, ranked, 2)
	// No distance terms: ordering falls to the order term alone.
	assert.Equal(t, "very far", ranked[0].POI.Name)
	assert.Equal(t, float64(-1), ranked[0].Distance)
}

func TestRankStableOnTies(t *testing.T) {
	var pois []*models.PointOfInterest
	for i := 0; i < 5; i++ {
		pois = append(pois, testPOI(fmt.Sprintf("poi-%d", i), models.ImportanceMedium, 3, 500))
	}
	tour := testTour(models.TourTypeWalking, pois...)

	ranked := NewScorer().Rank(pois, origin(), tour)
	require.Len(t, ranked, 5)
	for i, entry := range ranked {
		assert.Equal(t, fmt.Sprintf("poi-%d", i), entry.POI.Name)
	}
}
