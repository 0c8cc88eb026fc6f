// Package geofence decides which POIs are worth a monitored region under the
// platform region budget, and with what radius.
package geofence

import (
	"math"
	"sort"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
)

// Scoring constants. Driving tours see farther ahead, so their proximity
// bonus kicks in earlier but weighs less.
const (
	proximityThresholdDriving = 2000.0 // meters
	proximityThresholdDefault = 1000.0
	proximityBonusDriving     = 30.0
	proximityBonusDefault     = 50.0
	distanceScaleDriving      = 200.0
	distanceScaleDefault      = 100.0
	orderWeightDriving        = 15.0
	orderWeightDefault        = 20.0
	visitedPenalty            = 30.0
)

// ScoredPOI is one ranked entry produced by the scorer.
type ScoredPOI struct {
	POI      *models.PointOfInterest
	Score    float64
	Tier     models.Importance
	Distance float64 // meters from current position, -1 when no fix
}

// Scorer ranks a tour's POIs by monitoring priority.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Rank scores all POIs and returns them sorted descending. POIs beyond the
// monitoring horizon are excluded entirely. A nil position means no fix yet;
// distance terms are then skipped and nothing is excluded.
func (s *Scorer) Rank(pois []*models.PointOfInterest, pos *models.Coordinate, tour *models.Tour) []ScoredPOI {
	driving := tour.Type == models.TourTypeDriving

	proximityThreshold := proximityThresholdDefault
	proximityBonus := proximityBonusDefault
	distanceScale := distanceScaleDefault
	orderWeight := orderWeightDefault
	if driving {
		proximityThreshold = proximityThresholdDriving
		proximityBonus = proximityBonusDriving
		distanceScale = distanceScaleDriving
		orderWeight = orderWeightDriving
	}

	ranked := make([]ScoredPOI, 0, len(pois))
	for _, poi := range pois {
		entry := ScoredPOI{POI: poi, Tier: poi.Importance, Distance: -1}
		score := poi.Importance.Score()

		if pos != nil {
			dist := geo.Distance(*pos, poi.Coordinate())
			if dist > models.MaxMonitoringDistance {
				continue
			}
			entry.Distance = dist

			if dist <= proximityThreshold {
				score += proximityBonus
				entry.Tier = poi.Importance.Elevated()
			} else {
				score += math.Max(0, 50-dist/distanceScale)
			}
		}

		score += math.Max(0, orderWeight-float64(poi.Order))

		if poi.IsVisited {
			score -= visitedPenalty
		}

		entry.Score = score
		ranked = append(ranked, entry)
	}

	// Stable: ties keep insertion order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
