package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TourType determines how visits are validated and how large geofences are.
type TourType string

const (
	TourTypeWalking TourType = "walking"
	TourTypeDriving TourType = "driving"
	TourTypeMixed   TourType = "mixed"
)

// Importance ranks how much a POI matters for region scheduling.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// Score returns the base priority contribution of an importance level.
func (i Importance) Score() float64 {
	switch i {
	case ImportanceCritical:
		return 100
	case ImportanceHigh:
		return 75
	case ImportanceMedium:
		return 50
	default:
		return 25
	}
}

// Elevated returns the next importance step up, capped at critical.
func (i Importance) Elevated() Importance {
	switch i {
	case ImportanceLow:
		return ImportanceMedium
	case ImportanceMedium:
		return ImportanceHigh
	default:
		return ImportanceCritical
	}
}

// RadiusScale is the multiplier applied to a region's dynamic radius.
func (i Importance) RadiusScale() float64 {
	switch i {
	case ImportanceCritical:
		return 1.3
	case ImportanceHigh:
		return 1.15
	case ImportanceLow:
		return 0.85
	default:
		return 1.0
	}
}

// TourConfig is the derived configuration for a tour type. Pure lookup, no state.
type TourConfig struct {
	EffectiveDwellTime        time.Duration
	EffectiveMaxSpeedMPH      float64
	RecommendedGeofenceRadius float64 // meters
	ValidationInterval        time.Duration
	RequiredGPSAccuracy       float64 // meters
	SupportsDriveByVisits     bool
}

// Config returns the tour-type configuration table entry.
func (t TourType) Config() TourConfig {
	switch t {
	case TourTypeDriving:
		return TourConfig{
			EffectiveDwellTime:        5 * time.Second,
			EffectiveMaxSpeedMPH:      45,
			RecommendedGeofenceRadius: 300,
			ValidationInterval:        2 * time.Second,
			RequiredGPSAccuracy:       25,
			SupportsDriveByVisits:     true,
		}
	case TourTypeMixed:
		return TourConfig{
			EffectiveDwellTime:        15 * time.Second,
			EffectiveMaxSpeedMPH:      25,
			RecommendedGeofenceRadius: 150,
			ValidationInterval:        3 * time.Second,
			RequiredGPSAccuracy:       20,
			SupportsDriveByVisits:     true,
		}
	default: // walking
		return TourConfig{
			EffectiveDwellTime:        30 * time.Second,
			EffectiveMaxSpeedMPH:      5,
			RecommendedGeofenceRadius: 75,
			ValidationInterval:        5 * time.Second,
			RequiredGPSAccuracy:       15,
			SupportsDriveByVisits:     false,
		}
	}
}

// TimeWindow is an opening window in "HH:MM" local time.
type TimeWindow struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// PointOfInterest is a tour stop. Visited state is mutated only by the visit
// validator; everything else is authored upstream.
type PointOfInterest struct {
	ID               uuid.UUID  `json:"id"`
	TourID           uuid.UUID  `json:"tour_id"`
	Name             string     `json:"name"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	BaseRadius       float64    `json:"base_radius"` // meters, author-specified
	Importance       Importance `json:"importance"`
	Order            int        `json:"order"` // position in tour sequence
	IsVisited        bool       `json:"is_visited"`
	VisitedAt        *time.Time `json:"visited_at,omitempty"`
	AccumulatedDwell time.Duration

	// Optional per-POI overrides of the tour-type defaults.
	DwellOverride    *time.Duration
	MaxSpeedOverride *float64 // mph

	// OpeningHours maps weekday to open windows. Empty means always open.
	OpeningHours map[time.Weekday][]TimeWindow `json:"opening_hours,omitempty"`
}

// Coordinate returns the POI's position.
func (p *PointOfInterest) Coordinate() Coordinate {
	return Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

// IsOpenAt reports whether the POI is open at the given local time. POIs
// without declared hours are always open.
func (p *PointOfInterest) IsOpenAt(t time.Time) bool {
	if len(p.OpeningHours) == 0 {
		return true
	}
	windows, ok := p.OpeningHours[t.Weekday()]
	if !ok || len(windows) == 0 {
		return false
	}
	now := t.Format("15:04")
	for _, w := range windows {
		if w.Open <= now && now < w.Close {
			return true
		}
	}
	return false
}

// Tour is an ordered set of POIs plus its type-derived configuration.
// Immutable for the duration of a tracking session.
type Tour struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        TourType  `json:"tour_type"`
	POIs        []*PointOfInterest

	// Optional per-tour overrides of the tour-type defaults.
	DwellOverride    *time.Duration
	MaxSpeedOverride *float64 // mph

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config returns the configuration table entry for the tour's type.
func (t *Tour) Config() TourConfig {
	return t.Type.Config()
}

// EffectiveDwellTime resolves the dwell requirement for a POI: POI override,
// then tour override, then the tour-type table.
func (t *Tour) EffectiveDwellTime(poi *PointOfInterest) time.Duration {
	if poi != nil && poi.DwellOverride != nil {
		return *poi.DwellOverride
	}
	if t.DwellOverride != nil {
		return *t.DwellOverride
	}
	return t.Config().EffectiveDwellTime
}

// EffectiveMaxSpeed resolves the speed ceiling (mph) for a POI the same way.
func (t *Tour) EffectiveMaxSpeed(poi *PointOfInterest) float64 {
	if poi != nil && poi.MaxSpeedOverride != nil {
		return *poi.MaxSpeedOverride
	}
	if t.MaxSpeedOverride != nil {
		return *t.MaxSpeedOverride
	}
	return t.Config().EffectiveMaxSpeedMPH
}

// FindPOI returns the POI with the given id, or nil.
func (t *Tour) FindPOI(id uuid.UUID) *PointOfInterest {
	for _, p := range t.POIs {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Tour) String() string {
	return fmt.Sprintf("tour %s (%s, %d pois)", t.Name, t.Type, len(t.POIs))
}
