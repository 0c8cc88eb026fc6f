// Package location defines the boundary contract to the platform location
// services. The tour core only sees this interface; the real mobile feed is
// an external collaborator.
package location

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

// RegionSignal is a raw boundary-crossing notification for a registered
// region. The core resolves the region id back to a POI.
type RegionSignal struct {
	RegionID  uuid.UUID
	Type      models.RegionEventType
	Timestamp time.Time
}

// Feed supplies position readings and region crossing signals, and accepts
// region registration commands. Register/unregister may be arbitrarily slow;
// callers must not hold domain state across these calls.
type Feed interface {
	Positions() <-chan models.Position
	RegionEvents() <-chan RegionSignal

	RegisterRegion(ctx context.Context, id uuid.UUID, center models.Coordinate, radius float64) error
	UnregisterRegion(ctx context.Context, id uuid.UUID) error
	UnregisterAll(ctx context.Context) error
}
