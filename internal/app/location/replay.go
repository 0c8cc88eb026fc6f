package location

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/geo"
)

type replayRegion struct {
	center models.Coordinate
	radius float64
	inside bool
}

// ReplayFeed is a Feed fed by pushed samples. It synthesizes entry/exit
// signals against the currently registered regions, which makes it usable
// both as a test double and as a recorded-track demo driver.
type ReplayFeed struct {
	mu        sync.Mutex
	regions   map[uuid.UUID]*replayRegion
	positions chan models.Position
	signals   chan RegionSignal
}

var _ Feed = (*ReplayFeed)(nil)

// NewReplayFeed creates an empty replay feed.
func NewReplayFeed() *ReplayFeed {
	return &ReplayFeed{
		regions:   make(map[uuid.UUID]*replayRegion),
		positions: make(chan models.Position, 128),
		signals:   make(chan RegionSignal, 128),
	}
}

func (f *ReplayFeed) Positions() <-chan models.Position { return f.positions }
func (f *ReplayFeed) RegionEvents() <-chan RegionSignal { return f.signals }

// RegisterRegion starts watching a circular region.
func (f *ReplayFeed) RegisterRegion(_ context.Context, id uuid.UUID, center models.Coordinate, radius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[id] = &replayRegion{center: center, radius: radius}
	return nil
}

// UnregisterRegion stops watching a region. Unknown ids are a no-op.
func (f *ReplayFeed) UnregisterRegion(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.regions, id)
	return nil
}

// UnregisterAll drops every watched region.
func (f *ReplayFeed) UnregisterAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = make(map[uuid.UUID]*replayRegion)
	return nil
}

// RegisteredCount returns how many regions are currently watched.
func (f *ReplayFeed) RegisteredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.regions)
}

// Push injects a position sample, emitting it on the position stream and
// synthesizing boundary crossings for every registered region.
func (f *ReplayFeed) Push(p models.Position) {
	f.positions <- p

	f.mu.Lock()
	var crossings []RegionSignal
	for id, r := range f.regions {
		inside := geo.Distance(p.Coordinate, r.center) <= r.radius
		if inside == r.inside {
			continue
		}
		r.inside = inside
		typ := models.RegionExited
		if inside {
			typ = models.RegionEntered
		}
		crossings = append(crossings, RegionSignal{RegionID: id, Type: typ, Timestamp: p.Timestamp})
	}
	f.mu.Unlock()

	for _, c := range crossings {
		f.signals <- c
	}
}

// Close closes both streams. Push must not be called afterwards.
func (f *ReplayFeed) Close() {
	close(f.positions)
	close(f.signals)
}
