// Package bus is the typed in-process event channel through which the tour
// core publishes region, visit and scheduler notifications to its consumers
// (audio playback, UI, persistence).
package bus

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

// DefaultBufferSize is the per-subscriber channel depth.
const DefaultBufferSize = 64

// Event carries exactly one of the core's notification payloads.
type Event struct {
	Region    *models.RegionEvent
	Visit     *models.VisitEvent
	Scheduler *models.SchedulerStatus
}

// Subscription is one consumer's bounded event channel.
type Subscription struct {
	C chan Event

	bus  *Bus
	once sync.Once
}

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.C)
	})
}

// Bus fans events out to subscribers. Publishing never blocks: when a
// subscriber's channel is full the oldest pending event is dropped so a slow
// audio consumer cannot stall the state machine.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped atomic.Uint64
	logger  *zap.Logger
}

// New creates a bus with the given per-subscriber buffer size.
func New(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, b.buffer), bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every subscriber, dropping the oldest pending
// event on full channels.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.C <- e:
		default:
			select {
			case <-sub.C:
				b.dropped.Add(1)
			default:
			}
			select {
			case sub.C <- e:
			default:
				b.dropped.Add(1)
				b.logger.Warn("event bus subscriber saturated, event dropped")
			}
		}
	}
}

// PublishRegion is a convenience wrapper for region events.
func (b *Bus) PublishRegion(e *models.RegionEvent) { b.Publish(Event{Region: e}) }

// PublishVisit is a convenience wrapper for visit events.
func (b *Bus) PublishVisit(e *models.VisitEvent) { b.Publish(Event{Visit: e}) }

// PublishScheduler is a convenience wrapper for scheduler status.
func (b *Bus) PublishScheduler(s *models.SchedulerStatus) { b.Publish(Event{Scheduler: s}) }

// Dropped returns the number of events discarded due to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
