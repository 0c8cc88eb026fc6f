package trajectory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

func sample(lat, lng, speedMS float64, ts time.Time) models.Position {
	return models.Position{
		Coordinate:         models.Coordinate{Latitude: lat, Longitude: lng},
		HorizontalAccuracy: 10,
		Speed:              speedMS,
		Timestamp:          ts,
	}
}

func TestRecordEvictsBeyondWindows(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	base := time.Now()

	for i := 0; i < 12; i++ {
		tr.Record(sample(38.72+float64(i)*0.0001, -9.1393, 2, base.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 5, tr.HistoryDepth())
	assert.Len(t, tr.speeds, 10)
}

func TestCurrentSpeedTreatsNegativeAsZero(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Record(sample(38.72, -9.13, -1, time.Now()))
	assert.Zero(t, tr.CurrentSpeedMPH())
}

func TestAverageApproachSpeedNeedsHistory(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	base := time.Now()

	// 10 m/s ~ 22.37 mph
	tr.Record(sample(38.72, -9.13, 10, base))
	tr.Record(sample(38.721, -9.13, 20, base.Add(time.Second)))

	// Fewer than 3 samples: falls back to current speed.
	assert.InDelta(t, 20*models.MetersPerSecondToMPH, tr.AverageApproachSpeedMPH(), 0.01)

	tr.Record(sample(38.722, -9.13, 30, base.Add(2*time.Second)))
	want := (10 + 20 + 30) * models.MetersPerSecondToMPH / 3
	assert.InDelta(t, want, tr.AverageApproachSpeedMPH(), 0.01)
}

func TestAverageApproachSpeedIgnoresStaleSamples(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	base := time.Now()

	tr.Record(sample(38.72, -9.13, 50, base))
	tr.Record(sample(38.721, -9.13, 50, base.Add(time.Second)))
	// The next samples arrive a minute later; the old ones are stale.
	tr.Record(sample(38.722, -9.13, 10, base.Add(61*time.Second)))
	tr.Record(sample(38.723, -9.13, 10, base.Add(62*time.Second)))

	// Only 2 fresh samples remain, so the average falls back to current speed.
	assert.InDelta(t, 10*models.MetersPerSecondToMPH, tr.AverageApproachSpeedMPH(), 0.01)
}

func TestBearingFromLastTwoPositions(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	base := time.Now()

	_, ok := tr.Bearing()
	assert.False(t, ok)

	tr.Record(sample(38.7200, -9.1393, 2, base))
	tr.Record(sample(38.7210, -9.1393, 2, base.Add(time.Second))) // due north

	b, ok := tr.Bearing()
	assert.True(t, ok)
	assert.InDelta(t, 0, b, 0.5)

	tr.Record(sample(38.7210, -9.1380, 2, base.Add(2*time.Second))) // due east
	b, _ = tr.Bearing()
	assert.InDelta(t, 90, b, 1)
}

func TestClassifyApproach(t *testing.T) {
	target := models.Coordinate{Latitude: 38.7300, Longitude: -9.1393}
	base := time.Now()

	t.Run("approaching and slowing", func(t *testing.T) {
		tr := NewTracker(zap.NewNop())
		tr.Record(sample(38.7200, -9.1393, 10, base))
		tr.Record(sample(38.7250, -9.1393, 5, base.Add(time.Second)))

		a := tr.ClassifyApproach(target)
		assert.True(t, a.HasHistory)
		assert.True(t, a.IsApproaching)
		assert.False(t, a.IsMovingAway)
		assert.True(t, a.IsSlowingDown)
	})

	t.Run("moving away", func(t *testing.T) {
		tr := NewTracker(zap.NewNop())
		tr.Record(sample(38.7290, -9.1393, 5, base))
		tr.Record(sample(38.7250, -9.1393, 10, base.Add(time.Second)))

		a := tr.ClassifyApproach(target)
		assert.True(t, a.IsMovingAway)
		assert.False(t, a.IsApproaching)
		assert.False(t, a.IsSlowingDown)
	})

	t.Run("no history", func(t *testing.T) {
		tr := NewTracker(zap.NewNop())
		tr.Record(sample(38.7200, -9.1393, 5, base))
		a := tr.ClassifyApproach(target)
		assert.False(t, a.HasHistory)
	})
}

func TestReset(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Record(sample(38.72, -9.13, 5, time.Now()))
	tr.Record(sample(38.73, -9.13, 5, time.Now()))

	tr.Reset()

	assert.Zero(t, tr.HistoryDepth())
	assert.Zero(t, tr.CurrentSpeedMPH())
	_, ok := tr.Bearing()
	assert.False(t, ok)
}
