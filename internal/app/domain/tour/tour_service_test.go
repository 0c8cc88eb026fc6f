package tour

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	args := m.Called(ctx, tourID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockRepository) FetchPOIsForTour(ctx context.Context, tourID uuid.UUID) ([]*models.PointOfInterest, error) {
	args := m.Called(ctx, tourID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PointOfInterest), args.Error(1)
}

func (m *MockRepository) ListPOIs(ctx context.Context, filter POIFilter) ([]*models.PointOfInterest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PointOfInterest), args.Error(1)
}

func (m *MockRepository) SaveVisit(ctx context.Context, poi *models.PointOfInterest, visit *models.CompletedVisit) error {
	args := m.Called(ctx, poi, visit)
	return args.Error(0)
}

func TestGetTourWithPOIsCachesReads(t *testing.T) {
	tourID := uuid.New()
	repo := new(MockRepository)
	repo.On("GetTour", mock.Anything, tourID).
		Return(&models.Tour{ID: tourID, Name: "Alfama", Type: models.TourTypeWalking}, nil).Once()
	repo.On("FetchPOIsForTour", mock.Anything, tourID).
		Return([]*models.PointOfInterest{{ID: uuid.New(), Name: "Sé"}}, nil).Once()

	svc := NewServiceImpl(repo, zap.NewNop())

	first, err := svc.GetTourWithPOIs(context.Background(), tourID)
	require.NoError(t, err)
	require.Len(t, first.POIs, 1)

	// Second read is served from cache; the mocks allow only one call each.
	second, err := svc.GetTourWithPOIs(context.Background(), tourID)
	require.NoError(t, err)
	assert.Same(t, first, second)

	repo.AssertExpectations(t)
}

func TestListUnvisitedPOIsFiltersByTour(t *testing.T) {
	tourID := uuid.New()
	remaining := []*models.PointOfInterest{{ID: uuid.New(), Name: "Miradouro"}}
	repo := new(MockRepository)
	repo.On("ListPOIs", mock.Anything, POIFilter{TourID: &tourID, Unvisited: true}).
		Return(remaining, nil).Once()

	svc := NewServiceImpl(repo, zap.NewNop())
	got, err := svc.ListUnvisitedPOIs(context.Background(), tourID)
	require.NoError(t, err)
	assert.Equal(t, remaining, got)

	repo.AssertExpectations(t)
}

func TestGetTourWithPOIsPropagatesErrors(t *testing.T) {
	tourID := uuid.New()
	repo := new(MockRepository)
	repo.On("GetTour", mock.Anything, tourID).Return(nil, models.ErrTourNotFound).Once()

	svc := NewServiceImpl(repo, zap.NewNop())
	_, err := svc.GetTourWithPOIs(context.Background(), tourID)
	assert.ErrorIs(t, err, models.ErrTourNotFound)
	repo.AssertExpectations(t)
}

func TestMarkVisitedAsyncPersistsInBackground(t *testing.T) {
	poi := &models.PointOfInterest{ID: uuid.New(), Name: "Sé", IsVisited: true}
	visit := &models.CompletedVisit{POI: poi, Dwell: 40 * time.Second}

	saved := make(chan struct{})
	repo := new(MockRepository)
	repo.On("SaveVisit", mock.Anything, poi, visit).
		Run(func(mock.Arguments) { close(saved) }).
		Return(nil).Once()

	svc := NewServiceImpl(repo, zap.NewNop())
	svc.MarkVisitedAsync(poi, visit)

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("expected SaveVisit to be called")
	}
	repo.AssertExpectations(t)
}

func TestMarkVisitedAsyncSwallowsErrors(t *testing.T) {
	poi := &models.PointOfInterest{ID: uuid.New(), Name: "Sé", IsVisited: true}
	visit := &models.CompletedVisit{POI: poi}

	saved := make(chan struct{})
	repo := new(MockRepository)
	repo.On("SaveVisit", mock.Anything, poi, visit).
		Run(func(mock.Arguments) { close(saved) }).
		Return(errors.New("connection refused")).Once()

	svc := NewServiceImpl(repo, zap.NewNop())

	// Must not panic or propagate; the in-memory state stays authoritative.
	svc.MarkVisitedAsync(poi, visit)

	select {
	case <-saved:
	case <-time.After(2 * time.Second):
		t.Fatal("expected SaveVisit to be called")
	}
	repo.AssertExpectations(t)
}
