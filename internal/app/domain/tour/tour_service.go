// Package tour is the read side for tours and POIs plus the fire-and-forget
// persistence of visit outcomes.
package tour

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

const persistTimeout = 10 * time.Second

// Service defines the business logic contract for tour operations.
type Service interface {
	GetTourWithPOIs(ctx context.Context, tourID uuid.UUID) (*models.Tour, error)
	ListUnvisitedPOIs(ctx context.Context, tourID uuid.UUID) ([]*models.PointOfInterest, error)
	MarkVisited(ctx context.Context, poi *models.PointOfInterest, visit *models.CompletedVisit) error
	MarkVisitedAsync(poi *models.PointOfInterest, visit *models.CompletedVisit)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	cache  *cache.Cache
}

var _ Service = (*ServiceImpl)(nil)

// NewServiceImpl creates the tour service with a short-lived read cache.
func NewServiceImpl(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// GetTourWithPOIs loads a tour and its POIs, serving repeated reads from
// cache for the duration of a tracking session setup.
func (s *ServiceImpl) GetTourWithPOIs(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	ctx, span := otel.Tracer("loci-guide").Start(ctx, "TourService.GetTourWithPOIs", trace.WithAttributes(
		attribute.String("tour.id", tourID.String()),
	))
	defer span.End()

	cacheKey := fmt.Sprintf("tour:%s", tourID)
	if cached, found := s.cache.Get(cacheKey); found {
		if t, ok := cached.(*models.Tour); ok {
			return t, nil
		}
	}

	t, err := s.repo.GetTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	pois, err := s.repo.FetchPOIsForTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	t.POIs = pois

	s.cache.Set(cacheKey, t, cache.DefaultExpiration)
	s.logger.Info("tour loaded",
		zap.String("tour", t.Name),
		zap.String("tour_type", string(t.Type)),
		zap.Int("poi_count", len(pois)))
	return t, nil
}

// ListUnvisitedPOIs returns the tour's remaining stops in sequence order.
// Reads bypass the cache so freshly persisted visited flags are reflected.
func (s *ServiceImpl) ListUnvisitedPOIs(ctx context.Context, tourID uuid.UUID) ([]*models.PointOfInterest, error) {
	ctx, span := otel.Tracer("loci-guide").Start(ctx, "TourService.ListUnvisitedPOIs", trace.WithAttributes(
		attribute.String("tour.id", tourID.String()),
	))
	defer span.End()

	return s.repo.ListPOIs(ctx, POIFilter{TourID: &tourID, Unvisited: true})
}

// MarkVisited persists a completed visit synchronously.
func (s *ServiceImpl) MarkVisited(ctx context.Context, poi *models.PointOfInterest, visit *models.CompletedVisit) error {
	return s.repo.SaveVisit(ctx, poi, visit)
}

// MarkVisitedAsync persists a completed visit without blocking the caller.
// Failures are logged, not retried: the in-memory visited flag stays
// authoritative for the rest of the session.
func (s *ServiceImpl) MarkVisitedAsync(poi *models.PointOfInterest, visit *models.CompletedVisit) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.repo.SaveVisit(ctx, poi, visit); err != nil {
			s.logger.Error("failed to persist visit",
				zap.String("poi", poi.Name),
				zap.Error(err))
		}
	}()
}
