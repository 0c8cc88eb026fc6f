package tour

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/FACorreiaa/loci-guide/internal/app/models"
)

// DB is the subset of pgxpool.Pool the repository needs. Narrowed so tests
// can drive it with pgxmock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// POIFilter narrows ListPOIs results.
type POIFilter struct {
	TourID     *uuid.UUID
	Importance *models.Importance
	Unvisited  bool
	Limit      uint64
}

// Repository is the persistence contract for tours, POIs and visit records.
type Repository interface {
	GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error)
	FetchPOIsForTour(ctx context.Context, tourID uuid.UUID) ([]*models.PointOfInterest, error)
	ListPOIs(ctx context.Context, filter POIFilter) ([]*models.PointOfInterest, error)
	SaveVisit(ctx context.Context, poi *models.PointOfInterest, visit *models.CompletedVisit) error
}

type RepositoryImpl struct {
	db DB
}

var _ Repository = (*RepositoryImpl)(nil)

// NewRepository creates a repository on the given pool.
func NewRepository(db DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// GetTour loads a tour row without its POIs.
func (r *RepositoryImpl) GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	query := `
		SELECT id, name, description, tour_type, dwell_override_seconds, max_speed_override_mph, created_at, updated_at
		FROM tours
		WHERE id = $1
	`

	var t models.Tour
	var dwellSeconds *int64
	err := r.db.QueryRow(ctx, query, tourID).Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Type,
		&dwellSeconds,
		&t.MaxSpeedOverride,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTourNotFound
		}
		return nil, errors.Wrap(err, "failed to get tour")
	}
	if dwellSeconds != nil {
		d := time.Duration(*dwellSeconds) * time.Second
		t.DwellOverride = &d
	}
	return &t, nil
}

// FetchPOIsForTour loads the tour's POIs in sequence order.
func (r *RepositoryImpl) FetchPOIsForTour(ctx context.Context, tourID uuid.UUID) ([]*models.PointOfInterest, error) {
	query := `
		SELECT id, tour_id, name, latitude, longitude, base_radius, importance, sequence_order,
		       is_visited, visited_at, accumulated_dwell_seconds,
		       dwell_override_seconds, max_speed_override_mph, opening_hours
		FROM pois
		WHERE tour_id = $1
		ORDER BY sequence_order ASC
	`

	rows, err := r.db.Query(ctx, query, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pois")
	}
	defer rows.Close()

	return scanPOIs(rows)
}

// ListPOIs returns POIs matching the filter.
func (r *RepositoryImpl) ListPOIs(ctx context.Context, filter POIFilter) ([]*models.PointOfInterest, error) {
	builder := sq.Select(
		"id", "tour_id", "name", "latitude", "longitude", "base_radius", "importance", "sequence_order",
		"is_visited", "visited_at", "accumulated_dwell_seconds",
		"dwell_override_seconds", "max_speed_override_mph", "opening_hours",
	).
		From("pois").
		OrderBy("sequence_order ASC").
		PlaceholderFormat(sq.Dollar)

	if filter.TourID != nil {
		builder = builder.Where(sq.Eq{"tour_id": *filter.TourID})
	}
	if filter.Importance != nil {
		builder = builder.Where(sq.Eq{"importance": *filter.Importance})
	}
	if filter.Unvisited {
		builder = builder.Where(sq.Eq{"is_visited": false})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build poi list query")
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pois")
	}
	defer rows.Close()

	return scanPOIs(rows)
}

// SaveVisit persists the visited flag on the POI and appends a visit record.
func (r *RepositoryImpl) SaveVisit(ctx context.Context, poi *models.PointOfInterest, visit *models.CompletedVisit) error {
	updatePOI := `
		UPDATE pois
		SET is_visited = $2, visited_at = $3, accumulated_dwell_seconds = $4
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, updatePOI,
		poi.ID,
		poi.IsVisited,
		poi.VisitedAt,
		int64(poi.AccumulatedDwell.Seconds()),
	); err != nil {
		return errors.Wrap(err, "failed to update poi visited state")
	}

	insertVisit := `
		INSERT INTO poi_visits (id, poi_id, tour_id, started_at, completed_at, dwell_seconds, drive_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.Exec(ctx, insertVisit,
		uuid.New(),
		poi.ID,
		visit.TourID,
		visit.StartedAt,
		visit.CompletedAt,
		int64(visit.Dwell.Seconds()),
		visit.DriveBy,
	); err != nil {
		return errors.Wrap(err, "failed to insert visit record")
	}
	return nil
}

func scanPOIs(rows pgx.Rows) ([]*models.PointOfInterest, error) {
	var pois []*models.PointOfInterest
	for rows.Next() {
		var p models.PointOfInterest
		var dwellSeconds int64
		var dwellOverrideSeconds *int64
		var openingHours []byte
		err := rows.Scan(
			&p.ID,
			&p.TourID,
			&p.Name,
			&p.Latitude,
			&p.Longitude,
			&p.BaseRadius,
			&p.Importance,
			&p.Order,
			&p.IsVisited,
			&p.VisitedAt,
			&dwellSeconds,
			&dwellOverrideSeconds,
			&p.MaxSpeedOverride,
			&openingHours,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan poi")
		}
		p.AccumulatedDwell = time.Duration(dwellSeconds) * time.Second
		if dwellOverrideSeconds != nil {
			d := time.Duration(*dwellOverrideSeconds) * time.Second
			p.DwellOverride = &d
		}
		if len(openingHours) > 0 {
			if err := json.Unmarshal(openingHours, &p.OpeningHours); err != nil {
				return nil, errors.Wrap(err, "failed to decode opening hours")
			}
		}
		pois = append(pois, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "poi rows iteration failed")
	}
	return pois, nil
}
