package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stwalsh4118/gotham-eye/internal/database"
	"github.com/stwalsh4118/gotham-eye/internal/models"
)

const tableIncidents = "incidents"

// builder returns a squirrel statement builder using Postgres placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// IncidentFilter narrows incident queries. Zero-value Start/End leave that
// bound open; empty Categories matches all categories; Limit <= 0 means
// no limit.
type IncidentFilter struct {
	City       models.City
	Start      time.Time
	End        time.Time
	Categories []string
	Limit      int
}

// IncidentPoint is the coordinate pair of one stored incident.
type IncidentPoint struct {
	Latitude  float64
	Longitude float64
}

// CategoryCount pairs an offense category with its incident count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// IncidentRepository defines the interface for incident warehouse access.
type IncidentRepository interface {
	// FindPoints returns the coordinates of incidents matching the filter,
	// newest first. Returns an empty slice if nothing matches (not an error).
	FindPoints(ctx context.Context, filter IncidentFilter) ([]IncidentPoint, error)

	// CountByCategory returns per-category incident counts for a city,
	// largest count first. Returns an empty slice for an unseen city.
	CountByCategory(ctx context.Context, city models.City) ([]CategoryCount, error)

	// LatestOccurredAt returns the newest stored occurrence time for a city.
	// Returns nil, nil when the city has no rows (not an error).
	LatestOccurredAt(ctx context.Context, city models.City) (*time.Time, error)

	// InsertBatch upserts incidents keyed on (city, source_id) and returns
	// the number of newly inserted rows; conflicting rows are skipped.
	InsertBatch(ctx context.Context, incidents []models.Incident) (int64, error)
}

// incidentRepository is the concrete implementation of IncidentRepository.
type incidentRepository struct {
	db *database.Database
}

// NewIncidentRepository creates a new instance of IncidentRepository.
func NewIncidentRepository(db *database.Database) IncidentRepository {
	return &incidentRepository{
		db: db,
	}
}

func (r *incidentRepository) FindPoints(ctx context.Context, filter IncidentFilter) ([]IncidentPoint, error) {
	query := builder().
		Select("latitude", "longitude").
		From(tableIncidents).
		Where(sq.Eq{"city": filter.City.String()}).
		OrderBy("occurred_at DESC")

	if !filter.Start.IsZero() {
		query = query.Where(sq.GtOrEq{"occurred_at": filter.Start})
	}
	if !filter.End.IsZero() {
		query = query.Where(sq.LtOrEq{"occurred_at": filter.End})
	}
	if len(filter.Categories) > 0 {
		query = query.Where(sq.Eq{"category": filter.Categories})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build incident points query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident points for city %s: %w", filter.City, err)
	}
	defer rows.Close()

	points := []IncidentPoint{}
	for rows.Next() {
		var point IncidentPoint
		if err := rows.Scan(&point.Latitude, &point.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan incident point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incident points: %w", err)
	}

	return points, nil
}

func (r *incidentRepository) CountByCategory(ctx context.Context, city models.City) ([]CategoryCount, error) {
	query := builder().
		Select("category", "COUNT(*) AS total").
		From(tableIncidents).
		Where(sq.Eq{"city": city.String()}).
		GroupBy("category").
		OrderBy("total DESC", "category ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build category count query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts for city %s: %w", city, err)
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var count CategoryCount
		if err := rows.Scan(&count.Category, &count.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}

func (r *incidentRepository) LatestOccurredAt(ctx context.Context, city models.City) (*time.Time, error) {
	query := builder().
		Select("MAX(occurred_at)").
		From(tableIncidents).
		Where(sq.Eq{"city": city.String()})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest occurrence query: %w", err)
	}

	// MAX over zero rows yields NULL, which scans into a nil pointer.
	var latest *time.Time
	if err := r.db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to query latest occurrence for city %s: %w", city, err)
	}

	return latest, nil
}

func (r *incidentRepository) InsertBatch(ctx context.Context, incidents []models.Incident) (int64, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	query := builder().
		Insert(tableIncidents).
		Columns("city", "source_id", "category", "description", "occurred_at", "latitude", "longitude").
		Suffix("ON CONFLICT (city, source_id) DO NOTHING")

	for _, incident := range incidents {
		query = query.Values(
			incident.City.String(),
			incident.SourceID,
			incident.Category,
			incident.Description,
			incident.OccurredAt,
			incident.Latitude,
			incident.Longitude,
		)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build incident insert: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert incident batch: %w", err)
	}

	return tag.RowsAffected(), nil
}
