package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/spatial"
)

// Service-level errors
var (
	ErrUnknownCity      = spatial.ErrUnknownCity
	ErrTooManyPoints    = errors.New("too many points in batch")
	ErrIndexUnavailable = errors.New("spatial index unavailable")
)

// IndexManager is the index lifecycle surface the services drive.
// *spatial.Manager implements it.
type IndexManager interface {
	IsKnown(city models.City) bool
	IsReady(city models.City) bool
	EnsureReady(ctx context.Context, city models.City) (*spatial.CityIndex, error)
	Rebuild(ctx context.Context, city models.City) (*spatial.CityIndex, error)
	Lookup(city models.City, lat, lon float64) spatial.LookupResult
	LookupBatch(city models.City, points []spatial.BatchPoint) []spatial.BatchResult
	Stats() spatial.ManagerStats
	Readiness() map[string]bool
	Cities() []models.City
}

// SpatialService defines the interface for spatial lookup operations.
type SpatialService interface {
	// LookupPoint resolves one coordinate pair. The city's index is built
	// lazily on first use; every outcome, including unknown cities and
	// out-of-range coordinates, is reported as a reason code rather than
	// an error.
	LookupPoint(ctx context.Context, city models.City, lat, lon float64) spatial.LookupResult

	// LookupBatch resolves a batch of correlated points against one index
	// snapshot. Returns ErrTooManyPoints when the batch exceeds the
	// configured cap; per-point outcomes are reason codes, never errors.
	LookupBatch(ctx context.Context, city models.City, points []spatial.BatchPoint) ([]spatial.BatchResult, error)

	// ListRegions returns the city's regions in catalog order, building
	// the index on first use. Returns ErrUnknownCity for unconfigured
	// cities and ErrIndexUnavailable when the build fails.
	ListRegions(ctx context.Context, city models.City) ([]models.Region, error)

	// Rebuild reconstructs the city's index from the boundary files on
	// disk. On failure the previous index keeps serving and
	// ErrIndexUnavailable is returned.
	Rebuild(ctx context.Context, city models.City) (spatial.CityStats, error)

	// Stats reports aggregate and per-city index state. Non-blocking.
	Stats() spatial.ManagerStats

	// Readiness reports per-city readiness keyed by city name. Non-blocking.
	Readiness() map[string]bool
}

// spatialService is the concrete implementation of SpatialService.
type spatialService struct {
	manager  IndexManager
	maxBatch int
	log      *logger.Logger
}

// NewSpatialService creates a new instance of SpatialService.
func NewSpatialService(manager IndexManager, maxBatch int, log *logger.Logger) SpatialService {
	return &spatialService{
		manager:  manager,
		maxBatch: maxBatch,
		log:      log,
	}
}

// LookupPoint resolves one point, building the city's index on first use.
// A failed build is logged and degrades to an index_not_ready result so
// the endpoint keeps its null-result contract.
func (s *spatialService) LookupPoint(ctx context.Context, city models.City, lat, lon float64) spatial.LookupResult {
	s.ensureForLookup(ctx, city)

	result := s.manager.Lookup(city, lat, lon)
	metrics.LookupsTotal.WithLabelValues(metricCity(s.manager, city), result.Reason).Inc()

	s.log.Debug("Point lookup", map[string]interface{}{
		"city":      city.String(),
		"lat":       lat,
		"lon":       lon,
		"reason":    result.Reason,
		"region_id": result.RegionID,
	})

	return result
}

// LookupBatch resolves up to maxBatch points against a single snapshot.
func (s *spatialService) LookupBatch(ctx context.Context, city models.City, points []spatial.BatchPoint) ([]spatial.BatchResult, error) {
	if len(points) > s.maxBatch {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyPoints, len(points), s.maxBatch)
	}

	s.ensureForLookup(ctx, city)

	results := s.manager.LookupBatch(city, points)

	cityLabel := metricCity(s.manager, city)
	for _, r := range results {
		metrics.LookupsTotal.WithLabelValues(cityLabel, r.Result.Reason).Inc()
	}

	s.log.Info("Batch lookup", map[string]interface{}{
		"city":   city.String(),
		"points": len(points),
	})

	return results, nil
}

// ensureForLookup triggers the lazy first build for a configured city.
// Build failures are logged here and surface through the subsequent
// lookup as an index_not_ready reason.
func (s *spatialService) ensureForLookup(ctx context.Context, city models.City) {
	if !s.manager.IsKnown(city) {
		return
	}
	if _, err := s.manager.EnsureReady(ctx, city); err != nil {
		s.log.Error("Index build failed during lookup", err, map[string]interface{}{
			"city": city.String(),
		})
	}
}

// ListRegions returns the city's regions in catalog order.
func (s *spatialService) ListRegions(ctx context.Context, city models.City) ([]models.Region, error) {
	idx, err := s.manager.EnsureReady(ctx, city)
	if err != nil {
		if errors.Is(err, ErrUnknownCity) {
			return nil, err
		}
		s.log.Error("Failed to ready index for region list", err, map[string]interface{}{
			"city": city.String(),
		})
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	return idx.Regions(), nil
}

// Rebuild reconstructs the city's index and reports the new state.
func (s *spatialService) Rebuild(ctx context.Context, city models.City) (spatial.CityStats, error) {
	s.log.Info("Rebuilding spatial index", map[string]interface{}{
		"city": city.String(),
	})

	idx, err := s.manager.Rebuild(ctx, city)
	if err != nil {
		if errors.Is(err, ErrUnknownCity) {
			return spatial.CityStats{}, err
		}
		s.log.Error("Rebuild failed, previous index retained", err, map[string]interface{}{
			"city": city.String(),
		})
		return spatial.CityStats{}, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	builtAt := idx.BuiltAt()
	return spatial.CityStats{
		City:    city,
		Ready:   true,
		Regions: idx.TotalRegions(),
		Cells:   idx.TotalCells(),
		BuiltAt: &builtAt,
	}, nil
}

// Stats reports aggregate and per-city index state.
func (s *spatialService) Stats() spatial.ManagerStats {
	return s.manager.Stats()
}

// Readiness reports per-city readiness keyed by city name.
func (s *spatialService) Readiness() map[string]bool {
	return s.manager.Readiness()
}

// metricCity keeps the lookup counter's city label bounded: arbitrary
// unconfigured city strings from user input collapse to "unknown".
func metricCity(manager IndexManager, city models.City) string {
	if manager.IsKnown(city) {
		return city.String()
	}
	return "unknown"
}
