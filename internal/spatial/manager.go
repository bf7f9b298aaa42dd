package spatial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownCity indicates a city outside the configured set.
var ErrUnknownCity = errors.New("unknown city")

// RegionLoader supplies a city's region boundaries. *Catalog implements it;
// tests substitute their own loaders.
type RegionLoader interface {
	LoadRegions(city models.City) ([]models.Region, error)
}

// CityStats summarizes one configured city's index state.
type CityStats struct {
	City    models.City `json:"city"`
	Ready   bool        `json:"ready"`
	Regions int         `json:"regions"`
	Cells   int         `json:"cells"`
	BuiltAt *time.Time  `json:"built_at,omitempty"`
}

// ManagerStats summarizes index state across all configured cities.
type ManagerStats struct {
	TotalCities  int         `json:"total_cities"`
	ReadyCities  int         `json:"ready_cities"`
	TotalRegions int         `json:"total_regions"`
	TotalCells   int         `json:"total_cells"`
	Resolution   int         `json:"resolution"`
	Cities       []CityStats `json:"cities"`
}

// Manager owns the per-city index lifecycle: Unbuilt, Building, Ready, and
// Ready back to Building on explicit rebuild. Indexes are built at most
// once per city unless rebuilt; concurrent build requests for the same
// city coalesce into a single build whose result (or error) every waiter
// shares. Installed indexes are immutable and swapped as whole pointers,
// so readers never observe a partially built index.
type Manager struct {
	loader     RegionLoader
	builder    *Builder
	resolution int
	cities     map[models.City]struct{}
	cityOrder  []models.City
	log        *logger.Logger

	mu      sync.RWMutex
	indexes map[models.City]*CityIndex

	group singleflight.Group
}

// NewManager creates a Manager for the given configured cities.
func NewManager(loader RegionLoader, builder *Builder, cities []models.City, log *logger.Logger) *Manager {
	citySet := make(map[models.City]struct{}, len(cities))
	cityOrder := make([]models.City, 0, len(cities))
	for _, city := range cities {
		if _, seen := citySet[city]; seen {
			continue
		}
		citySet[city] = struct{}{}
		cityOrder = append(cityOrder, city)
	}

	return &Manager{
		loader:     loader,
		builder:    builder,
		resolution: builder.Resolution(),
		cities:     citySet,
		cityOrder:  cityOrder,
		log:        log,
		indexes:    make(map[models.City]*CityIndex, len(cities)),
	}
}

// Cities returns the configured cities in configuration order.
func (m *Manager) Cities() []models.City {
	out := make([]models.City, len(m.cityOrder))
	copy(out, m.cityOrder)
	return out
}

// IsKnown reports whether city is in the configured set.
func (m *Manager) IsKnown(city models.City) bool {
	_, ok := m.cities[city]
	return ok
}

// Snapshot returns the city's currently installed index, if any.
// The returned index stays valid even if a rebuild swaps in a newer one.
func (m *Manager) Snapshot(city models.City) (*CityIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[city]
	return idx, ok
}

// IsReady reports whether the city's index is built. Never blocks.
func (m *Manager) IsReady(city models.City) bool {
	_, ok := m.Snapshot(city)
	return ok
}

// EnsureReady returns the city's index, building it on first use.
// Concurrent callers for one city wait on a single shared build and all
// receive the same index or the same error; a failed build leaves the
// city unbuilt so a later call may retry. Cancelling ctx releases this
// caller while the in-flight build completes for the remaining waiters.
func (m *Manager) EnsureReady(ctx context.Context, city models.City) (*CityIndex, error) {
	if !m.IsKnown(city) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, city)
	}
	if idx, ok := m.Snapshot(city); ok {
		return idx, nil
	}

	ch := m.group.DoChan(string(city), func() (interface{}, error) {
		// A finished build may have installed the index between the
		// snapshot check and this flight starting.
		if idx, ok := m.Snapshot(city); ok {
			return idx, nil
		}
		return m.build(city)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CityIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Rebuild constructs a fresh index from the current boundary files and
// swaps it in atomically. In-flight readers keep their old snapshot; on
// failure the previously installed index, if any, keeps serving.
func (m *Manager) Rebuild(ctx context.Context, city models.City) (*CityIndex, error) {
	if !m.IsKnown(city) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, city)
	}

	ch := m.group.DoChan(string(city), func() (interface{}, error) {
		return m.build(city)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CityIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build loads the city's regions, fills them into cells and installs the
// resulting index. The installed map is only touched on success.
func (m *Manager) build(city models.City) (*CityIndex, error) {
	start := time.Now()
	m.log.Info("Building spatial index", map[string]interface{}{
		"city":       city.String(),
		"resolution": m.resolution,
	})

	regions, err := m.loader.LoadRegions(city)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues(city.String(), "failure").Inc()
		m.log.Error("Spatial index build failed", err, map[string]interface{}{
			"city": city.String(),
		})
		return nil, fmt.Errorf("building index for city %q: %w", city, err)
	}

	cellToRegion := m.builder.BuildCellMap(regions)
	idx := newCityIndex(city, m.resolution, regions, cellToRegion)

	m.mu.Lock()
	m.indexes[city] = idx
	m.mu.Unlock()

	elapsed := time.Since(start)
	metrics.IndexBuildsTotal.WithLabelValues(city.String(), "success").Inc()
	metrics.IndexBuildDuration.WithLabelValues(city.String()).Observe(elapsed.Seconds())
	metrics.IndexedCells.WithLabelValues(city.String()).Set(float64(idx.TotalCells()))
	metrics.IndexedRegions.WithLabelValues(city.String()).Set(float64(idx.TotalRegions()))

	m.log.Info("Spatial index built", map[string]interface{}{
		"city":        city.String(),
		"regions":     idx.TotalRegions(),
		"cells":       idx.TotalCells(),
		"resolution":  m.resolution,
		"duration_ms": elapsed.Milliseconds(),
	})

	return idx, nil
}

// Lookup resolves one point against the city's current index snapshot.
// It never blocks on index construction: an unconfigured city or an
// unbuilt index yields a null result with the matching reason code.
func (m *Manager) Lookup(city models.City, lat, lon float64) LookupResult {
	if !m.IsKnown(city) {
		return LookupResult{Reason: ReasonUnknownCity}
	}
	idx, ok := m.Snapshot(city)
	if !ok {
		return LookupResult{Reason: ReasonIndexNotReady}
	}
	return idx.ResolvePoint(lat, lon)
}

// LookupBatch resolves all points against one snapshot, so every entry in
// a batch sees the same index generation.
func (m *Manager) LookupBatch(city models.City, points []BatchPoint) []BatchResult {
	if !m.IsKnown(city) {
		return uniformBatch(points, LookupResult{Reason: ReasonUnknownCity})
	}
	idx, ok := m.Snapshot(city)
	if !ok {
		return uniformBatch(points, LookupResult{Reason: ReasonIndexNotReady})
	}
	return idx.ResolveBatch(points)
}

func uniformBatch(points []BatchPoint, result LookupResult) []BatchResult {
	results := make([]BatchResult, len(points))
	for i, point := range points {
		results[i] = BatchResult{ID: point.ID, Result: result}
	}
	return results
}

// Stats reports aggregate and per-city index state in configuration order.
func (m *Manager) Stats() ManagerStats {
	stats := ManagerStats{
		TotalCities: len(m.cityOrder),
		Resolution:  m.resolution,
		Cities:      make([]CityStats, 0, len(m.cityOrder)),
	}

	for _, city := range m.cityOrder {
		cityStats := CityStats{City: city}
		if idx, ok := m.Snapshot(city); ok {
			builtAt := idx.BuiltAt()
			cityStats.Ready = true
			cityStats.Regions = idx.TotalRegions()
			cityStats.Cells = idx.TotalCells()
			cityStats.BuiltAt = &builtAt

			stats.ReadyCities++
			stats.TotalRegions += cityStats.Regions
			stats.TotalCells += cityStats.Cells
		}
		stats.Cities = append(stats.Cities, cityStats)
	}

	return stats
}

// Readiness reports per-city readiness keyed by city name.
func (m *Manager) Readiness() map[string]bool {
	ready := make(map[string]bool, len(m.cityOrder))
	for _, city := range m.cityOrder {
		ready[city.String()] = m.IsReady(city)
	}
	return ready
}

// WarmUp eagerly builds every configured city's index. Failures are
// logged per city and do not abort the remaining builds; lookups for a
// failed city keep reporting the index as not ready.
func (m *Manager) WarmUp(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, city := range m.cityOrder {
		g.Go(func() error {
			if _, err := m.EnsureReady(ctx, city); err != nil {
				m.log.Error("Startup index build failed", err, map[string]interface{}{
					"city": city.String(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
}
