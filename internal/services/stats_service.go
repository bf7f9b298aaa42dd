package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/cache"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/repository"
)

// ErrInvalidTimeRange indicates a stats window whose start is after its end.
var ErrInvalidTimeRange = errors.New("invalid time range")

// defaultStatsWindow is applied when the caller supplies no time bounds.
const defaultStatsWindow = 30 * 24 * time.Hour

// StatsQuery narrows a region stats request. Zero Start/End fall back to
// the trailing default window.
type StatsQuery struct {
	City       models.City
	Start      time.Time
	End        time.Time
	Categories []string
}

// RegionBucket is one region's incident count.
type RegionBucket struct {
	RegionID   string `json:"region_id"`
	RegionName string `json:"region_name"`
	Count      int64  `json:"count"`
}

// ScaleStats summarizes the bucket count distribution so the map can
// color regions consistently. Percentiles use the nearest-rank method.
type ScaleStats struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
	P50 int64 `json:"p50"`
	P90 int64 `json:"p90"`
	P99 int64 `json:"p99"`
}

// RegionStatsResult is the aggregated answer for one stats query.
// Buckets cover only regions with at least one resolved incident and are
// sorted by count descending, then region ID.
type RegionStatsResult struct {
	City           models.City    `json:"city"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	Buckets        []RegionBucket `json:"buckets"`
	Scale          ScaleStats     `json:"scale"`
	TotalIncidents int64          `json:"total_incidents"`
	Unresolved     int64          `json:"unresolved"`
}

// StatsService defines the interface for incident aggregation operations.
type StatsService interface {
	// RegionStats buckets the city's incidents by region over the query
	// window. Returns ErrUnknownCity, ErrInvalidTimeRange or
	// ErrIndexUnavailable; responses are TTL-cached.
	RegionStats(ctx context.Context, query StatsQuery) (*RegionStatsResult, error)

	// Categories returns the city's distinct offense categories with
	// counts, largest first. Returns ErrUnknownCity; responses are
	// TTL-cached.
	Categories(ctx context.Context, city models.City) ([]repository.CategoryCount, error)
}

// statsService is the concrete implementation of StatsService.
type statsService struct {
	repo    repository.IncidentRepository
	manager IndexManager
	cache   cache.Cache
	ttl     time.Duration
	maxRows int
	log     *logger.Logger
}

// NewStatsService creates a new instance of StatsService.
func NewStatsService(repo repository.IncidentRepository, manager IndexManager, queryCache cache.Cache, ttl time.Duration, maxRows int, log *logger.Logger) StatsService {
	return &statsService{
		repo:    repo,
		manager: manager,
		cache:   queryCache,
		ttl:     ttl,
		maxRows: maxRows,
		log:     log,
	}
}

// RegionStats resolves every matching incident through the city's index
// and aggregates counts per region.
func (s *statsService) RegionStats(ctx context.Context, query StatsQuery) (*RegionStatsResult, error) {
	if !s.manager.IsKnown(query.City) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, query.City)
	}

	start, end, err := resolveWindow(query.Start, query.End)
	if err != nil {
		return nil, err
	}
	categories := normalizeCategories(query.Categories)

	key := statsCacheKey(query.City, start, end, categories)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var result RegionStatsResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, nil
		}
	}
	metrics.CacheMissesTotal.WithLabelValues(s.cache.Name()).Inc()

	idx, err := s.manager.EnsureReady(ctx, query.City)
	if err != nil {
		s.log.Error("Failed to ready index for stats", err, map[string]interface{}{
			"city": query.City.String(),
		})
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	points, err := s.repo.FindPoints(ctx, repository.IncidentFilter{
		City:       query.City,
		Start:      start,
		End:        end,
		Categories: categories,
		Limit:      s.maxRows,
	})
	if err != nil {
		s.log.Error("Failed to query incident points", err, map[string]interface{}{
			"city": query.City.String(),
		})
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}

	counts := make(map[string]int64)
	var resolved, unresolved int64
	for _, point := range points {
		r := idx.ResolvePoint(point.Latitude, point.Longitude)
		if !r.Resolved() {
			unresolved++
			continue
		}
		counts[r.RegionID]++
		resolved++
	}

	buckets := make([]RegionBucket, 0, len(counts))
	for regionID, count := range counts {
		bucket := RegionBucket{RegionID: regionID, Count: count}
		if region, ok := idx.Region(regionID); ok {
			bucket.RegionName = region.Name
		}
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].RegionID < buckets[j].RegionID
	})

	result := &RegionStatsResult{
		City:           query.City,
		Start:          start,
		End:            end,
		Buckets:        buckets,
		Scale:          computeScale(buckets),
		TotalIncidents: resolved,
		Unresolved:     unresolved,
	}

	s.cacheSet(ctx, key, result)

	s.log.Info("Region stats computed", map[string]interface{}{
		"city":       query.City.String(),
		"points":     len(points),
		"buckets":    len(buckets),
		"unresolved": unresolved,
	})

	return result, nil
}

// Categories returns the city's distinct offense categories with counts.
func (s *statsService) Categories(ctx context.Context, city models.City) ([]repository.CategoryCount, error) {
	if !s.manager.IsKnown(city) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, city)
	}

	key := fmt.Sprintf("categories:%s", city)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var counts []repository.CategoryCount
		if err := json.Unmarshal(cached, &counts); err == nil {
			return counts, nil
		}
	}
	metrics.CacheMissesTotal.WithLabelValues(s.cache.Name()).Inc()

	counts, err := s.repo.CountByCategory(ctx, city)
	if err != nil {
		s.log.Error("Failed to query categories", err, map[string]interface{}{
			"city": city.String(),
		})
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	s.cacheSet(ctx, key, counts)

	return counts, nil
}

// cacheGet returns a cached payload and records the hit.
func (s *statsService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, ok := s.cache.Get(ctx, key)
	if ok {
		metrics.CacheHitsTotal.WithLabelValues(s.cache.Name()).Inc()
	}
	return data, ok
}

// cacheSet stores a payload best-effort; marshal failures are ignored
// since the response is already computed.
func (s *statsService) cacheSet(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, data, s.ttl)
}

// resolveWindow fills missing bounds: the end defaults to now, the start
// to one default window before the end.
func resolveWindow(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultStatsWindow)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidTimeRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

// normalizeCategories uppercases, trims, deduplicates and sorts the
// category filter so equivalent queries share a cache entry.
func normalizeCategories(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	normalized := make([]string, 0, len(raw))
	for _, category := range raw {
		category = strings.ToUpper(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		normalized = append(normalized, category)
	}
	if len(normalized) == 0 {
		return nil
	}
	sort.Strings(normalized)
	return normalized
}

func statsCacheKey(city models.City, start, end time.Time, categories []string) string {
	return fmt.Sprintf("stats:%s:%d:%d:%s", city, start.Unix(), end.Unix(), strings.Join(categories, ","))
}

// computeScale derives min/max and nearest-rank percentiles over the
// bucket counts.
func computeScale(buckets []RegionBucket) ScaleStats {
	if len(buckets) == 0 {
		return ScaleStats{}
	}

	counts := make([]int64, len(buckets))
	for i, bucket := range buckets {
		counts[i] = bucket.Count
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })

	return ScaleStats{
		Min: counts[0],
		Max: counts[len(counts)-1],
		P50: nearestRank(counts, 50),
		P90: nearestRank(counts, 90),
		P99: nearestRank(counts, 99),
	}
}

// nearestRank returns the pth percentile of ascending counts: the value
// at rank ceil(p/100 * n).
func nearestRank(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
