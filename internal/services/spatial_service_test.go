package services

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/spatial"
)

// stubRegionLoader feeds fixture regions into a real index manager so
// service tests exercise genuine index builds without boundary files.
type stubRegionLoader struct {
	regions map[models.City][]models.Region
	errs    map[models.City]error
}

func (l *stubRegionLoader) LoadRegions(city models.City) ([]models.Region, error) {
	if err := l.errs[city]; err != nil {
		return nil, err
	}
	return l.regions[city], nil
}

func squareRegion(id, name string, city models.City, minLon, minLat, maxLon, maxLat float64) models.Region {
	return models.Region{
		ID:   id,
		Name: name,
		City: city,
		Boundary: orb.MultiPolygon{orb.Polygon{orb.Ring{
			{minLon, minLat},
			{maxLon, minLat},
			{maxLon, maxLat},
			{minLon, maxLat},
			{minLon, minLat},
		}}},
	}
}

func nycRegions() []models.Region {
	return []models.Region{
		squareRegion("MN0502", "Midtown-Times Square", models.CityNYC, -74.00, 40.74, -73.96, 40.78),
		squareRegion("BK0101", "Greenpoint", models.CityNYC, -73.96, 40.71, -73.93, 40.74),
	}
}

func newIndexManager(loader *stubRegionLoader) *spatial.Manager {
	log := logger.New("test", "")
	builder := spatial.NewBuilder(10, log)
	return spatial.NewManager(loader, builder, []models.City{models.CityNYC, models.CityChicago}, log)
}

func TestLookupPoint_Resolved(t *testing.T) {
	// Arrange
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	// Act
	result := service.LookupPoint(context.Background(), models.CityNYC, 40.7589, -73.9851)

	// Assert
	assert.True(t, result.Resolved())
	assert.Equal(t, "MN0502", result.RegionID)
	assert.Equal(t, "Midtown-Times Square", result.RegionName)
}

func TestLookupPoint_UnknownCity(t *testing.T) {
	loader := &stubRegionLoader{}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	result := service.LookupPoint(context.Background(), models.City("gotham"), 40.7589, -73.9851)

	assert.False(t, result.Resolved())
	assert.Equal(t, spatial.ReasonUnknownCity, result.Reason)
}

func TestLookupPoint_OutOfRangeIsNullResult(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	result := service.LookupPoint(context.Background(), models.CityNYC, 200, 0)

	assert.False(t, result.Resolved())
	assert.Equal(t, spatial.ReasonOutOfRange, result.Reason)
}

func TestLookupPoint_BuildFailureDegradesToNotReady(t *testing.T) {
	loader := &stubRegionLoader{errs: map[models.City]error{
		models.CityNYC: errors.New("boundary file missing"),
	}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	result := service.LookupPoint(context.Background(), models.CityNYC, 40.7589, -73.9851)

	assert.False(t, result.Resolved())
	assert.Equal(t, spatial.ReasonIndexNotReady, result.Reason)
}

func TestLookupBatch_ResolvesInOrder(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	points := []spatial.BatchPoint{
		{ID: "a", Lat: 40.7589, Lon: -73.9851},
		{ID: "b", Lat: 40.725, Lon: -73.945},
		{ID: "c", Lat: 200, Lon: 0},
	}

	results, err := service.LookupBatch(context.Background(), models.CityNYC, points)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "MN0502", results[0].Result.RegionID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "BK0101", results[1].Result.RegionID)
	assert.Equal(t, "c", results[2].ID)
	assert.Equal(t, spatial.ReasonOutOfRange, results[2].Result.Reason)
}

func TestLookupBatch_TooManyPoints(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 2, logger.New("test", ""))

	points := []spatial.BatchPoint{
		{ID: "a", Lat: 40.7589, Lon: -73.9851},
		{ID: "b", Lat: 40.725, Lon: -73.945},
		{ID: "c", Lat: 40.76, Lon: -73.98},
	}

	results, err := service.LookupBatch(context.Background(), models.CityNYC, points)

	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrTooManyPoints)
}

func TestListRegions_CatalogOrder(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	regions, err := service.ListRegions(context.Background(), models.CityNYC)

	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "MN0502", regions[0].ID)
	assert.Equal(t, "BK0101", regions[1].ID)
}

func TestListRegions_UnknownCity(t *testing.T) {
	service := NewSpatialService(newIndexManager(&stubRegionLoader{}), 500, logger.New("test", ""))

	regions, err := service.ListRegions(context.Background(), models.City("gotham"))

	assert.Nil(t, regions)
	assert.ErrorIs(t, err, ErrUnknownCity)
}

func TestListRegions_BuildFailure(t *testing.T) {
	loader := &stubRegionLoader{errs: map[models.City]error{
		models.CityNYC: errors.New("boundary file missing"),
	}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	regions, err := service.ListRegions(context.Background(), models.CityNYC)

	assert.Nil(t, regions)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestRebuild_ReportsNewState(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	stats, err := service.Rebuild(context.Background(), models.CityNYC)

	require.NoError(t, err)
	assert.Equal(t, models.CityNYC, stats.City)
	assert.True(t, stats.Ready)
	assert.Equal(t, 2, stats.Regions)
	assert.Positive(t, stats.Cells)
	assert.NotNil(t, stats.BuiltAt)
}

func TestRebuild_FailureKeepsServingOldIndex(t *testing.T) {
	loader := &stubRegionLoader{
		regions: map[models.City][]models.Region{models.CityNYC: nycRegions()},
		errs:    map[models.City]error{},
	}
	manager := newIndexManager(loader)
	service := NewSpatialService(manager, 500, logger.New("test", ""))

	_, err := service.Rebuild(context.Background(), models.CityNYC)
	require.NoError(t, err)

	loader.errs[models.CityNYC] = errors.New("boundary file deleted")

	_, err = service.Rebuild(context.Background(), models.CityNYC)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	// Lookups keep resolving through the retained index.
	result := service.LookupPoint(context.Background(), models.CityNYC, 40.7589, -73.9851)
	assert.Equal(t, "MN0502", result.RegionID)
}

func TestRebuild_UnknownCity(t *testing.T) {
	service := NewSpatialService(newIndexManager(&stubRegionLoader{}), 500, logger.New("test", ""))

	_, err := service.Rebuild(context.Background(), models.City("gotham"))

	assert.ErrorIs(t, err, ErrUnknownCity)
}

func TestStatsAndReadiness_Passthrough(t *testing.T) {
	loader := &stubRegionLoader{regions: map[models.City][]models.Region{models.CityNYC: nycRegions()}}
	service := NewSpatialService(newIndexManager(loader), 500, logger.New("test", ""))

	_, err := service.ListRegions(context.Background(), models.CityNYC)
	require.NoError(t, err)

	stats := service.Stats()
	assert.Equal(t, 2, stats.TotalCities)
	assert.Equal(t, 1, stats.ReadyCities)
	assert.Equal(t, 2, stats.TotalRegions)

	ready := service.Readiness()
	assert.Equal(t, map[string]bool{"nyc": true, "chicago": false}, ready)
}
