package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
)

func newTestIndex(t *testing.T, regions []models.Region) *CityIndex {
	t.Helper()
	builder := NewBuilder(testResolution, logger.New("test", ""))
	return newCityIndex(models.CityNYC, testResolution, regions, builder.BuildCellMap(regions))
}

func TestCityIndex_ReferentialIntegrity(t *testing.T) {
	regions := []models.Region{
		squareRegion("MN0502", "Midtown-Times Square", models.CityNYC, -74.00, 40.74, -73.96, 40.78),
		squareRegion("BK0101", "Greenpoint", models.CityNYC, -73.96, 40.72, -73.94, 40.74),
	}
	idx := newTestIndex(t, regions)

	require.Positive(t, idx.TotalCells())
	for cell, regionID := range idx.cellToRegion {
		region, ok := idx.regionMeta[regionID]
		require.True(t, ok, "cell %s references unknown region %s", cell, regionID)
		assert.Equal(t, regionID, region.ID)
	}
}

func TestCityIndex_RegionsInCatalogOrder(t *testing.T) {
	regions := []models.Region{
		squareRegion("Z9", "Last Alphabetically", models.CityNYC, -74.00, 40.74, -73.99, 40.75),
		squareRegion("A1", "First Alphabetically", models.CityNYC, -73.98, 40.74, -73.97, 40.75),
		squareRegion("M5", "Middle", models.CityNYC, -73.96, 40.74, -73.95, 40.75),
	}
	idx := newTestIndex(t, regions)

	listed := idx.Regions()
	require.Len(t, listed, 3)
	assert.Equal(t, "Z9", listed[0].ID)
	assert.Equal(t, "A1", listed[1].ID)
	assert.Equal(t, "M5", listed[2].ID)
}

func TestCityIndex_DuplicateRegionIDsCollapse(t *testing.T) {
	regions := []models.Region{
		squareRegion("DUP", "Original", models.CityNYC, -74.00, 40.74, -73.99, 40.75),
		squareRegion("OTHER", "Other", models.CityNYC, -73.98, 40.74, -73.97, 40.75),
		squareRegion("DUP", "Replacement", models.CityNYC, -73.96, 40.74, -73.95, 40.75),
	}
	idx := newTestIndex(t, regions)

	listed := idx.Regions()
	require.Len(t, listed, 2)

	// The duplicate keeps its first position but the later metadata.
	assert.Equal(t, "DUP", listed[0].ID)
	assert.Equal(t, "Replacement", listed[0].Name)
	assert.Equal(t, "OTHER", listed[1].ID)
}

func TestCityIndex_Accessors(t *testing.T) {
	regions := []models.Region{
		squareRegion("MN0502", "Midtown-Times Square", models.CityNYC, -74.00, 40.74, -73.96, 40.78),
	}
	idx := newTestIndex(t, regions)

	assert.Equal(t, models.CityNYC, idx.City())
	assert.Equal(t, testResolution, idx.Resolution())
	assert.Equal(t, 1, idx.TotalRegions())
	assert.Positive(t, idx.TotalCells())
	assert.False(t, idx.BuiltAt().IsZero())

	region, ok := idx.Region("MN0502")
	require.True(t, ok)
	assert.Equal(t, "Midtown-Times Square", region.Name)

	_, ok = idx.Region("QN0000")
	assert.False(t, ok)

	claimed, ok := idx.Lookup(cellAt(t, 40.7589, -73.9851))
	require.True(t, ok)
	assert.Equal(t, "MN0502", claimed.ID)

	_, ok = idx.Lookup(cellAt(t, 40.60, -73.80))
	assert.False(t, ok)
}
