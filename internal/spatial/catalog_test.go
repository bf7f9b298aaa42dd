package spatial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
)

func writeBoundaryFile(t *testing.T, dir string, city models.City, contents string) {
	t.Helper()
	path := filepath.Join(dir, string(city)+".geojson")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

const nycBoundaryFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"NTA2020": "MN0502", "NTAName": "Midtown-Times Square"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-73.99, 40.75], [-73.97, 40.75], [-73.97, 40.77], [-73.99, 40.77], [-73.99, 40.75]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"nta2020": "BK0101", "ntaname": "Greenpoint"},
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [[[[-73.96, 40.72], [-73.94, 40.72], [-73.94, 40.74], [-73.96, 40.74], [-73.96, 40.72]]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"NTAName": "No Identifier Here"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-74.01, 40.70], [-74.00, 40.70], [-74.00, 40.71], [-74.01, 40.71], [-74.01, 40.70]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"NTA2020": "QN0201", "NTAName": "Point Geometry"},
			"geometry": {"type": "Point", "coordinates": [-73.92, 40.76]}
		},
		{
			"type": "Feature",
			"properties": {"NTA2020": "SI0101"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-74.09, 40.63], [-74.07, 40.63], [-74.07, 40.65], [-74.09, 40.65], [-74.09, 40.63]]]
			}
		}
	]
}`

const chicagoBoundaryFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"area_numbe": 32, "community": "LOOP"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-87.64, 41.87], [-87.62, 41.87], [-87.62, 41.89], [-87.64, 41.89], [-87.64, 41.87]]]
			}
		},
		{
			"type": "Feature",
			"properties": {"area_num_1": "28", "community": "NEAR WEST SIDE"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-87.68, 41.86], [-87.65, 41.86], [-87.65, 41.89], [-87.68, 41.89], [-87.68, 41.86]]]
			}
		}
	]
}`

func TestLoadRegions_NYC(t *testing.T) {
	dir := t.TempDir()
	writeBoundaryFile(t, dir, models.CityNYC, nycBoundaryFixture)
	catalog := NewCatalog(dir, logger.New("test", ""))

	regions, err := catalog.LoadRegions(models.CityNYC)

	require.NoError(t, err)
	require.Len(t, regions, 3)

	assert.Equal(t, "MN0502", regions[0].ID)
	assert.Equal(t, "Midtown-Times Square", regions[0].Name)
	assert.Equal(t, models.CityNYC, regions[0].City)
	assert.Len(t, regions[0].Boundary, 1)

	// Lowercase property variants are probed as fallbacks.
	assert.Equal(t, "BK0101", regions[1].ID)
	assert.Equal(t, "Greenpoint", regions[1].Name)

	// Missing name falls back to the region ID.
	assert.Equal(t, "SI0101", regions[2].ID)
	assert.Equal(t, "SI0101", regions[2].Name)
}

func TestLoadRegions_ChicagoNumericIDs(t *testing.T) {
	dir := t.TempDir()
	writeBoundaryFile(t, dir, models.CityChicago, chicagoBoundaryFixture)
	catalog := NewCatalog(dir, logger.New("test", ""))

	regions, err := catalog.LoadRegions(models.CityChicago)

	require.NoError(t, err)
	require.Len(t, regions, 2)

	// Community area numbers arrive as JSON numbers and format without
	// an exponent or trailing zeros.
	assert.Equal(t, "32", regions[0].ID)
	assert.Equal(t, "LOOP", regions[0].Name)

	assert.Equal(t, "28", regions[1].ID)
	assert.Equal(t, "NEAR WEST SIDE", regions[1].Name)
}

func TestLoadRegions_MissingFile(t *testing.T) {
	catalog := NewCatalog(t.TempDir(), logger.New("test", ""))

	regions, err := catalog.LoadRegions(models.CityNYC)

	assert.Nil(t, regions)
	assert.ErrorIs(t, err, ErrMissingResource)
}

func TestLoadRegions_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeBoundaryFile(t, dir, models.CityNYC, `{"type": "FeatureCollection", "features": [`)
	catalog := NewCatalog(dir, logger.New("test", ""))

	regions, err := catalog.LoadRegions(models.CityNYC)

	assert.Nil(t, regions)
	assert.ErrorIs(t, err, ErrMissingResource)
}

func TestLoadRegions_UnmappedCity(t *testing.T) {
	catalog := NewCatalog(t.TempDir(), logger.New("test", ""))

	regions, err := catalog.LoadRegions(models.City("gotham"))

	assert.Nil(t, regions)
	assert.ErrorIs(t, err, ErrMissingResource)
}

func TestProbeProperty(t *testing.T) {
	tests := []struct {
		name       string
		props      map[string]interface{}
		candidates []string
		expected   string
	}{
		{
			name:       "first candidate wins",
			props:      map[string]interface{}{"NTA2020": "MN0502", "nta2020": "shadowed"},
			candidates: []string{"NTA2020", "nta2020"},
			expected:   "MN0502",
		},
		{
			name:       "falls through empty string",
			props:      map[string]interface{}{"NTA2020": "  ", "nta2020": "BK0101"},
			candidates: []string{"NTA2020", "nta2020"},
			expected:   "BK0101",
		},
		{
			name:       "whole number formats without decimal",
			props:      map[string]interface{}{"area_numbe": float64(32)},
			candidates: []string{"area_numbe"},
			expected:   "32",
		},
		{
			name:       "nil and missing values skipped",
			props:      map[string]interface{}{"NTA2020": nil},
			candidates: []string{"NTA2020", "nta2020"},
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, probeProperty(tt.props, tt.candidates))
		})
	}
}
