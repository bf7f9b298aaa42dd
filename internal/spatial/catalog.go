package spatial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
)

// ErrMissingResource indicates a city's boundary file is absent or unparseable.
// This is fatal to that city's index build; malformed individual features are not.
var ErrMissingResource = errors.New("missing boundary resource")

// propertyKeys lists the candidate feature property names probed for a
// region's ID and display name, in priority order. Boundary exports differ
// in property casing between dataset versions, so each city carries the
// variants it is known to ship with.
type propertyKeys struct {
	id   []string
	name []string
}

var regionProperties = map[models.City]propertyKeys{
	models.CityNYC: {
		id:   []string{"NTA2020", "nta2020"},
		name: []string{"NTAName", "ntaname"},
	},
	models.CityChicago: {
		id:   []string{"area_numbe", "area_num_1"},
		name: []string{"community"},
	},
}

// Catalog loads and normalizes city region definitions from GeoJSON
// boundary files stored under a configured directory, one file per city.
type Catalog struct {
	dir string
	log *logger.Logger
}

// NewCatalog creates a Catalog reading boundary files from dir.
func NewCatalog(dir string, log *logger.Logger) *Catalog {
	return &Catalog{
		dir: dir,
		log: log,
	}
}

// LoadRegions reads <dir>/<city>.geojson and returns the city's regions in
// file order. Features without a usable region ID and features with
// non-polygonal geometry are logged and skipped; a missing or unparseable
// file returns ErrMissingResource.
func (c *Catalog) LoadRegions(city models.City) ([]models.Region, error) {
	keys, ok := regionProperties[city]
	if !ok {
		return nil, fmt.Errorf("%w: no property mapping for city %q", ErrMissingResource, city)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%s.geojson", city))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMissingResource, path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrMissingResource, path, err)
	}

	regions := make([]models.Region, 0, len(fc.Features))
	for i, feature := range fc.Features {
		id := probeProperty(feature.Properties, keys.id)
		if id == "" {
			c.log.Warn("Skipping boundary feature without a region ID", map[string]interface{}{
				"city":    city.String(),
				"feature": i,
			})
			continue
		}

		boundary, ok := normalizeBoundary(feature.Geometry)
		if !ok {
			c.log.Warn("Skipping boundary feature with unsupported geometry", map[string]interface{}{
				"city":      city.String(),
				"region_id": id,
				"geometry":  geometryType(feature.Geometry),
			})
			continue
		}

		name := probeProperty(feature.Properties, keys.name)
		if name == "" {
			name = id
		}

		regions = append(regions, models.Region{
			ID:       id,
			Name:     name,
			City:     city,
			Boundary: boundary,
		})
	}

	c.log.Info("Loaded region boundaries", map[string]interface{}{
		"city":     city.String(),
		"path":     path,
		"features": len(fc.Features),
		"regions":  len(regions),
	})

	return regions, nil
}

// probeProperty returns the first non-empty candidate property value.
// Numeric values (Chicago stores community area numbers as numbers) are
// formatted without an exponent.
func probeProperty(props geojson.Properties, candidates []string) string {
	for _, key := range candidates {
		value, ok := props[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

// normalizeBoundary converts a feature geometry into a MultiPolygon.
// Plain polygons become single-element MultiPolygons; anything that is not
// polygonal is rejected.
func normalizeBoundary(geometry orb.Geometry) (orb.MultiPolygon, bool) {
	switch g := geometry.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, true
	case orb.MultiPolygon:
		return g, true
	default:
		return nil, false
	}
}

func geometryType(geometry orb.Geometry) string {
	if geometry == nil {
		return "none"
	}
	return geometry.GeoJSONType()
}
