package spatial

import (
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/uber/h3-go/v4"
)

// Builder fills region polygons into fixed-resolution H3 cells.
// All hexagonal geometry is delegated to the h3 library; the builder only
// walks rings and applies claims.
type Builder struct {
	resolution int
	log        *logger.Logger
}

// NewBuilder creates a Builder producing cells at the given H3 resolution.
func NewBuilder(resolution int, log *logger.Logger) *Builder {
	return &Builder{
		resolution: resolution,
		log:        log,
	}
}

// Resolution returns the H3 resolution this builder produces cells at.
func (b *Builder) Resolution() int {
	return b.resolution
}

// BuildCellMap enumerates the cells covering each region and returns the
// combined cell-to-region-ID map. Regions are processed in catalog order
// and claims are applied last-write-wins: a cell covered by overlapping
// boundary slivers belongs to the region that appears later in the catalog.
//
// A polygon the h3 library rejects is logged and skipped; the owning region
// simply registers fewer cells. A region whose polygons all fail yields
// zero cells, never an error.
func (b *Builder) BuildCellMap(regions []models.Region) map[h3.Cell]string {
	cellToRegion := make(map[h3.Cell]string)

	for _, region := range regions {
		claimed := 0
		for _, polygon := range region.Boundary {
			cells, err := b.cellsForPolygon(polygon)
			if err != nil {
				b.log.Warn("Skipping polygon rejected by H3", map[string]interface{}{
					"city":      region.City.String(),
					"region_id": region.ID,
					"error":     err.Error(),
				})
				continue
			}
			for _, cell := range cells {
				cellToRegion[cell] = region.ID
			}
			claimed += len(cells)
		}

		if claimed == 0 {
			b.log.Warn("Region registered no cells", map[string]interface{}{
				"city":       region.City.String(),
				"region_id":  region.ID,
				"resolution": b.resolution,
			})
		}
	}

	return cellToRegion
}

// cellsForPolygon converts one polygon into H3 cells. The first ring is the
// outer loop, remaining rings are holes.
func (b *Builder) cellsForPolygon(polygon orb.Polygon) ([]h3.Cell, error) {
	if len(polygon) == 0 || len(polygon[0]) == 0 {
		return nil, nil
	}

	geoPolygon := h3.GeoPolygon{GeoLoop: ringToLoop(polygon[0])}
	for _, hole := range polygon[1:] {
		if len(hole) == 0 {
			continue
		}
		geoPolygon.Holes = append(geoPolygon.Holes, ringToLoop(hole))
	}

	return h3.PolygonToCells(geoPolygon, b.resolution)
}

// ringToLoop converts an orb ring ([lon, lat] points) into an H3 loop.
func ringToLoop(ring orb.Ring) []h3.LatLng {
	loop := make([]h3.LatLng, 0, len(ring))
	for _, point := range ring {
		loop = append(loop, h3.LatLng{Lat: point[1], Lng: point[0]})
	}
	return loop
}
