package spatial

import (
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/uber/h3-go/v4"
)

// CityIndex is an immutable snapshot of one city's hexagonal index.
// It has no mutation methods; rebuilds construct a brand-new index and the
// manager swaps the whole pointer, so concurrent readers always see either
// the old or the new complete index.
type CityIndex struct {
	city         models.City
	resolution   int
	cellToRegion map[h3.Cell]string
	regionMeta   map[string]models.Region
	regionOrder  []string
	builtAt      time.Time
}

// newCityIndex assembles an index from the catalog's regions and the
// builder's cell map. Every region ID appearing in cellToRegion comes from
// the regions slice, so the meta map covers all registered cells.
func newCityIndex(city models.City, resolution int, regions []models.Region, cellToRegion map[h3.Cell]string) *CityIndex {
	regionMeta := make(map[string]models.Region, len(regions))
	regionOrder := make([]string, 0, len(regions))
	for _, region := range regions {
		if _, seen := regionMeta[region.ID]; !seen {
			regionOrder = append(regionOrder, region.ID)
		}
		regionMeta[region.ID] = region
	}

	return &CityIndex{
		city:         city,
		resolution:   resolution,
		cellToRegion: cellToRegion,
		regionMeta:   regionMeta,
		regionOrder:  regionOrder,
		builtAt:      time.Now().UTC(),
	}
}

// City returns the city this index covers.
func (idx *CityIndex) City() models.City {
	return idx.city
}

// Resolution returns the H3 resolution the index was built at.
func (idx *CityIndex) Resolution() int {
	return idx.resolution
}

// BuiltAt returns the construction timestamp.
func (idx *CityIndex) BuiltAt() time.Time {
	return idx.builtAt
}

// TotalRegions returns the number of registered regions.
func (idx *CityIndex) TotalRegions() int {
	return len(idx.regionMeta)
}

// TotalCells returns the number of registered cells.
func (idx *CityIndex) TotalCells() int {
	return len(idx.cellToRegion)
}

// Lookup returns the region owning the given cell, if any.
func (idx *CityIndex) Lookup(cell h3.Cell) (models.Region, bool) {
	regionID, ok := idx.cellToRegion[cell]
	if !ok {
		return models.Region{}, false
	}
	region, ok := idx.regionMeta[regionID]
	return region, ok
}

// Region returns a registered region by ID.
func (idx *CityIndex) Region(id string) (models.Region, bool) {
	region, ok := idx.regionMeta[id]
	return region, ok
}

// Regions returns all registered regions in catalog order.
func (idx *CityIndex) Regions() []models.Region {
	regions := make([]models.Region, 0, len(idx.regionOrder))
	for _, id := range idx.regionOrder {
		regions = append(regions, idx.regionMeta[id])
	}
	return regions
}
