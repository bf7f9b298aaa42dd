package spatial

import "github.com/uber/h3-go/v4"

// Reason codes name the outcome of every point resolution, making each
// fallback an explicit, assertable decision instead of a silent nil.
const (
	// ReasonResolved means the point's cell is registered to a region.
	ReasonResolved = "resolved"
	// ReasonUnindexedCell means the point converts to a valid cell that no
	// region claimed (water, boundary sliver gap, coastline rounding).
	// No point-in-polygon fallback scan is performed.
	ReasonUnindexedCell = "unindexed_cell"
	// ReasonOutOfRange means the coordinates fall outside valid
	// latitude/longitude ranges or could not be converted to a cell.
	ReasonOutOfRange = "out_of_range"
	// ReasonUnknownCity means the city is not in the configured set.
	ReasonUnknownCity = "unknown_city"
	// ReasonIndexNotReady means the city is configured but its index has
	// not been built yet. Lookups never block on index construction.
	ReasonIndexNotReady = "index_not_ready"
)

// Coordinate range bounds.
const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// LookupResult is the outcome of resolving one coordinate pair.
// RegionID and RegionName are empty unless Reason is ReasonResolved.
type LookupResult struct {
	RegionID   string
	RegionName string
	Cell       string
	Reason     string
}

// Resolved reports whether the lookup produced a region.
func (r LookupResult) Resolved() bool {
	return r.Reason == ReasonResolved
}

// BatchPoint is one correlated input coordinate for batch resolution.
type BatchPoint struct {
	ID  string
	Lat float64
	Lon float64
}

// BatchResult pairs a batch point's correlation ID with its lookup result.
type BatchResult struct {
	ID     string
	Result LookupResult
}

// ResolvePoint resolves a coordinate pair against this index snapshot:
// range-check, point to cell, cell to region. Out-of-range coordinates
// produce a null result with a reason code, never an error.
func (idx *CityIndex) ResolvePoint(lat, lon float64) LookupResult {
	if lat < minLatitude || lat > maxLatitude || lon < minLongitude || lon > maxLongitude {
		return LookupResult{Reason: ReasonOutOfRange}
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), idx.resolution)
	if err != nil {
		return LookupResult{Reason: ReasonOutOfRange}
	}

	region, ok := idx.Lookup(cell)
	if !ok {
		return LookupResult{Cell: cell.String(), Reason: ReasonUnindexedCell}
	}

	return LookupResult{
		RegionID:   region.ID,
		RegionName: region.Name,
		Cell:       cell.String(),
		Reason:     ReasonResolved,
	}
}

// ResolveBatch resolves each point independently against this snapshot.
// The output always has exactly the input's length and order, and each
// entry carries the caller-supplied correlation ID.
func (idx *CityIndex) ResolveBatch(points []BatchPoint) []BatchResult {
	results := make([]BatchResult, len(points))
	for i, point := range points {
		results[i] = BatchResult{
			ID:     point.ID,
			Result: idx.ResolvePoint(point.Lat, point.Lon),
		}
	}
	return results
}
