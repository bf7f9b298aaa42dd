package models

import "github.com/paulmach/orb"

// Region is one named city sub-region (an NYC neighborhood tabulation
// area or a Chicago community area). Regions are created when a city's
// boundary file is loaded and are immutable afterwards.
type Region struct {
	// ID is the stable region code, unique within a city
	// (e.g. NTA code "MN0502", community area number "32").
	ID string `json:"region_id"`

	// Name is the human-readable display label.
	Name string `json:"region_name"`

	// City the region belongs to.
	City City `json:"city"`

	// Boundary holds the region's polygons in geographic coordinates,
	// [longitude, latitude] ring order. A plain Polygon feature is
	// normalized into a single-element MultiPolygon.
	Boundary orb.MultiPolygon `json:"-"`
}
