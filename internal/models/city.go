package models

import "strings"

// City identifies one of the supported cities.
type City string

// Supported cities. Region boundary files, Socrata datasets, and index
// configuration are all keyed by these values.
const (
	CityNYC     City = "nyc"
	CityChicago City = "chicago"
)

// AllCities returns the supported cities in canonical order.
func AllCities() []City {
	return []City{CityNYC, CityChicago}
}

// ParseCity normalizes a raw city parameter into a City.
// Returns false for values outside the supported set.
func ParseCity(raw string) (City, bool) {
	switch City(strings.ToLower(strings.TrimSpace(raw))) {
	case CityNYC:
		return CityNYC, true
	case CityChicago:
		return CityChicago, true
	default:
		return "", false
	}
}

func (c City) String() string {
	return string(c)
}
