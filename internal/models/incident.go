package models

import "time"

// Incident is one normalized police-incident row in the warehouse.
// (city, source_id) is unique, which makes re-ingestion idempotent.
type Incident struct {
	City        City
	SourceID    string
	Category    string
	Description string
	OccurredAt  time.Time
	Latitude    float64
	Longitude   float64
}
