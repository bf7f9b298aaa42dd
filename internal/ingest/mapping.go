package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/tidwall/gjson"
)

// Dataset describes one city's Socrata source: where it lives and which
// record fields feed the warehouse columns.
type Dataset struct {
	City   models.City
	Host   string
	ID     string
	Fields FieldPaths
}

// FieldPaths holds the gjson paths that extract warehouse columns from a
// raw dataset record. OccurredAt doubles as the SODA column name for
// $order and $where, so it must be a plain field name.
type FieldPaths struct {
	SourceID    string
	OccurredAt  string
	Category    string
	Description string
	Latitude    string
	Longitude   string
}

var datasets = map[models.City]Dataset{
	models.CityNYC: {
		City: models.CityNYC,
		Host: "data.cityofnewyork.us",
		ID:   "5uac-w243",
		Fields: FieldPaths{
			SourceID:    "cmplnt_num",
			OccurredAt:  "cmplnt_fr_dt",
			Category:    "ofns_desc",
			Description: "pd_desc",
			Latitude:    "latitude",
			Longitude:   "longitude",
		},
	},
	models.CityChicago: {
		City: models.CityChicago,
		Host: "data.cityofchicago.org",
		ID:   "ijzp-q8t2",
		Fields: FieldPaths{
			SourceID:    "id",
			OccurredAt:  "date",
			Category:    "primary_type",
			Description: "description",
			Latitude:    "latitude",
			Longitude:   "longitude",
		},
	},
}

// DatasetFor returns the Socrata dataset configuration for a city.
func DatasetFor(city models.City) (Dataset, bool) {
	dataset, ok := datasets[city]
	return dataset, ok
}

// Skip reasons for records that cannot become incidents.
const (
	skipMissingID          = "missing_id"
	skipBadTimestamp       = "bad_timestamp"
	skipMissingCoordinates = "missing_coordinates"
)

// timestampLayouts are the formats both datasets are known to publish.
// Socrata floating timestamps carry no zone; values are stored as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// MapRecord converts one raw dataset record into a warehouse incident.
// The second return value names the skip reason when the record is
// unusable; it is empty on success.
func (d Dataset) MapRecord(record gjson.Result) (models.Incident, string) {
	sourceID := strings.TrimSpace(record.Get(d.Fields.SourceID).String())
	if sourceID == "" {
		return models.Incident{}, skipMissingID
	}

	occurredAt, ok := parseTimestamp(record.Get(d.Fields.OccurredAt).String())
	if !ok {
		return models.Incident{}, skipBadTimestamp
	}

	latitude, latOK := parseCoordinate(record.Get(d.Fields.Latitude))
	longitude, lonOK := parseCoordinate(record.Get(d.Fields.Longitude))
	if !latOK || !lonOK {
		return models.Incident{}, skipMissingCoordinates
	}
	// Both datasets publish null-island placeholders for unlocated rows.
	if latitude == 0 && longitude == 0 {
		return models.Incident{}, skipMissingCoordinates
	}

	return models.Incident{
		City:        d.City,
		SourceID:    sourceID,
		Category:    normalizeCategory(record.Get(d.Fields.Category).String()),
		Description: strings.TrimSpace(record.Get(d.Fields.Description).String()),
		OccurredAt:  occurredAt,
		Latitude:    latitude,
		Longitude:   longitude,
	}, ""
}

// parseTimestamp tries each known layout in order.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseCoordinate reads a coordinate that Socrata may publish as either a
// JSON string or a number.
func parseCoordinate(value gjson.Result) (float64, bool) {
	raw := strings.TrimSpace(value.String())
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// normalizeCategory uppercases and trims a source category so filters
// match across datasets. Empty values become "UNSPECIFIED".
func normalizeCategory(raw string) string {
	category := strings.ToUpper(strings.TrimSpace(raw))
	if category == "" {
		return "UNSPECIFIED"
	}
	return category
}
