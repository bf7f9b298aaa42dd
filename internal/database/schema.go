package database

import (
	"context"
	"fmt"
)

// schemaStatements create the warehouse tables and indexes on startup.
// Every statement uses IF NOT EXISTS so repeated startups are safe against
// an already provisioned database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS incidents (
		id BIGSERIAL PRIMARY KEY,
		city TEXT NOT NULL,
		source_id TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_incidents_city_source ON incidents (city, source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_city_occurred ON incidents (city, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_city_category ON incidents (city, category)`,
}

// EnsureSchema creates the warehouse schema if it does not exist yet.
// It is called once at startup by both the server and the ingest binary.
func (db *Database) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
