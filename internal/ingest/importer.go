package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/repository"
	"github.com/tidwall/gjson"
)

// ErrNoDataset indicates ingestion was requested for a city without a
// configured Socrata source.
var ErrNoDataset = errors.New("no dataset configured for city")

// Fetcher retrieves raw dataset records one page at a time.
type Fetcher interface {
	FetchPage(ctx context.Context, dataset Dataset, since time.Time, offset int) ([]gjson.Result, error)
	PageSize() int
}

// Summary reports what one ingestion run did.
type Summary struct {
	City       models.City
	Since      time.Time
	Pages      int
	Fetched    int
	Inserted   int64
	Duplicates int64
	Skipped    int
}

// Importer drives paginated ingestion from a Socrata dataset into the
// incident warehouse.
type Importer struct {
	fetcher Fetcher
	repo    repository.IncidentRepository
	log     *logger.Logger
}

// NewImporter creates a new Importer instance.
func NewImporter(fetcher Fetcher, repo repository.IncidentRepository, log *logger.Logger) *Importer {
	return &Importer{
		fetcher: fetcher,
		repo:    repo,
		log:     log,
	}
}

// Run ingests a city's dataset. An explicit non-zero since bounds the run;
// otherwise incremental mode resumes from the warehouse's latest
// occurred_at for the city, and full mode starts from the beginning.
// The summary covers work completed even when the run fails partway.
func (imp *Importer) Run(ctx context.Context, city models.City, since time.Time, full bool) (*Summary, error) {
	dataset, ok := DatasetFor(city)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDataset, city)
	}

	if since.IsZero() && !full {
		latest, err := imp.repo.LatestOccurredAt(ctx, city)
		if err != nil {
			return nil, fmt.Errorf("reading ingestion watermark: %w", err)
		}
		if latest != nil {
			since = *latest
		}
	}

	summary := &Summary{City: city, Since: since}
	cityLabel := city.String()

	startFields := map[string]interface{}{
		"city":    cityLabel,
		"dataset": dataset.ID,
		"full":    full,
	}
	if !since.IsZero() {
		startFields["since"] = since.Format(time.RFC3339)
	}
	imp.log.Info("Starting ingestion run", startFields)

	offset := 0
	for {
		records, err := imp.fetcher.FetchPage(ctx, dataset, since, offset)
		if err != nil {
			return summary, fmt.Errorf("ingesting %q: %w", city, err)
		}
		if len(records) == 0 {
			break
		}

		summary.Pages++
		summary.Fetched += len(records)

		batch := make([]models.Incident, 0, len(records))
		for _, record := range records {
			incident, skipReason := dataset.MapRecord(record)
			if skipReason != "" {
				summary.Skipped++
				imp.log.Debug("Skipping unusable record", map[string]interface{}{
					"city":   cityLabel,
					"reason": skipReason,
				})
				continue
			}
			batch = append(batch, incident)
		}

		inserted, err := imp.repo.InsertBatch(ctx, batch)
		if err != nil {
			return summary, fmt.Errorf("inserting batch for %q: %w", city, err)
		}
		duplicates := int64(len(batch)) - inserted
		summary.Inserted += inserted
		summary.Duplicates += duplicates

		metrics.IngestRowsTotal.WithLabelValues(cityLabel, "inserted").Add(float64(inserted))
		metrics.IngestRowsTotal.WithLabelValues(cityLabel, "duplicate").Add(float64(duplicates))
		metrics.IngestRowsTotal.WithLabelValues(cityLabel, "skipped").Add(float64(len(records) - len(batch)))

		imp.log.Info("Ingested page", map[string]interface{}{
			"city":     cityLabel,
			"offset":   offset,
			"fetched":  len(records),
			"inserted": inserted,
		})

		offset += len(records)
		if len(records) < imp.fetcher.PageSize() {
			break
		}
	}

	imp.log.Info("Ingestion run complete", map[string]interface{}{
		"city":       cityLabel,
		"pages":      summary.Pages,
		"fetched":    summary.Fetched,
		"inserted":   summary.Inserted,
		"duplicates": summary.Duplicates,
		"skipped":    summary.Skipped,
	})

	return summary, nil
}
