package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/database"
	"github.com/stwalsh4118/gotham-eye/internal/ingest"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/repository"
)

const sinceLayout = "2006-01-02"

func main() {
	cityFlag := flag.String("city", "all", "city to ingest: nyc, chicago or all")
	sinceFlag := flag.String("since", "", "ingest records occurring on or after this date (YYYY-MM-DD); overrides the warehouse watermark")
	fullFlag := flag.Bool("full", false, "ignore the warehouse watermark and backfill from the beginning of the dataset")
	flag.Parse()

	// Load .env if present; real environments set variables directly
	_ = godotenv.Load(".env")

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cities, err := resolveCities(*cityFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	var since time.Time
	if *sinceFlag != "" {
		since, err = time.Parse(sinceLayout, *sinceFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -since value %q: expected YYYY-MM-DD\n", *sinceFlag)
			os.Exit(2)
		}
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Gotham Eye ingest", map[string]interface{}{
		"cities": cityNames(cities),
		"full":   *fullFlag,
	})

	// Interrupts cancel the run between pages; completed batches stay
	// committed and the next incremental run resumes from the watermark.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create database connection pool
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	// Bootstrap the incidents table and its indexes
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure database schema", err, nil)
	}

	repo := repository.NewIncidentRepository(db)
	client := ingest.NewClient(cfg.Socrata, log)
	importer := ingest.NewImporter(client, repo, log)

	failed := 0
	for _, city := range cities {
		summary, err := importer.Run(ctx, city, since, *fullFlag)
		if err != nil {
			failed++
			fields := map[string]interface{}{
				"city": city.String(),
			}
			if summary != nil {
				fields["pages"] = summary.Pages
				fields["inserted"] = summary.Inserted
			}
			log.Error("Ingestion run failed", err, fields)
		}
	}

	if failed > 0 {
		log.Error("Ingest finished with failures", nil, map[string]interface{}{
			"failed_cities": failed,
			"total_cities":  len(cities),
		})
		os.Exit(1)
	}
}

// resolveCities expands the -city flag into the list of cities to ingest.
func resolveCities(raw string) ([]models.City, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return models.AllCities(), nil
	}
	city, ok := models.ParseCity(raw)
	if !ok {
		return nil, fmt.Errorf("unsupported city %q: expected nyc, chicago or all", raw)
	}
	return []models.City{city}, nil
}

func cityNames(cities []models.City) []string {
	names := make([]string, 0, len(cities))
	for _, city := range cities {
		names = append(names, city.String())
	}
	return names
}
