package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stwalsh4118/gotham-eye/internal/cache"
	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/database"
	apierrors "github.com/stwalsh4118/gotham-eye/internal/errors"
	"github.com/stwalsh4118/gotham-eye/internal/handlers"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/stwalsh4118/gotham-eye/internal/middleware"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/repository"
	"github.com/stwalsh4118/gotham-eye/internal/services"
	"github.com/stwalsh4118/gotham-eye/internal/spatial"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load(".env")

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Gotham Eye API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Bootstrap the incidents table and its indexes
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure database schema", err, nil)
	}

	// Query result cache (in-memory unless REDIS_ADDR is set)
	queryCache := cache.New(cfg.Cache, log)
	log.Info("Query cache initialized", map[string]interface{}{
		"backend": queryCache.Name(),
		"ttl":     cfg.Cache.TTL.String(),
	})

	// Spatial index stack: boundary catalog, hex-grid builder, lifecycle manager
	catalog := spatial.NewCatalog(cfg.Spatial.BoundaryDir, log)
	builder := spatial.NewBuilder(cfg.Spatial.Resolution, log)

	cities := make([]models.City, 0, len(cfg.Spatial.Cities))
	for _, raw := range cfg.Spatial.Cities {
		city, ok := models.ParseCity(raw)
		if !ok {
			log.Warn("Skipping unsupported city in SPATIAL_CITIES", map[string]interface{}{
				"city": raw,
			})
			continue
		}
		cities = append(cities, city)
	}
	if len(cities) == 0 {
		log.Fatal("No supported cities configured", nil, map[string]interface{}{
			"cities": cfg.Spatial.Cities,
		})
	}

	manager := spatial.NewManager(catalog, builder, cities, log)

	// Indexes build lazily on first use; warm-up trades startup time for
	// first-request latency
	if cfg.Spatial.WarmOnStart {
		go manager.WarmUp(ctx)
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics())

	// Initialize repository and service layers
	incidentRepo := repository.NewIncidentRepository(db)
	spatialService := services.NewSpatialService(manager, cfg.Spatial.MaxBatch, log)
	statsService := services.NewStatsService(incidentRepo, manager, queryCache, cfg.Cache.TTL, cfg.Stats.MaxRows, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, spatialService, cfg.Server.Env)
	lookupHandler := handlers.NewLookupHandler(spatialService)
	spatialHandler := handlers.NewSpatialHandler(spatialService)
	statsHandler := handlers.NewStatsHandler(statsService)

	// Register health check and metrics routes
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/lookup", lookupHandler.Lookup)
		v1.POST("/lookup/batch", lookupHandler.LookupBatch)
		v1.GET("/regions", spatialHandler.Regions)
		v1.GET("/stats", statsHandler.RegionStats)
		v1.GET("/categories", statsHandler.Categories)

		spatialRoutes := v1.Group("/spatial")
		{
			spatialRoutes.GET("/status", spatialHandler.Status)
			spatialRoutes.POST("/rebuild", spatialHandler.Rebuild)
		}
	}

	// Unmatched routes get the structured error envelope too
	router.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Route not found")
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
