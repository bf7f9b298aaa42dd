package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_http_requests_total",
		Help: "Total HTTP requests by method, route template and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gotham_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method and route template",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})
	LookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_spatial_lookups_total",
		Help: "Total point lookups by city and resolution reason",
	}, []string{"city", "reason"})
	IndexBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_spatial_index_builds_total",
		Help: "Total index builds by city and result",
	}, []string{"city", "result"})
	IndexBuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gotham_spatial_index_build_duration_seconds",
		Help:    "Index build duration in seconds by city",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"city"})
	IndexedCells = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gotham_spatial_indexed_cells",
		Help: "Cells registered in the active index by city",
	}, []string{"city"})
	IndexedRegions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gotham_spatial_indexed_regions",
		Help: "Regions registered in the active index by city",
	}, []string{"city"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_cache_hits_total",
		Help: "Query cache hits by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_cache_misses_total",
		Help: "Query cache misses by backend",
	}, []string{"backend"})
	IngestRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_ingest_rows_total",
		Help: "Ingested rows by city and disposition (inserted, duplicate, skipped)",
	}, []string{"city", "disposition"})
	SocrataRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gotham_ingest_socrata_requests_total",
		Help: "Socrata page fetches by city and result",
	}, []string{"city", "result"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(IndexBuildsTotal)
	prometheus.MustRegister(IndexBuildDuration)
	prometheus.MustRegister(IndexedCells)
	prometheus.MustRegister(IndexedRegions)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(IngestRowsTotal)
	prometheus.MustRegister(SocrataRequestsTotal)
}

// Handler returns the HTTP handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
