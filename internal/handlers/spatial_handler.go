package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/gotham-eye/internal/errors"
	"github.com/stwalsh4118/gotham-eye/internal/middleware"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/services"
	"github.com/stwalsh4118/gotham-eye/internal/spatial"
)

// SpatialHandler handles region listing and index administration requests.
type SpatialHandler struct {
	service services.SpatialService
}

// NewSpatialHandler creates a new SpatialHandler instance.
func NewSpatialHandler(service services.SpatialService) *SpatialHandler {
	return &SpatialHandler{
		service: service,
	}
}

// RegionsRequest represents the query parameters for the regions endpoint.
type RegionsRequest struct {
	City string `form:"city" binding:"required"`
}

// RegionSummary is one region in a listing response.
type RegionSummary struct {
	RegionID   string `json:"region_id"`
	RegionName string `json:"region_name"`
}

// RegionsResponse represents the regions endpoint response.
type RegionsResponse struct {
	City    string          `json:"city"`
	Regions []RegionSummary `json:"regions"`
	Count   int             `json:"count"`
}

// SpatialStatusRequest represents the query parameters for the status
// endpoint. lat and lon together trigger an optional test lookup;
// regions=true appends the city's region list.
type SpatialStatusRequest struct {
	City    string   `form:"city"`
	Lat     *float64 `form:"lat"`
	Lon     *float64 `form:"lon"`
	Regions bool     `form:"regions"`
}

// SpatialStatusResponse represents the status endpoint response.
type SpatialStatusResponse struct {
	Ready      map[string]bool      `json:"ready"`
	Stats      spatial.ManagerStats `json:"stats"`
	TestLookup *LookupResponse      `json:"test_lookup,omitempty"`
	Regions    []RegionSummary      `json:"regions,omitempty"`
}

// RebuildRequest represents the query parameters for the rebuild endpoint.
type RebuildRequest struct {
	City string `form:"city" binding:"required"`
}

// Regions handles GET /api/v1/regions endpoint.
// It returns the city's regions in catalog order, building the index on
// first use.
func (h *SpatialHandler) Regions(c *gin.Context) {
	var req RegionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	city := normalizeCity(req.City)

	regions, err := h.service.ListRegions(c.Request.Context(), city)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCity) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrIndexUnavailable) {
			apierrors.ServiceUnavailable(c, "Spatial index unavailable", err)
			return
		}
		apierrors.InternalServerError(c, "Failed to list regions", err)
		return
	}

	c.JSON(http.StatusOK, RegionsResponse{
		City:    city.String(),
		Regions: mapRegionSummaries(regions),
		Count:   len(regions),
	})
}

// Status handles GET /api/v1/spatial/status endpoint.
// A diagnostic surface: always 200, reporting readiness and index stats,
// with an optional test lookup and region list.
func (h *SpatialHandler) Status(c *gin.Context) {
	var req SpatialStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	response := SpatialStatusResponse{
		Ready: h.service.Readiness(),
		Stats: h.service.Stats(),
	}

	if req.City != "" && req.Lat != nil && req.Lon != nil {
		result := h.service.LookupPoint(c.Request.Context(), normalizeCity(req.City), *req.Lat, *req.Lon)
		mapped := mapLookupResult(result)
		response.TestLookup = &mapped
	}

	if req.Regions && req.City != "" {
		// Failures here already show up in the ready map; the region
		// list is simply omitted.
		if regions, err := h.service.ListRegions(c.Request.Context(), normalizeCity(req.City)); err == nil {
			response.Regions = mapRegionSummaries(regions)
		}
	}

	c.JSON(http.StatusOK, response)
}

// Rebuild handles POST /api/v1/spatial/rebuild endpoint.
// It synchronously reconstructs the city's index from the boundary files.
func (h *SpatialHandler) Rebuild(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req RebuildRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	city := normalizeCity(req.City)

	if log != nil {
		log.Info("Processing rebuild request", map[string]interface{}{
			"city": city.String(),
		})
	}

	stats, err := h.service.Rebuild(c.Request.Context(), city)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCity) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrIndexUnavailable) {
			apierrors.ServiceUnavailable(c, "Index rebuild failed; previous index retained", err)
			return
		}
		apierrors.InternalServerError(c, "Failed to rebuild index", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// mapRegionSummaries converts regions to listing DTOs.
func mapRegionSummaries(regions []models.Region) []RegionSummary {
	summaries := make([]RegionSummary, 0, len(regions))
	for _, region := range regions {
		summaries = append(summaries, RegionSummary{
			RegionID:   region.ID,
			RegionName: region.Name,
		})
	}
	return summaries
}
