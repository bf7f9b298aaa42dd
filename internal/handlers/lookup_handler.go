package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/gotham-eye/internal/errors"
	"github.com/stwalsh4118/gotham-eye/internal/middleware"
	"github.com/stwalsh4118/gotham-eye/internal/models"
	"github.com/stwalsh4118/gotham-eye/internal/services"
	"github.com/stwalsh4118/gotham-eye/internal/spatial"
)

// LookupHandler handles point resolution HTTP requests.
type LookupHandler struct {
	service services.SpatialService
}

// NewLookupHandler creates a new LookupHandler instance.
func NewLookupHandler(service services.SpatialService) *LookupHandler {
	return &LookupHandler{
		service: service,
	}
}

// LookupRequest represents the query parameters for the lookup endpoint.
// Lat and Lon are pointers so that zero coordinates still satisfy
// "required"; range checking belongs to the resolver, which reports
// out-of-range input as a reason code in a 200 response, not as a
// validation failure.
type LookupRequest struct {
	City string   `form:"city" binding:"required"`
	Lat  *float64 `form:"lat" binding:"required"`
	Lon  *float64 `form:"lon" binding:"required"`
}

// BatchPointRequest is one correlated point in a batch lookup body.
type BatchPointRequest struct {
	ID  string   `json:"id"`
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

// BatchLookupRequest represents the batch lookup request body.
type BatchLookupRequest struct {
	City   string              `json:"city" binding:"required"`
	Points []BatchPointRequest `json:"points" binding:"required,dive"`
}

// RegionRef identifies a resolved region.
type RegionRef struct {
	RegionID   string `json:"region_id"`
	RegionName string `json:"region_name"`
}

// LookupResponse represents a single point resolution. Result is null
// unless the point resolved to a region; Reason names the outcome either way.
type LookupResponse struct {
	Result *RegionRef `json:"result"`
	Cell   string     `json:"cell,omitempty"`
	Reason string     `json:"reason"`
}

// BatchResultResponse pairs a correlation ID with its resolution.
type BatchResultResponse struct {
	ID     string     `json:"id"`
	Result *RegionRef `json:"result"`
	Cell   string     `json:"cell,omitempty"`
	Reason string     `json:"reason"`
}

// BatchLookupResponse represents the batch lookup response.
type BatchLookupResponse struct {
	City    string                `json:"city"`
	Results []BatchResultResponse `json:"results"`
	Count   int                   `json:"count"`
}

// Lookup handles GET /api/v1/lookup endpoint.
// It resolves a single coordinate pair to the region containing it.
func (h *LookupHandler) Lookup(c *gin.Context) {
	log := middleware.GetLogger(c)

	// Bind and validate query parameters
	var req LookupRequest
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
		log.Info("Processing lookup request", map[string]interface{}{
			"city": city.String(),
			"lat":  *req.Lat,
			"lon":  *req.Lon,
		})
	}

	// Every outcome is a 200 with a reason code; the resolver never raises
	// for out-of-range coordinates or unconfigured cities.
	result := h.service.LookupPoint(c.Request.Context(), city, *req.Lat, *req.Lon)

	c.JSON(http.StatusOK, mapLookupResult(result))
}

// LookupBatch handles POST /api/v1/lookup/batch endpoint.
// It resolves a batch of correlated points against one index snapshot.
func (h *LookupHandler) LookupBatch(c *gin.Context) {
	log := middleware.GetLogger(c)

	// Bind and validate request body
	var req BatchLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	city := normalizeCity(req.City)
	points := make([]spatial.BatchPoint, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, spatial.BatchPoint{ID: p.ID, Lat: *p.Lat, Lon: *p.Lon})
	}

	if log != nil {
		log.Info("Processing batch lookup request", map[string]interface{}{
			"city":   city.String(),
			"points": len(points),
		})
	}

	results, err := h.service.LookupBatch(c.Request.Context(), city, points)
	if err != nil {
		if errors.Is(err, services.ErrTooManyPoints) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to resolve batch", err)
		return
	}

	responseResults := make([]BatchResultResponse, 0, len(results))
	for _, r := range results {
		mapped := mapLookupResult(r.Result)
		responseResults = append(responseResults, BatchResultResponse{
			ID:     r.ID,
			Result: mapped.Result,
			Cell:   mapped.Cell,
			Reason: mapped.Reason,
		})
	}

	c.JSON(http.StatusOK, BatchLookupResponse{
		City:    city.String(),
		Results: responseResults,
		Count:   len(responseResults),
	})
}

// mapLookupResult converts a resolver result to its response DTO.
func mapLookupResult(result spatial.LookupResult) LookupResponse {
	response := LookupResponse{
		Cell:   result.Cell,
		Reason: result.Reason,
	}
	if result.Resolved() {
		response.Result = &RegionRef{
			RegionID:   result.RegionID,
			RegionName: result.RegionName,
		}
	}
	return response
}

// normalizeCity lowercases a raw city parameter. Whether the city is
// actually configured is decided by the service layer.
func normalizeCity(raw string) models.City {
	return models.City(strings.ToLower(strings.TrimSpace(raw)))
}
