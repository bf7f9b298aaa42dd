package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/gotham-eye/internal/errors"
	"github.com/stwalsh4118/gotham-eye/internal/middleware"
	"github.com/stwalsh4118/gotham-eye/internal/repository"
	"github.com/stwalsh4118/gotham-eye/internal/services"
)

// StatsHandler handles incident aggregation HTTP requests.
type StatsHandler struct {
	service services.StatsService
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(service services.StatsService) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// StatsRequest represents the query parameters for the stats endpoint.
// start and end accept RFC3339 timestamps or bare dates (2006-01-02);
// categories is a comma-separated list.
type StatsRequest struct {
	City       string `form:"city" binding:"required"`
	Start      string `form:"start"`
	End        string `form:"end"`
	Categories string `form:"categories"`
}

// CategoriesRequest represents the query parameters for the categories endpoint.
type CategoriesRequest struct {
	City string `form:"city" binding:"required"`
}

// CategoriesResponse represents the categories endpoint response.
type CategoriesResponse struct {
	City       string                     `json:"city"`
	Categories []repository.CategoryCount `json:"categories"`
	Count      int                        `json:"count"`
}

// RegionStats handles GET /api/v1/stats endpoint.
// It returns per-region incident counts with a percentile color scale.
func (h *StatsHandler) RegionStats(c *gin.Context) {
	log := middleware.GetLogger(c)

	// Bind and validate query parameters
	var req StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	start, err := parseTimeParam(req.Start)
	if err != nil {
		apierrors.BadRequest(c, "Invalid start time", map[string]interface{}{"start": req.Start})
		return
	}
	end, err := parseTimeParam(req.End)
	if err != nil {
		apierrors.BadRequest(c, "Invalid end time", map[string]interface{}{"end": req.End})
		return
	}

	query := services.StatsQuery{
		City:       normalizeCity(req.City),
		Start:      start,
		End:        end,
		Categories: splitCategories(req.Categories),
	}

	if log != nil {
		log.Info("Processing stats request", map[string]interface{}{
			"city":       query.City.String(),
			"categories": len(query.Categories),
		})
	}

	result, err := h.service.RegionStats(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCity) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrInvalidTimeRange) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrIndexUnavailable) {
			apierrors.ServiceUnavailable(c, "Spatial index unavailable", err)
			return
		}
		apierrors.InternalServerError(c, "Failed to compute region stats", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Categories handles GET /api/v1/categories endpoint.
// It returns the city's distinct offense categories with counts.
func (h *StatsHandler) Categories(c *gin.Context) {
	var req CategoriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	city := normalizeCity(req.City)

	counts, err := h.service.Categories(c.Request.Context(), city)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCity) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query categories", err)
		return
	}

	c.JSON(http.StatusOK, CategoriesResponse{
		City:       city.String(),
		Categories: counts,
		Count:      len(counts),
	})
}

// parseTimeParam parses an optional time parameter, accepting RFC3339
// timestamps or bare dates.
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// splitCategories splits the comma-separated categories parameter.
// Normalization (trim, case, dedupe) happens in the service layer.
func splitCategories(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
