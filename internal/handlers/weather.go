package handlers

import (
	"errors"
	"net/http"

	garden "garden_irrigation"
	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Weather history
// @Description  Stored current, forecast and history rows, oldest first
// @Tags         weather
// @Produce      json
// @Param        from      query   string  false  "First date (YYYY-MM-DD)"  example(2025-08-01)
// @Param        to        query   string  false  "Last date (YYYY-MM-DD)"   example(2025-08-31)
// @Param        kind      query   string  false  "Row kind"  Enums(current,forecast,history)
// @Param        location  query   string  false  "Location name reported by the provider"
// @Param        limit     query   int     false  "Maximum rows"
// @Success      200       {object}  map[string]interface{}  "count, records"
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Failure      500       {object}  map[string]string
// @Router       /api/v1/weather/history [get]
// @Security     BearerAuth
func (h *Handler) getWeatherHistory(c *gin.Context) {
	var q garden.WeatherHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs, err := h.services.WeatherHistory.ListWeather(c.Request.Context(), q)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load weather history", "weather_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(recs),
		"records": recs,
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidQuery)
}
