package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"garden_irrigation/internal/models"
	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errTypeInvalid = "invalid 'type'; use IRRIGATION_START, IRRIGATION_STOP, DECISION_SKIP, RELAY_COMMAND or ERROR"
	errRangeOrder  = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

func isEventType(s string) bool {
	switch s {
	case models.EventIrrigationStart, models.EventIrrigationStop, models.EventDecisionSkip,
		models.EventRelayCommand, models.EventError:
		return true
	}
	return false
}

var queryTimeLayouts = []string{time.RFC3339, layoutDateTime, layoutDate}

var errBadQueryTime = errors.New("unrecognized time")

// @Summary      List irrigation events
// @Description  Events recorded by the controller, oldest first. A date-only 'to' includes that whole day (UTC).
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Earliest event time: RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'"  example(2024-06-01)
// @Param        to    query   string  false  "Latest event time, same formats"  example(2024-06-30)
// @Param        type  query   string  false  "Event type"  Enums(IRRIGATION_START,IRRIGATION_STOP,DECISION_SKIP,RELAY_COMMAND,ERROR)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, msg := logFilterFromQuery(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("logs_list_failed", "err", err, "from", filter.From, "to", filter.To, "type", filter.Type)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

// logFilterFromQuery builds the event filter from from, to and type. A
// non-empty msg is the 400 body. A date-only 'to' covers that whole day.
func logFilterFromQuery(c *gin.Context) (f service.LogFilter, msg string) {
	f.Type = strings.ToUpper(strings.TrimSpace(c.Query("type")))
	if f.Type != "" && !isEventType(f.Type) {
		return f, errTypeInvalid
	}

	var err error
	if raw := c.Query("from"); raw != "" {
		if f.From, err = parseQueryTime(raw); err != nil {
			return f, errFromInvalid
		}
	}
	if raw := c.Query("to"); raw != "" {
		if f.To, err = parseQueryTime(raw); err != nil {
			return f, errToInvalid
		}
		if !strings.ContainsAny(raw, "T ") {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRangeOrder
	}
	return f, ""
}

func parseQueryTime(raw string) (time.Time, error) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errBadQueryTime
}
