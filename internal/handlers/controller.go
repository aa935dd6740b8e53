package handlers

import (
	"errors"
	"net/http"
	"strconv"

	garden "garden_irrigation"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errGetStatus       = "failed to load status"
	errGetState        = "failed to load state"
	errGetSolar        = "failed to load solar window"
	errApplyRelay      = "failed to switch relay"
	errInvalidChannel  = "invalid relay channel"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Controller status
// @Description  Sensors, weather, solar window, irrigation totals and relay states
// @Tags         controller
// @Produce      json
// @Success      200  {object}  models.ControllerStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "status_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Persisted controller state
// @Tags         controller
// @Produce      json
// @Success      200  {object}  models.ControllerState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetPersisted(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "state_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Solar window
// @Description  Next window in which the sun sits in the irrigation band, with the countdown to its start
// @Tags         controller
// @Produce      json
// @Success      200  {object}  garden_irrigation.SolarReport
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/solar [get]
// @Security     BearerAuth
func (h *Handler) getSolar(c *gin.Context) {
	rep, err := h.services.Monitoring.GetSolar(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSolar, "solar_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// @Summary      List relays
// @Tags         relays
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, relays"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/relays [get]
// @Security     BearerAuth
func (h *Handler) listRelays(c *gin.Context) {
	states := h.services.RelayControl.States()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(states),
		"relays": states,
	})
}

// @Summary      Switch a relay
// @Tags         relays
// @Accept       json
// @Produce      json
// @Param        channel  path   int                                    true  "Relay channel"  example(1)
// @Param        body     body   garden_irrigation.RelayCommandRequest  true  "Relay state"
// @Success      200      {object}  garden_irrigation.RelayCommandResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Failure      503      {object}  map[string]string
// @Router       /api/v1/relays/{channel} [post]
// @Security     BearerAuth
func (h *Handler) setRelay(c *gin.Context) {
	ch, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidChannel})
		return
	}
	var req garden.RelayCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	on, err := relay.ParseState(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := relay.Command{Channel: ch, On: on, Source: relay.SourceHTTP}
	if err := h.services.RelayControl.Submit(c.Request.Context(), cmd); err != nil {
		switch {
		case errors.Is(err, relay.ErrInvalidChannel):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoRelays):
			h.logAndJSONError(c, http.StatusServiceUnavailable, err.Error(), "relay_apply_failed", err, "command", cmd.String())
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errApplyRelay, "relay_apply_failed", err, "command", cmd.String())
		}
		return
	}
	c.JSON(http.StatusOK, garden.RelayCommandResponse{
		Channel: ch,
		State:   relay.StateWord(on),
		Relays:  h.services.RelayControl.States(),
	})
}
