package garden_irrigation

import (
	"time"

	"garden_irrigation/internal/models"
)

// SolarReport is the current solar window together with the countdown to
// its start.
type SolarReport struct {
	Window       models.SolarWindow `json:"window"`
	Active       bool               `json:"active"`
	CountdownSec *int64             `json:"countdown_sec,omitempty"` // nil when no window was found
	At           time.Time          `json:"at"`
}

// RelayCommandRequest is the body of POST /api/v1/relays/:channel.
type RelayCommandRequest struct {
	State string `json:"state" binding:"required"` // ON | OFF
}

// RelayCommandResponse echoes the applied command and the resulting states.
type RelayCommandResponse struct {
	Channel int                 `json:"channel"`
	State   string              `json:"state"`
	Relays  []models.RelayState `json:"relays"`
}

// WeatherHistoryQuery filters GET /api/v1/weather/history.
type WeatherHistoryQuery struct {
	From     string `form:"from"` // YYYY-MM-DD
	To       string `form:"to"`   // YYYY-MM-DD
	Kind     string `form:"kind"` // current | forecast | history
	Location string `form:"location"`
	Limit    int    `form:"limit"`
}
