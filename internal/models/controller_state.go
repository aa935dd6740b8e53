package models

import "time"

// ControllerState is the persisted snapshot of the irrigation controller.
// The table holds a single row with id=1.
type ControllerState struct {
	ID                 int        `json:"id"`
	TotalWaterAppliedL float64    `json:"total_water_applied_l"`
	PendingRequiredL   float64    `json:"pending_required_l"`
	PendingRuntimeSec  float64    `json:"pending_runtime_sec"`
	WindowStart        *time.Time `json:"window_start,omitempty"`
	WindowEnd          *time.Time `json:"window_end,omitempty"`
	ErrorCodes         []string   `json:"error_codes,omitempty"` // e.g. ["WEATHER_UNAVAILABLE"]
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Error codes recorded in ControllerState.
const (
	CodeWeatherUnavailable = "WEATHER_UNAVAILABLE"
	CodeNoSolarWindow      = "NO_SOLAR_WINDOW"
)
