package models

import "time"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorSnapshot is the latest known value set of the garden sensors.
// A nil field has never been read successfully.
type SensorSnapshot struct {
	AirTemperature *float64  `json:"air_temperature_c,omitempty"`
	AirHumidity    *float64  `json:"air_humidity_pct,omitempty"`
	GroundTemp1    *float64  `json:"ground_temp_1_c,omitempty"`
	GroundTemp2    *float64  `json:"ground_temp_2_c,omitempty"`
	WaterPresent   bool      `json:"water_present"`
	ReadAt         time.Time `json:"read_at"`
}

// CurrentConditions holds the weather fields used by the water balance.
// A nil field was missing from the provider response.
type CurrentConditions struct {
	TempC    *float64 `json:"temp_c,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	WindKph  *float64 `json:"wind_kph,omitempty"`
	CloudPct *float64 `json:"cloud,omitempty"`
	UV       *float64 `json:"uv,omitempty"`
}

// WeatherSnapshot is replaced as a unit by each successful weather fetch.
type WeatherSnapshot struct {
	Current          *CurrentConditions `json:"current,omitempty"`
	PastPrecipMM     float64            `json:"past_precip_mm"`
	ForecastPrecipMM float64            `json:"forecast_precip_mm"`
	FetchedAt        time.Time          `json:"fetched_at"`
}

// SolarWindow is the span in which the sun sits inside the irrigation band.
type SolarWindow struct {
	Start      *time.Time  `json:"window_start,omitempty"`
	End        *time.Time  `json:"window_end,omitempty"`
	Position   Coordinates `json:"position"`
	Source     string      `json:"source"`
	ComputedAt time.Time   `json:"computed_at"`
}

// IsActive reports whether now falls inside [Start, End).
func (w SolarWindow) IsActive(now time.Time) bool {
	if w.Start == nil || w.End == nil {
		return false
	}
	return !now.Before(*w.Start) && now.Before(*w.End)
}

// IrrigationState tracks the water already applied and the pending demand.
type IrrigationState struct {
	TotalWaterAppliedL float64 `json:"total_water_applied_l"`
	PendingRequiredL   float64 `json:"pending_required_l"`
	PendingRuntimeSec  float64 `json:"pending_runtime_sec"`
}

// GardenConfig describes the irrigated area and the sprinkler.
type GardenConfig struct {
	FlowRateLPerMin      float64 `json:"flow_rate_l_per_min" mapstructure:"flow_rate_l_per_min"`
	AreaM2               float64 `json:"area_m2" mapstructure:"area_m2"`
	BaselineLPerM2PerDay float64 `json:"baseline_l_per_m2_per_day" mapstructure:"baseline_l_per_m2_per_day"`
	DemoMode             bool    `json:"demo_mode" mapstructure:"demo_mode"`
	DemoPrecipCapMM      float64 `json:"demo_precip_cap_mm" mapstructure:"demo_precip_cap_mm"`
}

// RelayState is the last state applied to a relay channel.
type RelayState struct {
	Channel   int       `json:"channel"`
	Pin       int       `json:"pin"`
	On        bool      `json:"on"`
	ChangedAt time.Time `json:"changed_at,omitempty"`
}

// ControllerStatus aggregates everything the controller currently knows.
type ControllerStatus struct {
	Sensors    SensorSnapshot  `json:"sensors"`
	Weather    WeatherSnapshot `json:"weather"`
	Solar      SolarWindow     `json:"solar"`
	SolarOpen  bool            `json:"solar_window_active"`
	Irrigation IrrigationState `json:"irrigation"`
	Sprinkling bool            `json:"sprinkling"`
	Relays     []RelayState    `json:"relays"`
	Garden     GardenConfig    `json:"garden"`
	At         time.Time       `json:"at"`
}
