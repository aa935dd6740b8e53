package models

import "time"

// Weather record kinds.
const (
	WeatherKindCurrent  = "current"
	WeatherKindForecast = "forecast"
	WeatherKindHistory  = "history"
)

// WeatherRecord is one row of the weather history table.
type WeatherRecord struct {
	ID            int64     `json:"id"`
	Date          string    `json:"date"` // YYYY-MM-DD (local to the queried location)
	Kind          string    `json:"kind"` // current | forecast | history
	Location      string    `json:"location"`
	Condition     string    `json:"condition"`
	ConditionCode int       `json:"condition_code"`
	MaxTempC      *float64  `json:"max_temp_c,omitempty"`
	MinTempC      *float64  `json:"min_temp_c,omitempty"`
	AvgTempC      *float64  `json:"avg_temp_c,omitempty"`
	TempC         *float64  `json:"temp_c,omitempty"`
	TotalPrecipMM *float64  `json:"total_precip_mm,omitempty"`
	PrecipMM      *float64  `json:"precip_mm,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	WindKph       *float64  `json:"wind_kph,omitempty"`
	Cloud         *float64  `json:"cloud,omitempty"`
	UV            *float64  `json:"uv,omitempty"`
	ChanceOfRain  *int      `json:"chance_of_rain,omitempty"`
	Sunrise       string    `json:"sunrise,omitempty"`
	Sunset        string    `json:"sunset,omitempty"`
	MoonPhase     string    `json:"moon_phase,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
