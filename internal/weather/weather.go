// Package weather fetches current conditions and daily forecasts and reduces
// them to the snapshot used by the water balance.
package weather

import (
	"context"
	"time"

	"garden_irrigation/internal/models"
)

// DateLayout is the provider's calendar date format.
const DateLayout = "2006-01-02"

// Day is one calendar day of forecast or history.
type Day struct {
	Date          string   `json:"date"`
	Condition     string   `json:"condition"`
	ConditionCode int      `json:"condition_code"`
	MaxTempC      *float64 `json:"max_temp_c,omitempty"`
	MinTempC      *float64 `json:"min_temp_c,omitempty"`
	AvgTempC      *float64 `json:"avg_temp_c,omitempty"`
	MaxWindKph    *float64 `json:"max_wind_kph,omitempty"`
	TotalPrecipMM float64  `json:"total_precip_mm"`
	AvgHumidity   *float64 `json:"avg_humidity,omitempty"`
	ChanceOfRain  *int     `json:"chance_of_rain,omitempty"`
	UV            *float64 `json:"uv,omitempty"`
	Sunrise       string   `json:"sunrise,omitempty"`
	Sunset        string   `json:"sunset,omitempty"`
	MoonPhase     string   `json:"moon_phase,omitempty"`
}

// Current is the live observation with its textual condition.
type Current struct {
	models.CurrentConditions
	PrecipMM      *float64 `json:"precip_mm,omitempty"`
	Condition     string   `json:"condition"`
	ConditionCode int      `json:"condition_code"`
}

// Forecast is one provider response.
type Forecast struct {
	Location string  `json:"location"`
	Current  Current `json:"current"`
	Days     []Day   `json:"days"`
}

// Provider is the remote weather source.
type Provider interface {
	Fetch(ctx context.Context, c models.Coordinates, days int) (Forecast, error)
	History(ctx context.Context, c models.Coordinates, date time.Time) (Day, error)
}

// Aggregate sums daily precipitation for dates up to and including today into
// past and later dates into forecast. Days with unparsable dates are skipped.
func Aggregate(days []Day, today time.Time) (past, forecast float64) {
	ref := today.Format(DateLayout)
	for _, d := range days {
		if _, err := time.Parse(DateLayout, d.Date); err != nil {
			continue
		}
		// ISO dates compare correctly as strings.
		if d.Date <= ref {
			past += d.TotalPrecipMM
		} else {
			forecast += d.TotalPrecipMM
		}
	}
	return past, forecast
}

// Snapshot reduces a forecast into the shared WeatherSnapshot. today must be
// expressed in the site time zone.
func Snapshot(f Forecast, today, fetchedAt time.Time) models.WeatherSnapshot {
	past, next := Aggregate(f.Days, today)
	cur := f.Current.CurrentConditions
	return models.WeatherSnapshot{
		Current:          &cur,
		PastPrecipMM:     past,
		ForecastPrecipMM: next,
		FetchedAt:        fetchedAt,
	}
}

// Records flattens a forecast into history rows: one current row dated
// "YYYY-MM-DD HH:MM" and one forecast row per day.
func Records(f Forecast, now time.Time) []models.WeatherRecord {
	out := make([]models.WeatherRecord, 0, len(f.Days)+1)
	c := f.Current
	out = append(out, models.WeatherRecord{
		Date:          now.Format("2006-01-02 15:04"),
		Kind:          models.WeatherKindCurrent,
		Location:      f.Location,
		Condition:     c.Condition,
		ConditionCode: c.ConditionCode,
		TempC:         c.TempC,
		PrecipMM:      c.PrecipMM,
		Humidity:      c.Humidity,
		WindKph:       c.WindKph,
		Cloud:         c.CloudPct,
		UV:            c.UV,
		RecordedAt:    now,
	})
	for _, d := range f.Days {
		out = append(out, DayRecord(d, models.WeatherKindForecast, f.Location, now))
	}
	return out
}

// DayRecord converts one day into a history row of the given kind.
func DayRecord(d Day, kind, location string, now time.Time) models.WeatherRecord {
	precip := d.TotalPrecipMM
	return models.WeatherRecord{
		Date:          d.Date,
		Kind:          kind,
		Location:      location,
		Condition:     d.Condition,
		ConditionCode: d.ConditionCode,
		MaxTempC:      d.MaxTempC,
		MinTempC:      d.MinTempC,
		AvgTempC:      d.AvgTempC,
		TotalPrecipMM: &precip,
		Humidity:      d.AvgHumidity,
		WindKph:       d.MaxWindKph,
		UV:            d.UV,
		ChanceOfRain:  d.ChanceOfRain,
		Sunrise:       d.Sunrise,
		Sunset:        d.Sunset,
		MoonPhase:     d.MoonPhase,
		RecordedAt:    now,
	}
}
