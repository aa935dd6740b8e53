// Package engine computes the environmentally adjusted water requirement
// of the garden from sensor, weather and irrigation state.
package engine

import (
	"errors"
	"math"

	"garden_irrigation/internal/models"
)

// ErrWeatherNotReady is returned while no current conditions were fetched yet.
// Callers treat it as "skip this cycle".
var ErrWeatherNotReady = errors.New("weather snapshot not populated")

// Reference points of the correction factors.
const (
	ReferenceTempC      = 20.0
	ReferenceHumidity   = 50.0
	ReferenceWindMps    = 2.0
	DefaultWindKph      = 2.0
	DefaultCloudPercent = 50.0

	kphPerMps = 3.6
)

// Value sources reported in Result.
const (
	SourceSensor  = "sensor"
	SourceWeather = "weather"
	SourceDefault = "default"
)

// Inputs is one consistent read of everything the balance depends on.
type Inputs struct {
	Sensors       models.SensorSnapshot
	Weather       models.WeatherSnapshot
	TotalAppliedL float64
	Garden        models.GardenConfig
}

// Factors are the linear correction factors and their product.
type Factors struct {
	Temp  float64 `json:"f_temp"`
	Hum   float64 `json:"f_hum"`
	Wind  float64 `json:"f_wind"`
	Solar float64 `json:"f_solar"`
	Env   float64 `json:"f_env"`
}

// Result carries the requirement and every intermediate value for logging.
type Result struct {
	TemperatureC   float64 `json:"temperature_c"`
	TempSource     string  `json:"temp_source"`
	Humidity       float64 `json:"humidity"`
	HumiditySource string  `json:"humidity_source"`
	WindMps        float64 `json:"wind_mps"`
	CloudPercent   float64 `json:"cloud_pct"`

	Factors Factors `json:"factors"`

	AdjustedL     float64 `json:"adjusted_l"`
	PastPrecipMM  float64 `json:"past_precip_mm"`
	ForecastMM    float64 `json:"forecast_precip_mm"`
	PrecipL       float64 `json:"precip_l"`
	TotalAppliedL float64 `json:"total_applied_l"`

	RequiredL  float64 `json:"required_l"`
	RuntimeSec float64 `json:"runtime_sec"`
}

// ComputeFactors evaluates the four correction factors and F_env.
func ComputeFactors(tempC, humidity, windMps, cloudPct float64) Factors {
	f := Factors{
		Temp:  1 + 0.02*(tempC-ReferenceTempC),
		Hum:   1 - 0.02*((humidity-ReferenceHumidity)/5),
		Wind:  1 + 0.01*(windMps-ReferenceWindMps),
		Solar: 1 + 0.05*(1-cloudPct/100),
	}
	f.Env = f.Temp * f.Hum * f.Wind * f.Solar
	return f
}

// Compute returns the required liters and sprinkler runtime. It does not
// modify its inputs.
func Compute(in Inputs) (Result, error) {
	cur := in.Weather.Current
	if cur == nil {
		return Result{}, ErrWeatherNotReady
	}

	var r Result
	r.TemperatureC, r.TempSource = resolve(in.Sensors.AirTemperature, cur.TempC, ReferenceTempC)
	r.Humidity, r.HumiditySource = resolve(in.Sensors.AirHumidity, cur.Humidity, ReferenceHumidity)
	r.WindMps = valueOr(cur.WindKph, DefaultWindKph) / kphPerMps
	r.CloudPercent = valueOr(cur.CloudPct, DefaultCloudPercent)

	r.Factors = ComputeFactors(r.TemperatureC, r.Humidity, r.WindMps, r.CloudPercent)
	g := in.Garden
	r.AdjustedL = g.BaselineLPerM2PerDay * g.AreaM2 * r.Factors.Env

	r.PastPrecipMM, r.ForecastMM = in.Weather.PastPrecipMM, in.Weather.ForecastPrecipMM
	if g.DemoMode {
		r.PastPrecipMM = math.Min(r.PastPrecipMM, g.DemoPrecipCapMM)
		r.ForecastMM = math.Min(r.ForecastMM, g.DemoPrecipCapMM)
	}
	r.PrecipL = (r.PastPrecipMM + r.ForecastMM) * g.AreaM2
	r.TotalAppliedL = in.TotalAppliedL

	r.RequiredL = math.Max(r.AdjustedL-r.PrecipL-r.TotalAppliedL, 0)
	if g.FlowRateLPerMin > 0 {
		r.RuntimeSec = r.RequiredL / g.FlowRateLPerMin * 60
	}
	return r, nil
}

// resolve picks the sensor value, then the weather value, then the fallback.
func resolve(sensor, weather *float64, fallback float64) (float64, string) {
	switch {
	case sensor != nil:
		return *sensor, SourceSensor
	case weather != nil:
		return *weather, SourceWeather
	default:
		return fallback, SourceDefault
	}
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
