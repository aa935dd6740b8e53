// Package telemetry exports controller measurements to Prometheus and
// InfluxDB.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garden_irrigation/internal/engine"
	"garden_irrigation/internal/models"
)

const namespace = "garden"

// Metrics holds the Prometheus collectors of the controller on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	sensor        *prometheus.GaugeVec
	waterPresent  prometheus.Gauge
	factor        *prometheus.GaugeVec
	requiredL     prometheus.Gauge
	runtimeSec    prometheus.Gauge
	totalAppliedL prometheus.Gauge
	holds         *prometheus.CounterVec
	solarActive   prometheus.Gauge
	relay         *prometheus.GaugeVec
	stepSeconds   *prometheus.HistogramVec
	stepFailures  *prometheus.CounterVec
	weatherErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sensor: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_value",
			Help: "Latest calibrated sensor reading.",
		}, []string{"sensor"}),
		waterPresent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "water_present",
			Help: "1 when the water contact detects water.",
		}),
		factor: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "balance_factor",
			Help: "Correction factors of the last balance computation.",
		}, []string{"factor"}),
		requiredL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "required_liters",
			Help: "Water requirement of the last balance computation.",
		}),
		runtimeSec: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "runtime_seconds",
			Help: "Sprinkler runtime of the last balance computation.",
		}),
		totalAppliedL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "water_applied_liters_total",
			Help: "Water applied since start, including the initial amount.",
		}),
		holds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sprinkler_holds_total",
			Help: "Finished sprinkler holds by outcome.",
		}, []string{"outcome"}),
		solarActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "solar_window_active",
			Help: "1 while the sun is inside the irrigation band.",
		}),
		relay: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "relay_on",
			Help: "1 when the relay channel is switched on.",
		}, []string{"channel"}),
		stepSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_step_seconds",
			Help:    "Duration of scheduler steps.",
			Buckets: []float64{.01, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"step"}),
		stepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycle_step_failures_total",
			Help: "Scheduler steps that returned an error.",
		}, []string{"step"}),
		weatherErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "weather_fetch_errors_total",
			Help: "Failed weather refreshes.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSensors records the fields that have been read.
func (m *Metrics) ObserveSensors(s models.SensorSnapshot) {
	set := func(name string, v *float64) {
		if v != nil {
			m.sensor.WithLabelValues(name).Set(*v)
		}
	}
	set("air_temperature_c", s.AirTemperature)
	set("air_humidity_pct", s.AirHumidity)
	set("ground_temp_1_c", s.GroundTemp1)
	set("ground_temp_2_c", s.GroundTemp2)
	m.waterPresent.Set(boolGauge(s.WaterPresent))
}

// ObserveBalance records a balance result.
func (m *Metrics) ObserveBalance(r engine.Result) {
	m.factor.WithLabelValues("temp").Set(r.Factors.Temp)
	m.factor.WithLabelValues("hum").Set(r.Factors.Hum)
	m.factor.WithLabelValues("wind").Set(r.Factors.Wind)
	m.factor.WithLabelValues("solar").Set(r.Factors.Solar)
	m.factor.WithLabelValues("env").Set(r.Factors.Env)
	m.requiredL.Set(r.RequiredL)
	m.runtimeSec.Set(r.RuntimeSec)
}

// ObserveHold records a finished sprinkler hold and the new total.
func (m *Metrics) ObserveHold(completed bool, totalAppliedL float64) {
	outcome := "completed"
	if !completed {
		outcome = "canceled"
	}
	m.holds.WithLabelValues(outcome).Inc()
	m.totalAppliedL.Set(totalAppliedL)
}

// SetTotalApplied sets the cumulative applied water.
func (m *Metrics) SetTotalApplied(l float64) { m.totalAppliedL.Set(l) }

// ObserveSolar records whether the window is open.
func (m *Metrics) ObserveSolar(active bool) { m.solarActive.Set(boolGauge(active)) }

// ObserveRelays records every relay channel state.
func (m *Metrics) ObserveRelays(states []models.RelayState) {
	for _, st := range states {
		m.relay.WithLabelValues(strconv.Itoa(st.Channel)).Set(boolGauge(st.On))
	}
}

// ObserveStep records a scheduler step.
func (m *Metrics) ObserveStep(step string, took time.Duration, err error) {
	m.stepSeconds.WithLabelValues(step).Observe(took.Seconds())
	if err != nil {
		m.stepFailures.WithLabelValues(step).Inc()
	}
}

// WeatherFailed counts a failed weather refresh.
func (m *Metrics) WeatherFailed() { m.weatherErrors.Inc() }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
