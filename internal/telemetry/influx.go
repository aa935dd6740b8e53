package telemetry

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"garden_irrigation/internal/engine"
	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
)

// ErrIncompleteConfig is returned when a required InfluxDB setting is empty.
var ErrIncompleteConfig = errors.New("influx config incomplete")

// Measurement names.
const (
	MeasurementSensors = "garden_sensors"
	MeasurementBalance = "garden_balance"
	MeasurementHold    = "garden_sprinkler"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Site   string // tag value identifying this garden
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// StatusFunc returns the current controller status.
type StatusFunc func(ctx context.Context) (models.ControllerStatus, error)

// Influx writes controller points with the blocking write API.
type Influx struct {
	client influxdb2.Client
	writer pointWriter
	site   string
	log    *logger.Logger
}

func NewInflux(cfg InfluxConfig, log *logger.Logger) (*Influx, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrIncompleteConfig
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	i := newInflux(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Site, log)
	i.client = client
	return i, nil
}

func newInflux(w pointWriter, site string, log *logger.Logger) *Influx {
	if log == nil {
		log = logger.Nop()
	}
	if site == "" {
		site = "garden"
	}
	return &Influx{writer: w, site: site, log: log}
}

// Close releases the HTTP client.
func (i *Influx) Close() {
	if i.client != nil {
		i.client.Close()
	}
}

// WriteStatus writes the sensor point of st.
func (i *Influx) WriteStatus(ctx context.Context, st models.ControllerStatus) error {
	return i.writer.WritePoint(ctx, sensorPoint(i.site, st))
}

// WriteBalance writes a balance result computed at at.
func (i *Influx) WriteBalance(ctx context.Context, r engine.Result, at time.Time) error {
	return i.writer.WritePoint(ctx, balancePoint(i.site, r, at))
}

// WriteHold writes a finished sprinkler hold.
func (i *Influx) WriteHold(ctx context.Context, h relay.Hold, totalAppliedL float64) error {
	return i.writer.WritePoint(ctx, holdPoint(i.site, h, totalAppliedL))
}

// Run writes the controller status every interval until ctx is canceled.
// Write errors are logged and do not stop the loop.
func (i *Influx) Run(ctx context.Context, every time.Duration, status StatusFunc) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st, err := status(ctx)
			if err != nil {
				i.log.Warnw("telemetry_status_failed", "err", err)
				continue
			}
			if err := i.WriteStatus(ctx, st); err != nil {
				i.log.Warnw("influx_write_failed", "measurement", MeasurementSensors, "err", err)
			}
		}
	}
}

func sensorPoint(site string, st models.ControllerStatus) *write.Point {
	fields := map[string]interface{}{
		"water_present":         st.Sensors.WaterPresent,
		"total_water_applied_l": st.Irrigation.TotalWaterAppliedL,
		"pending_required_l":    st.Irrigation.PendingRequiredL,
		"solar_window_active":   st.SolarOpen,
		"sprinkling":            st.Sprinkling,
	}
	addOptional(fields, "air_temperature_c", st.Sensors.AirTemperature)
	addOptional(fields, "air_humidity_pct", st.Sensors.AirHumidity)
	addOptional(fields, "ground_temp_1_c", st.Sensors.GroundTemp1)
	addOptional(fields, "ground_temp_2_c", st.Sensors.GroundTemp2)

	at := st.At
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(MeasurementSensors, map[string]string{"site": site}, fields, at)
}

func balancePoint(site string, r engine.Result, at time.Time) *write.Point {
	tags := map[string]string{
		"site":            site,
		"temp_source":     r.TempSource,
		"humidity_source": r.HumiditySource,
	}
	fields := map[string]interface{}{
		"temperature_c":   r.TemperatureC,
		"humidity":        r.Humidity,
		"wind_mps":        r.WindMps,
		"cloud_pct":       r.CloudPercent,
		"f_temp":          r.Factors.Temp,
		"f_hum":           r.Factors.Hum,
		"f_wind":          r.Factors.Wind,
		"f_solar":         r.Factors.Solar,
		"f_env":           r.Factors.Env,
		"adjusted_l":      r.AdjustedL,
		"precip_l":        r.PrecipL,
		"total_applied_l": r.TotalAppliedL,
		"required_l":      r.RequiredL,
		"runtime_sec":     r.RuntimeSec,
	}
	return influxdb2.NewPoint(MeasurementBalance, tags, fields, at)
}

func holdPoint(site string, h relay.Hold, totalAppliedL float64) *write.Point {
	tags := map[string]string{"site": site}
	fields := map[string]interface{}{
		"channel":               h.Channel,
		"requested_l":           h.RequestedL,
		"delivered_l":           h.DeliveredL,
		"triggers":              h.Triggers,
		"completed":             h.Completed,
		"duration_sec":          h.EndedAt.Sub(h.StartedAt).Seconds(),
		"total_water_applied_l": totalAppliedL,
	}
	return influxdb2.NewPoint(MeasurementHold, tags, fields, h.EndedAt)
}

func addOptional(fields map[string]interface{}, key string, v *float64) {
	if v != nil {
		fields[key] = *v
	}
}
