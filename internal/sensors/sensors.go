// Package sensors reads the garden sensors: a DHT22 for air temperature and
// humidity, two DS18B20 ground probes on the 1-Wire bus and a water contact.
package sensors

import (
	"context"
	"errors"
	"time"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
)

// ErrNotReady is returned for transient faults worth retrying next cycle.
var ErrNotReady = errors.New("sensor not ready")

// Provider returns a possibly partial snapshot. Fields that failed to read are nil.
type Provider interface {
	Read(ctx context.Context) models.SensorSnapshot
}

// AirSensor reads temperature (°C) and relative humidity (%).
type AirSensor interface {
	ReadAir() (tempC, humidity float64, err error)
}

// Probe reads one temperature in °C.
type Probe interface {
	ReadTemp() (float64, error)
}

// WaterSensor reports whether water is detected.
type WaterSensor interface {
	WaterPresent() (bool, error)
}

// Calibration offsets are added to raw readings.
type Calibration struct {
	AirTempOffsetC float64
	Ground1OffsetC float64
	Ground2OffsetC float64
}

// Board combines the individual sensors into one Provider. Any sensor may be nil.
type Board struct {
	Air     AirSensor
	Ground1 Probe
	Ground2 Probe
	Water   WaterSensor
	Cal     Calibration

	log *logger.Logger
	now func() time.Time
}

// NewBoard builds a Board. log may be nil.
func NewBoard(air AirSensor, ground1, ground2 Probe, water WaterSensor, cal Calibration, log *logger.Logger) *Board {
	return &Board{Air: air, Ground1: ground1, Ground2: ground2, Water: water, Cal: cal, log: log, now: time.Now}
}

// Read polls each sensor once. Faults are logged and leave the field absent.
func (b *Board) Read(ctx context.Context) models.SensorSnapshot {
	snap := models.SensorSnapshot{ReadAt: b.now()}
	if ctx.Err() != nil {
		return snap
	}

	if b.Air != nil {
		if t, h, err := b.Air.ReadAir(); err != nil {
			b.warn("air", err)
		} else {
			t += b.Cal.AirTempOffsetC
			snap.AirTemperature, snap.AirHumidity = &t, &h
		}
	}
	snap.GroundTemp1 = b.probe("ground1", b.Ground1, b.Cal.Ground1OffsetC)
	snap.GroundTemp2 = b.probe("ground2", b.Ground2, b.Cal.Ground2OffsetC)

	if b.Water != nil {
		wet, err := b.Water.WaterPresent()
		if err != nil {
			b.warn("water", err)
		}
		snap.WaterPresent = wet
	}
	return snap
}

func (b *Board) probe(name string, p Probe, offset float64) *float64 {
	if p == nil {
		return nil
	}
	v, err := p.ReadTemp()
	if err != nil {
		b.warn(name, err)
		return nil
	}
	v += offset
	return &v
}

func (b *Board) warn(sensor string, err error) {
	if b.log == nil {
		return
	}
	if errors.Is(err, ErrNotReady) {
		b.log.Debugw("sensor_not_ready", "sensor", sensor, "err", err)
		return
	}
	b.log.Warnw("sensor_read_failed", "sensor", sensor, "err", err)
}
