package sensors

import (
	"context"
	"math"
	"sync"
	"time"

	"garden_irrigation/internal/models"
)

// Simulation constants.
const (
	SimAmbientMeanC      = 20.0  // daily mean air temperature °C
	SimAmbientSwingC     = 6.0   // half the day/night amplitude °C
	SimAmbientHumidity   = 55.0  // % at the daily mean temperature
	SimWaterTempC        = 12.0  // sprinkler water °C
	SimGroundDriftPerSec = 0.002 // fraction of the gap closed per second
	SimWetDriftPerSec    = 0.02  // fraction closed per second while sprinkling
	SimHumidityPerC      = 2.5   // % humidity lost per °C above mean
	SimDryAfter          = 10 * time.Minute
)

// Simulated is a sensor Provider for hosts without GPIO. Air follows a daily
// sine, ground probes drift toward air and cool while the sprinkler runs.
type Simulated struct {
	wet func() bool
	now func() time.Time

	mu      sync.Mutex
	ground1 float64
	ground2 float64
	lastAt  time.Time
	wetAt   time.Time
}

// NewSimulated builds a simulator. wet reports whether the sprinkler is on.
func NewSimulated(wet func() bool) *Simulated {
	if wet == nil {
		wet = func() bool { return false }
	}
	return &Simulated{wet: wet, now: time.Now, ground1: SimAmbientMeanC, ground2: SimAmbientMeanC - 1}
}

func (s *Simulated) Read(ctx context.Context) models.SensorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	air := ambientAt(now)
	hum := clamp(SimAmbientHumidity-SimHumidityPerC*(air-SimAmbientMeanC), 5, 100)

	elapsed := 0.0
	if !s.lastAt.IsZero() {
		elapsed = now.Sub(s.lastAt).Seconds()
	}
	s.lastAt = now

	sprinkling := s.wet()
	if sprinkling {
		s.wetAt = now
		s.ground1 = driftToward(s.ground1, SimWaterTempC, SimWetDriftPerSec, elapsed)
		s.ground2 = driftToward(s.ground2, SimWaterTempC, SimWetDriftPerSec, elapsed)
		hum = clamp(hum+20, 5, 100)
	} else {
		s.ground1 = driftToward(s.ground1, air, SimGroundDriftPerSec, elapsed)
		s.ground2 = driftToward(s.ground2, air-1, SimGroundDriftPerSec, elapsed)
	}

	g1, g2 := s.ground1, s.ground2
	return models.SensorSnapshot{
		AirTemperature: &air,
		AirHumidity:    &hum,
		GroundTemp1:    &g1,
		GroundTemp2:    &g2,
		WaterPresent:   sprinkling || (!s.wetAt.IsZero() && now.Sub(s.wetAt) < SimDryAfter),
		ReadAt:         now,
	}
}

// ambientAt peaks at 15:00 and bottoms out at 03:00 local time.
func ambientAt(t time.Time) float64 {
	hours := float64(t.Hour()) + float64(t.Minute())/60
	return SimAmbientMeanC + SimAmbientSwingC*math.Sin((hours-9)/24*2*math.Pi)
}

// driftToward closes the gap to target exponentially.
func driftToward(cur, target, ratePerSec, elapsed float64) float64 {
	if elapsed <= 0 {
		return cur
	}
	return target + (cur-target)*math.Exp(-ratePerSec*elapsed)
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
