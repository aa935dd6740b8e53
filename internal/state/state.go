// Package state holds the shared, concurrently accessed controller state.
// Each structure owns its lock; readers always receive copies.
package state

import (
	"sync"
	"time"

	"garden_irrigation/internal/models"
)

// Sensors holds the latest SensorSnapshot. The sensor poller is the only writer.
type Sensors struct {
	mu   sync.RWMutex
	snap models.SensorSnapshot
}

// Update replaces the snapshot. Fields that failed to read are nil.
func (s *Sensors) Update(snap models.SensorSnapshot) {
	snap = copySensors(snap)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (s *Sensors) Snapshot() models.SensorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySensors(s.snap)
}

// Weather holds the latest WeatherSnapshot. The weather refresh is the only writer.
type Weather struct {
	mu   sync.RWMutex
	snap models.WeatherSnapshot
}

// Replace swaps the whole snapshot under one critical section.
func (w *Weather) Replace(snap models.WeatherSnapshot) {
	snap = copyWeather(snap)
	w.mu.Lock()
	w.snap = snap
	w.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (w *Weather) Snapshot() models.WeatherSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return copyWeather(w.snap)
}

// Ready reports whether current conditions were ever fetched.
func (w *Weather) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snap.Current != nil
}

// Solar holds the last computed SolarWindow.
type Solar struct {
	mu     sync.RWMutex
	window models.SolarWindow
}

// Set stores a freshly computed window.
func (s *Solar) Set(w models.SolarWindow) {
	s.mu.Lock()
	s.window = copyWindow(w)
	s.mu.Unlock()
}

// Window returns a copy of the last computed window.
func (s *Solar) Window() models.SolarWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyWindow(s.window)
}

// Active evaluates the window against now instead of trusting a cached flag.
func (s *Solar) Active(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.IsActive(now)
}

// Irrigation tracks the cumulative water applied and the single-slot
// pending mailbox filled by the balance computation.
type Irrigation struct {
	mu         sync.Mutex
	total      float64
	pendingL   float64
	pendingSec float64
}

// NewIrrigation starts the cumulative total at initialL (clamped to >= 0).
func NewIrrigation(initialL float64) *Irrigation {
	return &Irrigation{total: nonNegative(initialL)}
}

// Publish overwrites any unconsumed pending value (last write wins).
func (i *Irrigation) Publish(requiredL, runtimeSec float64) {
	i.mu.Lock()
	i.pendingL = nonNegative(requiredL)
	i.pendingSec = nonNegative(runtimeSec)
	i.mu.Unlock()
}

// Take reads and clears the mailbox. ok is false when nothing is pending.
func (i *Irrigation) Take() (requiredL, runtimeSec float64, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pendingL <= 0 {
		return 0, 0, false
	}
	requiredL, runtimeSec = i.pendingL, i.pendingSec
	i.pendingL, i.pendingSec = 0, 0
	return requiredL, runtimeSec, true
}

// Credit adds delivered water to the total. Negative amounts are ignored.
func (i *Irrigation) Credit(liters float64) float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.total += nonNegative(liters)
	return i.total
}

// Total returns the cumulative water applied.
func (i *Irrigation) Total() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.total
}

// Snapshot returns the full irrigation state.
func (i *Irrigation) Snapshot() models.IrrigationState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return models.IrrigationState{
		TotalWaterAppliedL: i.total,
		PendingRequiredL:   i.pendingL,
		PendingRuntimeSec:  i.pendingSec,
	}
}

// Store groups the shared structures handed to every task.
type Store struct {
	Sensors    *Sensors
	Weather    *Weather
	Solar      *Solar
	Irrigation *Irrigation
}

// NewStore builds an empty store with the given starting total.
func NewStore(initialWaterL float64) *Store {
	return &Store{
		Sensors:    &Sensors{},
		Weather:    &Weather{},
		Solar:      &Solar{},
		Irrigation: NewIrrigation(initialWaterL),
	}
}

// BalanceInputs reads sensors, weather and the applied total as one
// consistent set. Locks are always taken in this order.
func (s *Store) BalanceInputs() (models.SensorSnapshot, models.WeatherSnapshot, float64) {
	s.Sensors.mu.RLock()
	defer s.Sensors.mu.RUnlock()
	s.Weather.mu.RLock()
	defer s.Weather.mu.RUnlock()
	s.Irrigation.mu.Lock()
	defer s.Irrigation.mu.Unlock()

	return copySensors(s.Sensors.snap), copyWeather(s.Weather.snap), s.Irrigation.total
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copySensors(s models.SensorSnapshot) models.SensorSnapshot {
	s.AirTemperature = copyFloat(s.AirTemperature)
	s.AirHumidity = copyFloat(s.AirHumidity)
	s.GroundTemp1 = copyFloat(s.GroundTemp1)
	s.GroundTemp2 = copyFloat(s.GroundTemp2)
	return s
}

func copyWeather(w models.WeatherSnapshot) models.WeatherSnapshot {
	if w.Current != nil {
		c := *w.Current
		c.TempC = copyFloat(c.TempC)
		c.Humidity = copyFloat(c.Humidity)
		c.WindKph = copyFloat(c.WindKph)
		c.CloudPct = copyFloat(c.CloudPct)
		c.UV = copyFloat(c.UV)
		w.Current = &c
	}
	return w
}

func copyWindow(w models.SolarWindow) models.SolarWindow {
	w.Start = copyTime(w.Start)
	w.End = copyTime(w.End)
	return w
}
