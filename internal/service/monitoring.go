package service

import (
	"context"
	"time"

	garden "garden_irrigation"
	"garden_irrigation/internal/clock"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/repository"
	"garden_irrigation/internal/solar"
	"garden_irrigation/internal/state"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
	store     *state.Store
	relays    relay.Actuator
	sprinkler Sprinkler
	garden    models.GardenConfig
	clock     clock.Clock
}

func NewMonitoringService(stateRepo repository.StateRepo, deps Deps) *MonitoringService {
	deps = deps.withDefaults()
	return &MonitoringService{
		stateRepo: stateRepo,
		store:     deps.Store,
		relays:    deps.Relays,
		sprinkler: deps.Sprinkler,
		garden:    deps.Config.Garden,
		clock:     deps.Clock,
	}
}

// GetStatus assembles the live controller status from the shared store.
func (s *MonitoringService) GetStatus(ctx context.Context) (models.ControllerStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.ControllerStatus{}, err
	}
	now := s.clock.Now()
	st := models.ControllerStatus{
		Sensors:    s.store.Sensors.Snapshot(),
		Weather:    s.store.Weather.Snapshot(),
		Solar:      s.store.Solar.Window(),
		SolarOpen:  s.store.Solar.Active(now),
		Irrigation: s.store.Irrigation.Snapshot(),
		Garden:     s.garden,
		At:         now.UTC(),
	}
	if s.sprinkler != nil {
		st.Sprinkling = s.sprinkler.Active()
	}
	if s.relays != nil {
		st.Relays = s.relays.States()
	}
	return st, nil
}

// GetSolar reports the cached solar window and the countdown to its start.
func (s *MonitoringService) GetSolar(ctx context.Context) (garden.SolarReport, error) {
	if err := ctx.Err(); err != nil {
		return garden.SolarReport{}, err
	}
	now := s.clock.Now()
	w := s.store.Solar.Window()
	rep := garden.SolarReport{Window: w, Active: w.IsActive(now), At: now.UTC()}
	if w.Start != nil {
		sec := solar.Countdown(now, *w.Start)
		rep.CountdownSec = &sec
	}
	return rep, nil
}

// GetPersisted returns the last persisted controller snapshot.
// If nothing was persisted yet, returns a baseline built from the live totals.
func (s *MonitoringService) GetPersisted(ctx context.Context) (models.ControllerState, error) {
	if s.stateRepo == nil {
		return s.baselineState(), nil
	}
	st, err := s.stateRepo.Load(ctx)
	if err != nil {
		return models.ControllerState{}, err
	}
	if st.ID == 0 {
		return s.baselineState(), nil
	}
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// baselineState returns a sensible default snapshot for an uninitialized DB.
func (s *MonitoringService) baselineState() models.ControllerState {
	irr := s.store.Irrigation.Snapshot()
	return models.ControllerState{
		ID:                 1, // DB schema enforces single-row state with id=1
		TotalWaterAppliedL: irr.TotalWaterAppliedL,
		PendingRequiredL:   irr.PendingRequiredL,
		PendingRuntimeSec:  irr.PendingRuntimeSec,
		UpdatedAt:          s.clock.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
