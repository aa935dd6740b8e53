package service

import (
	"context"
	"time"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/sensors"
	"garden_irrigation/internal/state"
)

// SensorPollerService reads the sensor board and replaces the shared snapshot.
type SensorPollerService struct {
	provider sensors.Provider
	store    *state.Sensors
	rec      Recorder
	log      *logger.Logger
}

// NewSensorPollerService returns a poller. rec and log may be nil.
func NewSensorPollerService(provider sensors.Provider, store *state.Sensors, rec Recorder, log *logger.Logger) *SensorPollerService {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SensorPollerService{provider: provider, store: store, rec: rec, log: log}
}

// Run polls once immediately, then every tick until ctx is canceled.
func (s *SensorPollerService) Run(ctx context.Context, tick time.Duration) {
	if s.provider == nil {
		return
	}
	s.poll(ctx)

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debugw("sensor_poller_stopped")
			return
		case <-t.C:
			s.poll(ctx)
		}
	}
}

func (s *SensorPollerService) poll(ctx context.Context) {
	snap := s.provider.Read(ctx)
	s.store.Update(snap)
	s.rec.ObserveSensors(snap)
}
