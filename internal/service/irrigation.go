package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"garden_irrigation/internal/clock"
	"garden_irrigation/internal/engine"
	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/repository"
	"garden_irrigation/internal/state"
	"garden_irrigation/internal/weather"
)

// historyInterval throttles the current/forecast rows written to the
// weather history table.
const historyInterval = time.Hour

// Decision skip reasons.
const (
	skipNoWindow     = "solar window not active"
	skipNoSprinkler  = "no sprinkler configured"
	skipMergedIntoOn = "merged into running hold"
)

// IrrigationService runs the cycle steps against the shared store.
type IrrigationService struct {
	cfg       IrrigationConfig
	store     *state.Store
	solar     SolarRefresher
	weather   weather.Provider
	coords    CoordinateSource
	sprinkler Sprinkler
	rec       Recorder
	points    PointWriter
	publisher EventPublisher
	clock     clock.Clock
	log       *logger.Logger

	stateRepo   repository.StateRepo
	eventRepo   repository.EventRepo
	weatherRepo repository.WeatherRepo

	mu            sync.Mutex
	codes         map[string]bool
	lastSkip      string
	lastHistoryAt time.Time
}

func NewIrrigationService(stateRepo repository.StateRepo, eventRepo repository.EventRepo,
	weatherRepo repository.WeatherRepo, deps Deps) *IrrigationService {
	deps = deps.withDefaults()
	return &IrrigationService{
		cfg:         deps.Config,
		store:       deps.Store,
		solar:       deps.Solar,
		weather:     deps.Weather,
		coords:      deps.Coords,
		sprinkler:   deps.Sprinkler,
		rec:         deps.Recorder,
		points:      deps.Points,
		publisher:   deps.Publisher,
		clock:       deps.Clock,
		log:         deps.Log,
		stateRepo:   stateRepo,
		eventRepo:   eventRepo,
		weatherRepo: weatherRepo,
		codes:       make(map[string]bool),
	}
}

// RestoreTotal raises the cumulative total to the persisted one so a restart
// never lowers it.
func (s *IrrigationService) RestoreTotal(ctx context.Context) error {
	if s.stateRepo == nil {
		return nil
	}
	st, err := s.stateRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load controller state: %w", err)
	}
	if diff := st.TotalWaterAppliedL - s.store.Irrigation.Total(); diff > 0 {
		total := s.store.Irrigation.Credit(diff)
		s.rec.SetTotalApplied(total)
		s.log.Infow("total_restored", "total_l", total)
	}
	return nil
}

// RefreshSolar recomputes the solar window and publishes it to the store.
// A handoff write failure is returned but the window is still used.
func (s *IrrigationService) RefreshSolar(ctx context.Context) error {
	if s.solar == nil {
		return nil
	}
	w, err := s.solar.Refresh(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.store.Solar.Set(w)
	s.setCode(models.CodeNoSolarWindow, w.Start == nil)
	s.rec.ObserveSolar(w.IsActive(s.clock.Now()))

	if w.Start != nil {
		s.log.Infow("solar_window", "start", *w.Start, "end", *w.End, "source", w.Source,
			"lat", w.Position.Latitude, "lon", w.Position.Longitude)
	} else {
		s.log.Infow("solar_window_none", "source", w.Source,
			"lat", w.Position.Latitude, "lon", w.Position.Longitude)
	}
	if err != nil {
		return fmt.Errorf("solar handoff: %w", err)
	}
	return nil
}

// RefreshWeather fetches the forecast and swaps the weather snapshot. On
// failure the previous snapshot stays in place.
func (s *IrrigationService) RefreshWeather(ctx context.Context) error {
	if s.weather == nil {
		return nil
	}
	coords := s.coordinates()
	f, err := s.weather.Fetch(ctx, coords, s.cfg.ForecastDays)
	if err != nil {
		s.setCode(models.CodeWeatherUnavailable, true)
		s.rec.WeatherFailed()
		return fmt.Errorf("fetch weather: %w", err)
	}

	now := s.clock.Now().In(s.cfg.Location)
	snap := weather.Snapshot(f, now, now)
	s.store.Weather.Replace(snap)
	s.setCode(models.CodeWeatherUnavailable, false)
	s.log.Infow("weather_refreshed", "location", f.Location,
		"past_precip_mm", snap.PastPrecipMM, "forecast_precip_mm", snap.ForecastPrecipMM)

	if s.cfg.StoreHistory && s.weatherRepo != nil {
		s.storeHistory(ctx, coords, f, now)
	}
	return nil
}

// coordinates prefers the handoff file and falls back to the configured site.
func (s *IrrigationService) coordinates() models.Coordinates {
	if s.coords == nil {
		return s.cfg.DefaultCoords
	}
	c, err := s.coords.ReadCoordinates()
	if err != nil {
		s.log.Debugw("coordinates_fallback", "err", err)
		return s.cfg.DefaultCoords
	}
	return c
}

// storeHistory persists the forecast rows and backfills missing history days.
// Failures are logged only; history never blocks the balance.
func (s *IrrigationService) storeHistory(ctx context.Context, coords models.Coordinates, f weather.Forecast, now time.Time) {
	s.mu.Lock()
	due := s.lastHistoryAt.IsZero() || now.Sub(s.lastHistoryAt) >= historyInterval
	if due {
		s.lastHistoryAt = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	if err := s.weatherRepo.Append(ctx, weather.Records(f, now)...); err != nil {
		s.log.Warnw("weather_history_store_failed", "err", err)
		return
	}
	if !s.cfg.HistoryBackfill {
		return
	}
	for d := 1; d <= s.cfg.HistoryDays; d++ {
		date := now.AddDate(0, 0, -d)
		key := date.Format(weather.DateLayout)
		ok, err := s.weatherRepo.HasHistory(ctx, key, f.Location)
		if err != nil {
			s.log.Warnw("weather_history_lookup_failed", "date", key, "err", err)
			return
		}
		if ok {
			continue
		}
		day, err := s.weather.History(ctx, coords, date)
		if err != nil {
			s.log.Warnw("weather_history_fetch_failed", "date", key, "err", err)
			return
		}
		if err := s.weatherRepo.Append(ctx, weather.DayRecord(day, models.WeatherKindHistory, f.Location, now)); err != nil {
			s.log.Warnw("weather_history_store_failed", "date", key, "err", err)
			return
		}
	}
}

// ComputeBalance runs the water balance on one consistent read of the store
// and publishes the requirement to the mailbox. A cycle without weather is
// skipped.
func (s *IrrigationService) ComputeBalance(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("balance computation panicked: %v", r)
		}
	}()

	sensors, wx, total := s.store.BalanceInputs()
	res, err := engine.Compute(engine.Inputs{
		Sensors:       sensors,
		Weather:       wx,
		TotalAppliedL: total,
		Garden:        s.cfg.Garden,
	})
	if errors.Is(err, engine.ErrWeatherNotReady) {
		s.log.Infow("balance_skipped", "reason", err.Error())
		return nil
	}
	if err != nil {
		return fmt.Errorf("compute balance: %w", err)
	}

	s.store.Irrigation.Publish(res.RequiredL, res.RuntimeSec)
	s.rec.ObserveBalance(res)
	s.log.Infow("balance_computed",
		"temp_c", res.TemperatureC, "temp_source", res.TempSource,
		"humidity", res.Humidity, "humidity_source", res.HumiditySource,
		"wind_mps", res.WindMps, "cloud_pct", res.CloudPercent,
		"f_temp", res.Factors.Temp, "f_hum", res.Factors.Hum,
		"f_wind", res.Factors.Wind, "f_solar", res.Factors.Solar, "f_env", res.Factors.Env,
		"adjusted_l", res.AdjustedL, "precip_l", res.PrecipL, "total_applied_l", res.TotalAppliedL,
		"required_l", res.RequiredL, "runtime_sec", res.RuntimeSec)

	if s.points != nil {
		if err := s.points.WriteBalance(ctx, res, s.clock.Now()); err != nil {
			s.log.Warnw("influx_write_failed", "measurement", "balance", "err", err)
		}
	}
	s.persist(ctx)
	return nil
}

// MaybeIrrigate takes the pending requirement and, in demo mode or while
// the solar window is active, holds the sprinkler ON for its runtime.
func (s *IrrigationService) MaybeIrrigate(ctx context.Context) error {
	liters, runtimeSec, ok := s.store.Irrigation.Take()
	if !ok {
		return nil
	}
	now := s.clock.Now()
	if s.sprinkler == nil {
		s.skip(ctx, skipNoSprinkler, liters, runtimeSec)
		return nil
	}
	if !s.cfg.Garden.DemoMode && !s.store.Solar.Active(now) {
		s.rec.ObserveSolar(false)
		s.skip(ctx, skipNoWindow, liters, runtimeSec)
		return nil
	}
	s.rec.ObserveSolar(s.store.Solar.Active(now))

	// A running hold is not credited yet, so the requirement still counts
	// its water. Merge only what it does not cover.
	if committed := s.sprinkler.Outstanding(); committed > 0 {
		extra := liters - committed
		if extra <= 0 {
			s.log.Debugw("irrigation_covered", "required_l", liters, "committed_l", committed)
			return nil
		}
		runtimeSec = runtimeSec * extra / liters
		liters = extra
		s.log.Infow("irrigation_merged", "extra_l", liters, "runtime_sec", runtimeSec, "committed_l", committed)
	} else {
		s.record(ctx, models.EventIrrigationStart,
			fmt.Sprintf("sprinkler on for %.1f s (%.2f L)", runtimeSec, liters),
			map[string]any{"required_l": liters, "runtime_sec": runtimeSec, "demo": s.cfg.Garden.DemoMode})
		s.log.Infow("irrigation_started", "required_l", liters, "runtime_sec", runtimeSec,
			"demo", s.cfg.Garden.DemoMode)
	}
	s.setSkip("")

	d := time.Duration(runtimeSec * float64(time.Second))
	hold, owner, err := s.sprinkler.Run(ctx, liters, d)
	if !owner {
		if err != nil {
			s.record(ctx, models.EventError, "sprinkler failed to start", map[string]any{"err": err.Error()})
			return fmt.Errorf("run sprinkler: %w", err)
		}
		s.log.Debugw("irrigation_trigger_merged", "reason", skipMergedIntoOn)
		return nil
	}

	// The hold may end because ctx was canceled; bookkeeping still has to land.
	bg := context.WithoutCancel(ctx)
	total := s.store.Irrigation.Credit(hold.DeliveredL)
	s.rec.ObserveHold(hold.Completed, total)
	s.log.Infow("irrigation_stopped", "delivered_l", hold.DeliveredL, "requested_l", hold.RequestedL,
		"triggers", hold.Triggers, "completed", hold.Completed, "total_l", total,
		"took", hold.EndedAt.Sub(hold.StartedAt))
	s.record(bg, models.EventIrrigationStop,
		fmt.Sprintf("sprinkler off after %.1f s, %.2f L delivered", hold.EndedAt.Sub(hold.StartedAt).Seconds(), hold.DeliveredL),
		map[string]any{"hold": hold, "total_applied_l": total})
	if s.points != nil {
		if werr := s.points.WriteHold(bg, hold, total); werr != nil {
			s.log.Warnw("influx_write_failed", "measurement", "sprinkler", "err", werr)
		}
	}
	s.persist(bg)

	if err != nil {
		s.record(bg, models.EventError, "sprinkler relay error", map[string]any{"err": err.Error()})
		return fmt.Errorf("run sprinkler: %w", err)
	}
	return nil
}

// skip records a DECISION_SKIP event when the reason differs from the last
// decision, so a closed window does not log one event per cycle.
func (s *IrrigationService) skip(ctx context.Context, reason string, liters, runtimeSec float64) {
	s.log.Debugw("irrigation_skipped", "reason", reason, "required_l", liters, "runtime_sec", runtimeSec)
	if !s.setSkip(reason) {
		return
	}
	s.record(ctx, models.EventDecisionSkip, reason,
		map[string]any{"required_l": liters, "runtime_sec": runtimeSec})
}

func (s *IrrigationService) setSkip(reason string) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.lastSkip != reason
	s.lastSkip = reason
	return changed
}

// record appends an event and forwards it to the publisher.
func (s *IrrigationService) record(ctx context.Context, typ, desc string, meta any) {
	e := models.IrrigationEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  s.clock.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}
	if s.eventRepo != nil {
		if err := s.eventRepo.Append(ctx, e); err != nil {
			s.log.Warnw("event_append_failed", "type", typ, "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(e); err != nil {
			s.log.Warnw("event_publish_failed", "type", typ, "err", err)
		}
	}
}

func (s *IrrigationService) setCode(code string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.codes[code] = true
	} else {
		delete(s.codes, code)
	}
}

func (s *IrrigationService) errorCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// persist saves the controller snapshot. Failures are logged only.
func (s *IrrigationService) persist(ctx context.Context) {
	if s.stateRepo == nil {
		return
	}
	irr := s.store.Irrigation.Snapshot()
	w := s.store.Solar.Window()
	st := models.ControllerState{
		ID:                 1,
		TotalWaterAppliedL: irr.TotalWaterAppliedL,
		PendingRequiredL:   irr.PendingRequiredL,
		PendingRuntimeSec:  irr.PendingRuntimeSec,
		WindowStart:        w.Start,
		WindowEnd:          w.End,
		ErrorCodes:         s.errorCodes(),
		UpdatedAt:          s.clock.Now().UTC(),
	}
	if err := s.stateRepo.Save(ctx, st); err != nil {
		s.log.Warnw("state_save_failed", "err", err)
	}
}
