package service

import (
	"context"
	"time"

	garden "garden_irrigation"
	"garden_irrigation/internal/clock"
	"garden_irrigation/internal/engine"
	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/repository"
	"garden_irrigation/internal/sensors"
	"garden_irrigation/internal/state"
	"garden_irrigation/internal/weather"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Irrigation holds the four cycle steps run by the scheduler.
type Irrigation interface {
	RefreshSolar(ctx context.Context) error
	RefreshWeather(ctx context.Context) error
	ComputeBalance(ctx context.Context) error
	MaybeIrrigate(ctx context.Context) error
	RestoreTotal(ctx context.Context) error
}

// Monitoring exposes read-only controller state.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.ControllerStatus, error)
	GetSolar(ctx context.Context) (garden.SolarReport, error)
	GetPersisted(ctx context.Context) (models.ControllerState, error)
}

// RelayControl switches relays on behalf of operators.
type RelayControl interface {
	Submit(ctx context.Context, cmd relay.Command) error
	Apply(ctx context.Context, cmd relay.Command) error
	States() []models.RelayState
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.IrrigationEvent, error)
}

// WeatherHistory lists stored weather rows.
type WeatherHistory interface {
	ListWeather(ctx context.Context, q garden.WeatherHistoryQuery) ([]models.WeatherRecord, error)
}

// SensorPoller keeps the sensor snapshot fresh.
// Stop via context cancellation in main() for graceful shutdown.
type SensorPoller interface {
	Run(ctx context.Context, tick time.Duration)
}

// Recorder receives metric observations. telemetry.Metrics implements it.
type Recorder interface {
	ObserveSensors(s models.SensorSnapshot)
	ObserveBalance(r engine.Result)
	ObserveHold(completed bool, totalAppliedL float64)
	SetTotalApplied(l float64)
	ObserveSolar(active bool)
	ObserveRelays(states []models.RelayState)
	WeatherFailed()
}

// PointWriter stores time series points. telemetry.Influx implements it.
type PointWriter interface {
	WriteBalance(ctx context.Context, r engine.Result, at time.Time) error
	WriteHold(ctx context.Context, h relay.Hold, totalAppliedL float64) error
}

// EventPublisher forwards irrigation events to other processes.
type EventPublisher interface {
	PublishEvent(e models.IrrigationEvent) error
}

// SolarRefresher recomputes the solar window. solar.Calculator implements it.
type SolarRefresher interface {
	Refresh(ctx context.Context) (models.SolarWindow, error)
}

// CoordinateSource reads the coordinates last written by the solar refresh.
type CoordinateSource interface {
	ReadCoordinates() (models.Coordinates, error)
}

// Sprinkler holds the irrigation relay ON. relay.Sprinkler implements it.
type Sprinkler interface {
	Run(ctx context.Context, liters float64, d time.Duration) (relay.Hold, bool, error)
	Active() bool
	Outstanding() float64
	Channel() int
	Stop() bool
}

// Deps are the runtime collaborators built in main. Recorder, Points,
// Publisher and Coords may be nil.
type Deps struct {
	Config    IrrigationConfig
	Auth      AuthConfig
	Store     *state.Store
	Solar     SolarRefresher
	Weather   weather.Provider
	Coords    CoordinateSource
	Sensors   sensors.Provider
	Relays    relay.Actuator
	Queue     *relay.Queue
	Sprinkler Sprinkler
	Recorder  Recorder
	Points    PointWriter
	Publisher EventPublisher
	Clock     clock.Clock
	Log       *logger.Logger
}

// Service aggregates all sub-services.
type Service struct {
	Irrigation
	Monitoring
	RelayControl
	EventLog
	WeatherHistory
	SensorPoller
	Authorization
}

// NewService wires the repository layer and runtime collaborators into
// concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	deps = deps.withDefaults()
	return &Service{
		Irrigation:     NewIrrigationService(repos.StateRepo, repos.EventRepo, repos.WeatherRepo, deps),
		Monitoring:     NewMonitoringService(repos.StateRepo, deps),
		RelayControl:   NewRelayService(repos.EventRepo, deps),
		EventLog:       NewEventLogService(repos.EventRepo),
		WeatherHistory: NewWeatherHistoryService(repos.WeatherRepo),
		SensorPoller:   NewSensorPollerService(deps.Sensors, deps.Store.Sensors, deps.Recorder, deps.Log),
		Authorization:  NewAuthService(repos.Auth, deps.Auth),
	}
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Wall
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Store == nil {
		d.Store = state.NewStore(0)
	}
	if d.Config.Location == nil {
		d.Config.Location = time.UTC
	}
	return d
}

type nopRecorder struct{}

func (nopRecorder) ObserveSensors(models.SensorSnapshot) {}
func (nopRecorder) ObserveBalance(engine.Result)         {}
func (nopRecorder) ObserveHold(bool, float64)            {}
func (nopRecorder) SetTotalApplied(float64)              {}
func (nopRecorder) ObserveSolar(bool)                    {}
func (nopRecorder) ObserveRelays([]models.RelayState)    {}
func (nopRecorder) WeatherFailed()                       {}
