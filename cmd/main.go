package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garden_irrigation/internal/broker"
	"garden_irrigation/internal/config"
	"garden_irrigation/internal/handlers"
	"garden_irrigation/internal/handoff"
	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/position"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/repository"
	"garden_irrigation/internal/repository/db"
	"garden_irrigation/internal/scheduler"
	"garden_irrigation/internal/sensors"
	"garden_irrigation/internal/server"
	"garden_irrigation/internal/service"
	"garden_irrigation/internal/solar"
	"garden_irrigation/internal/state"
	"garden_irrigation/internal/telemetry"
	"garden_irrigation/internal/weather"

	"github.com/stianeikeland/go-rpio/v4"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	relayQueueSize  = 16
	mqttRetryWindow = 2 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	demo := flag.Bool("demo", false, "irrigate outside the solar window and cap past precipitation")
	flag.Parse()

	// load config.yml
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	if *demo {
		cfg.Garden.DemoMode = true
	}

	// init logger
	log := logger.GetWithFormat(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorw("controller_stopped", "err", err)
		os.Exit(1)
	}
	log.Infow("controller_stopped")
}

// hardware is the relay driver and sensor set for the configured mode.
type hardware struct {
	driver  relay.Driver
	sensors func(wet func() bool) sensors.Provider
	close   func()
}

func openHardware(cfg config.Config, log *logger.Logger) (hardware, error) {
	if cfg.Hardware.Mode == config.HardwareSimulated {
		log.Infow("hardware_simulated")
		return hardware{
			driver:  relay.NewMemoryDriver(),
			sensors: func(wet func() bool) sensors.Provider { return sensors.NewSimulated(wet) },
			close:   func() {},
		}, nil
	}

	if err := rpio.Open(); err != nil {
		return hardware{}, err
	}
	s := cfg.Sensors
	board := sensors.NewBoard(
		sensors.NewDHT22(s.DHTPin),
		sensors.NewDS18B20(s.OneWireDir, s.Ground1ID),
		sensors.NewDS18B20(s.OneWireDir, s.Ground2ID),
		sensors.NewWaterContact(s.WaterPin),
		sensors.Calibration{
			AirTempOffsetC: s.AirTempOffsetC,
			Ground1OffsetC: s.Ground1OffsetC,
			Ground2OffsetC: s.Ground2OffsetC,
		},
		log.Component("sensors"),
	)
	return hardware{
		driver:  relay.GPIODriver{},
		sensors: func(func() bool) sensors.Provider { return board },
		close: func() {
			if err := rpio.Close(); err != nil {
				log.Warnw("gpio_close_failed", "err", err)
			}
		},
	}, nil
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.close()

	pins := make(map[int]int, len(cfg.Relays.Channels))
	for _, ch := range cfg.Relays.Channels {
		pins[ch.Channel] = ch.Pin
	}
	bank, err := relay.NewBank(hw.driver, pins, cfg.Relays.ActiveLow)
	if err != nil {
		return err
	}
	// Every exit path leaves the relays released.
	defer func() {
		if err := bank.AllOff(); err != nil {
			log.Errorw("relays_release_failed", "err", err)
		}
	}()

	sprinkler := relay.NewSprinkler(bank, cfg.Relays.IrrigationChannel, cfg.Garden.FlowRateLPerMin, nil)
	queue := relay.NewQueue(relayQueueSize)

	handoffStore, err := handoff.NewStore(cfg.Handoff.Dir)
	if err != nil {
		return err
	}

	providers := make([]position.Provider, 0, 2)
	var gps *position.GPS
	if cfg.Site.GPSEnabled {
		gps = position.NewGPS(cfg.Site.GPSDAddress, cfg.Site.GPSMaxAge, log.Component("gps"))
		providers = append(providers, gps)
	}
	providers = append(providers, position.NewNTP(cfg.Site.NTPServer, cfg.Site.NTPTimeout, cfg.Site.Coordinates()))
	locator := position.NewChain(cfg.Site.Coordinates(), log.Component("position"), providers...)

	calc := solar.NewCalculator(locator, nil, handoffStore, solar.Options{
		Band:     solar.Band{Low: cfg.Solar.LowDeg, High: cfg.Solar.HighDeg},
		Span:     cfg.Solar.Span,
		Step:     cfg.Solar.Step,
		Gap:      cfg.Solar.CoarseGap,
		Mode:     cfg.Solar.Mode,
		Location: cfg.Site.Location(),
	})

	weatherClient := weather.NewClient(weather.ClientConfig{
		BaseURL:         cfg.Weather.BaseURL,
		APIKey:          cfg.Weather.APIKey,
		Timeout:         cfg.Weather.Timeout,
		MaxRetries:      cfg.Weather.MaxRetries,
		BreakerFailures: cfg.Weather.BreakerFailures,
		BreakerOpenFor:  cfg.Weather.BreakerOpenFor,
	}, nil)

	metrics := telemetry.NewMetrics()

	var points service.PointWriter
	var influx *telemetry.Influx
	if cfg.Influx.Enabled {
		influx, err = telemetry.NewInflux(telemetry.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
			Site:   cfg.Influx.Site,
		}, log.Component("influx"))
		if err != nil {
			return err
		}
		defer influx.Close()
		points = influx
	}

	var publisher service.EventPublisher
	var consumer *broker.Consumer
	mqttCfg := broker.Config{
		Broker:       cfg.MQTT.Broker,
		ClientID:     cfg.MQTT.ClientID,
		Username:     cfg.MQTT.Username,
		Password:     cfg.MQTT.Password,
		CommandTopic: cfg.MQTT.CommandTopic,
		EventTopic:   cfg.MQTT.EventTopic,
		QoS:          cfg.MQTT.QoS,
		RetryWindow:  mqttRetryWindow,
	}
	if cfg.MQTT.Enabled {
		// The client disconnects itself once ctx is canceled.
		client, err := broker.Connect(ctx, mqttCfg, log.Component("mqtt"))
		if err != nil {
			return err
		}
		publisher = broker.NewPublisher(client, mqttCfg.EventTopic, mqttCfg.QoS)
		consumer = broker.NewConsumer(client, mqttCfg.CommandTopic, mqttCfg.QoS,
			broker.NewDeduper(cfg.MQTT.DedupTTL, cfg.MQTT.DedupSize), queue.Submit, log.Component("mqtt"))
	}

	// wire dependencies
	store := state.NewStore(cfg.Garden.InitialWaterAppliedL)
	services := service.NewService(repos, service.Deps{
		Config: service.IrrigationConfig{
			Garden:          cfg.Garden.GardenConfig,
			DefaultCoords:   cfg.Site.Coordinates(),
			Location:        cfg.Site.Location(),
			ForecastDays:    cfg.Weather.ForecastDays,
			HistoryDays:     cfg.Weather.HistoryDays,
			StoreHistory:    cfg.Weather.StoreHistory,
			HistoryBackfill: cfg.Weather.HistoryBackfill,
		},
		Auth:      service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Store:     store,
		Solar:     calc,
		Weather:   weatherClient,
		Coords:    handoffStore,
		Sensors:   hw.sensors(sprinkler.Active),
		Relays:    bank,
		Queue:     queue,
		Sprinkler: sprinkler,
		Recorder:  metrics,
		Points:    points,
		Publisher: publisher,
		Log:       log.Component("irrigation"),
	})

	if cfg.Garden.RestoreTotal {
		if err := services.RestoreTotal(ctx); err != nil {
			log.Warnw("restore_total_failed", "err", err)
		}
	}

	sched := scheduler.New(scheduler.Tasks{
		Solar:    observed(metrics, scheduler.StepSolar, services.RefreshSolar),
		Weather:  observed(metrics, scheduler.StepWeather, services.RefreshWeather),
		Balance:  observed(metrics, scheduler.StepBalance, services.ComputeBalance),
		Decision: observed(metrics, scheduler.StepDecision, services.MaybeIrrigate),
	}, scheduler.Timing{
		Period:   cfg.Scheduler.Period,
		Solar:    cfg.Scheduler.SolarDelay,
		Weather:  cfg.Scheduler.WeatherDelay,
		Balance:  cfg.Scheduler.BalanceDelay,
		Decision: cfg.Scheduler.DecisionDelay,
	}, nil, log.Component("scheduler"))

	apiHandler := handlers.NewHandler(services, log).
		WithMetrics(metrics.Handler()).
		WithStreamInterval(cfg.HTTP.WSInterval)
	srv := &server.Server{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		services.SensorPoller.Run(gctx, cfg.Sensors.PollInterval)
		return nil
	})
	g.Go(func() error {
		queue.Serve(gctx, services.Apply)
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })
	runHTTPServer(gctx, g, srv, cfg.HTTP.Port, apiHandler, log)

	if cfg.Relays.Stdin {
		// Not part of the group: a blocked stdin read must not hold up shutdown.
		go readStdin(gctx, queue, log)
	}
	if gps != nil {
		g.Go(func() error {
			gps.Run(gctx)
			return nil
		})
	}
	if influx != nil {
		g.Go(func() error {
			influx.Run(gctx, cfg.Influx.Interval, services.GetStatus)
			return nil
		})
	}
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	log.Infow("controller_started",
		"hardware", cfg.Hardware.Mode,
		"demo_mode", cfg.Garden.DemoMode,
		"port", cfg.HTTP.Port,
		"mqtt", cfg.MQTT.Enabled,
		"influx", cfg.Influx.Enabled,
	)

	err = g.Wait()
	log.Infow("shutting down controller...")
	return err
}

// observed reports each step's duration and outcome to the metrics.
func observed(m *telemetry.Metrics, step string, task scheduler.Task) scheduler.Task {
	return func(ctx context.Context) error {
		start := time.Now()
		err := task(ctx)
		m.ObserveStep(step, time.Since(start), err)
		return err
	}
}

// runHTTPServer serves the API until ctx is canceled, then shuts it down
// allowing in-flight requests to complete.
func runHTTPServer(ctx context.Context, g *errgroup.Group, srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	g.Go(func() error {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
		return nil
	})
}

// readStdin applies "<relay> <ON|OFF>" lines typed on the console.
func readStdin(ctx context.Context, queue *relay.Queue, log *logger.Logger) {
	report := func(line string, err error) {
		if err != nil {
			log.Warnw("stdin_command_failed", "line", line, "err", err)
			return
		}
		log.Infow("stdin_command_applied", "line", line)
	}
	if err := queue.ReadLines(ctx, os.Stdin, relay.SourceStdin, report); err != nil {
		log.Warnw("stdin_closed", "err", err)
	}
}
