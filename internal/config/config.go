// Package config loads the controller configuration from configs/config.yml
// with GARDEN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"garden_irrigation/internal/models"
)

// Hardware modes.
const (
	HardwareGPIO      = "gpio"
	HardwareSimulated = "simulated"
)

// Solar band search modes.
const (
	SolarScan   = "scan"
	SolarBisect = "bisect"
)

const envPrefix = "GARDEN"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Garden    Garden    `mapstructure:"garden"`
	Site      Site      `mapstructure:"site"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Solar     Solar     `mapstructure:"solar"`
	Hardware  Hardware  `mapstructure:"hardware"`
	Sensors   Sensors   `mapstructure:"sensors"`
	Relays    Relays    `mapstructure:"relays"`
	Weather   Weather   `mapstructure:"weather"`
	Handoff   Handoff   `mapstructure:"handoff"`
	DB        DB        `mapstructure:"db"`
	HTTP      HTTP      `mapstructure:"http"`
	Auth      Auth      `mapstructure:"auth"`
	MQTT      MQTT      `mapstructure:"mqtt"`
	Influx    Influx    `mapstructure:"influx"`
	Log       Log       `mapstructure:"log"`
}

// Garden extends the immutable GardenConfig with startup-only settings.
type Garden struct {
	models.GardenConfig  `mapstructure:",squash"`
	InitialWaterAppliedL float64 `mapstructure:"initial_water_applied_l"`
	RestoreTotal         bool    `mapstructure:"restore_total"`
}

type Site struct {
	Latitude    float64       `mapstructure:"latitude"`
	Longitude   float64       `mapstructure:"longitude"`
	Timezone    string        `mapstructure:"timezone"`
	NTPServer   string        `mapstructure:"ntp_server"`
	NTPTimeout  time.Duration `mapstructure:"ntp_timeout"`
	GPSEnabled  bool          `mapstructure:"gps_enabled"`
	GPSDAddress string        `mapstructure:"gpsd_address"`
	GPSMaxAge   time.Duration `mapstructure:"gps_max_age"`
}

// Coordinates returns the configured default position.
func (s Site) Coordinates() models.Coordinates {
	return models.Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Location resolves Timezone, falling back to UTC.
func (s Site) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Scheduler struct {
	SolarDelay    time.Duration `mapstructure:"solar_delay"`
	WeatherDelay  time.Duration `mapstructure:"weather_delay"`
	BalanceDelay  time.Duration `mapstructure:"balance_delay"`
	DecisionDelay time.Duration `mapstructure:"decision_delay"`
	Period        time.Duration `mapstructure:"period"`
}

type Solar struct {
	Mode      string        `mapstructure:"mode"`
	LowDeg    float64       `mapstructure:"low_deg"`
	HighDeg   float64       `mapstructure:"high_deg"`
	Span      time.Duration `mapstructure:"span"`
	Step      time.Duration `mapstructure:"step"`
	CoarseGap time.Duration `mapstructure:"coarse_gap"`
}

type Hardware struct {
	Mode string `mapstructure:"mode"`
}

type Sensors struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	DHTPin         int           `mapstructure:"dht_pin"`
	WaterPin       int           `mapstructure:"water_pin"`
	OneWireDir     string        `mapstructure:"onewire_dir"`
	Ground1ID      string        `mapstructure:"ground1_id"`
	Ground2ID      string        `mapstructure:"ground2_id"`
	AirTempOffsetC float64       `mapstructure:"air_temp_offset_c"`
	Ground1OffsetC float64       `mapstructure:"ground1_offset_c"`
	Ground2OffsetC float64       `mapstructure:"ground2_offset_c"`
}

// RelayChannel maps a logical relay number to a BCM pin.
type RelayChannel struct {
	Channel int `mapstructure:"channel"`
	Pin     int `mapstructure:"pin"`
}

type Relays struct {
	Channels          []RelayChannel `mapstructure:"channels"`
	ActiveLow         bool           `mapstructure:"active_low"`
	IrrigationChannel int            `mapstructure:"irrigation_channel"`
	Stdin             bool           `mapstructure:"stdin"`
}

type Weather struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ForecastDays    int           `mapstructure:"forecast_days"`
	HistoryDays     int           `mapstructure:"history_days"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
	StoreHistory    bool          `mapstructure:"store_history"`
	HistoryBackfill bool          `mapstructure:"history_backfill"`
}

type Handoff struct {
	Dir string `mapstructure:"dir"`
}

type DB struct {
	Path string `mapstructure:"path"`
}

type HTTP struct {
	Port       string        `mapstructure:"port"`
	WSInterval time.Duration `mapstructure:"ws_interval"`
}

type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type MQTT struct {
	Enabled      bool          `mapstructure:"enabled"`
	Broker       string        `mapstructure:"broker"`
	ClientID     string        `mapstructure:"client_id"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	CommandTopic string        `mapstructure:"command_topic"`
	EventTopic   string        `mapstructure:"event_topic"`
	QoS          byte          `mapstructure:"qos"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
	DedupSize    int           `mapstructure:"dedup_size"`
}

type Influx struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Org      string        `mapstructure:"org"`
	Bucket   string        `mapstructure:"bucket"`
	Site     string        `mapstructure:"site"`
	Interval time.Duration `mapstructure:"interval"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// Load reads the file at path (or configs/config.yml when path is empty),
// applies defaults and environment overrides, and validates the result.
// A missing default config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("garden.flow_rate_l_per_min", 16.0)
	v.SetDefault("garden.area_m2", 10.0)
	v.SetDefault("garden.baseline_l_per_m2_per_day", 5.0)
	v.SetDefault("garden.demo_mode", false)
	v.SetDefault("garden.demo_precip_cap_mm", 2.0)
	v.SetDefault("garden.initial_water_applied_l", 0.0)
	v.SetDefault("garden.restore_total", false)

	v.SetDefault("site.latitude", 45.365977)
	v.SetDefault("site.longitude", -75.602712)
	v.SetDefault("site.timezone", "America/New_York")
	v.SetDefault("site.ntp_server", "time.google.com")
	v.SetDefault("site.ntp_timeout", 5*time.Second)
	v.SetDefault("site.gps_enabled", true)
	v.SetDefault("site.gpsd_address", "localhost:2947")
	v.SetDefault("site.gps_max_age", 10*time.Minute)

	v.SetDefault("scheduler.solar_delay", 0*time.Second)
	v.SetDefault("scheduler.weather_delay", 20*time.Second)
	v.SetDefault("scheduler.balance_delay", 35*time.Second)
	v.SetDefault("scheduler.decision_delay", 40*time.Second)
	v.SetDefault("scheduler.period", time.Minute)

	v.SetDefault("solar.mode", SolarScan)
	v.SetDefault("solar.low_deg", 10.0)
	v.SetDefault("solar.high_deg", 11.0)
	v.SetDefault("solar.span", 24*time.Hour)
	v.SetDefault("solar.step", time.Second)
	v.SetDefault("solar.coarse_gap", time.Minute)

	v.SetDefault("hardware.mode", HardwareGPIO)

	v.SetDefault("sensors.poll_interval", time.Second)
	v.SetDefault("sensors.dht_pin", 3)
	v.SetDefault("sensors.water_pin", 2)
	v.SetDefault("sensors.onewire_dir", "/sys/bus/w1/devices")
	v.SetDefault("sensors.ground1_id", "28-3c01f0963fbc")
	v.SetDefault("sensors.ground2_id", "28-3c01f0965cb3")
	v.SetDefault("sensors.air_temp_offset_c", -4.5)
	v.SetDefault("sensors.ground1_offset_c", -3.0)
	v.SetDefault("sensors.ground2_offset_c", -5.0)

	v.SetDefault("relays.channels", []map[string]any{
		{"channel": 1, "pin": 6},
		{"channel": 2, "pin": 13},
		{"channel": 3, "pin": 19},
		{"channel": 4, "pin": 26},
	})
	v.SetDefault("relays.active_low", true)
	v.SetDefault("relays.irrigation_channel", 1)
	v.SetDefault("relays.stdin", false)

	v.SetDefault("weather.base_url", "https://api.weatherapi.com/v1")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.forecast_days", 3)
	v.SetDefault("weather.history_days", 3)
	v.SetDefault("weather.timeout", 10*time.Second)
	v.SetDefault("weather.max_retries", 3)
	v.SetDefault("weather.breaker_failures", 3)
	v.SetDefault("weather.breaker_open_for", 5*time.Minute)
	v.SetDefault("weather.store_history", true)
	v.SetDefault("weather.history_backfill", true)

	v.SetDefault("handoff.dir", "data")
	v.SetDefault("db.path", "garden.db")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.ws_interval", 2*time.Second)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "garden-controller")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.command_topic", "garden/relay/cmd")
	v.SetDefault("mqtt.event_topic", "garden/irrigation/events")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.dedup_ttl", 10*time.Minute)
	v.SetDefault("mqtt.dedup_size", 1024)

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "garden")
	v.SetDefault("influx.bucket", "irrigation")
	v.SetDefault("influx.site", "garden")
	v.SetDefault("influx.interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the values the controller cannot run without.
func (c Config) Validate() error {
	g := c.Garden
	switch {
	case g.FlowRateLPerMin <= 0:
		return fmt.Errorf("%w: garden.flow_rate_l_per_min must be > 0", ErrInvalid)
	case g.AreaM2 <= 0:
		return fmt.Errorf("%w: garden.area_m2 must be > 0", ErrInvalid)
	case g.BaselineLPerM2PerDay < 0:
		return fmt.Errorf("%w: garden.baseline_l_per_m2_per_day must be >= 0", ErrInvalid)
	case g.DemoPrecipCapMM < 0:
		return fmt.Errorf("%w: garden.demo_precip_cap_mm must be >= 0", ErrInvalid)
	case g.InitialWaterAppliedL < 0:
		return fmt.Errorf("%w: garden.initial_water_applied_l must be >= 0", ErrInvalid)
	}

	if c.Hardware.Mode != HardwareGPIO && c.Hardware.Mode != HardwareSimulated {
		return fmt.Errorf("%w: hardware.mode %q", ErrInvalid, c.Hardware.Mode)
	}
	if c.Solar.Mode != SolarScan && c.Solar.Mode != SolarBisect {
		return fmt.Errorf("%w: solar.mode %q", ErrInvalid, c.Solar.Mode)
	}
	if c.Solar.LowDeg >= c.Solar.HighDeg {
		return fmt.Errorf("%w: solar.low_deg must be below solar.high_deg", ErrInvalid)
	}
	if c.Solar.Step <= 0 || c.Solar.Span < c.Solar.Step {
		return fmt.Errorf("%w: solar.step must be > 0 and <= solar.span", ErrInvalid)
	}

	s := c.Scheduler
	if s.Period <= 0 {
		return fmt.Errorf("%w: scheduler.period must be > 0", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"solar_delay":    s.SolarDelay,
		"weather_delay":  s.WeatherDelay,
		"balance_delay":  s.BalanceDelay,
		"decision_delay": s.DecisionDelay,
	} {
		if d < 0 || d >= s.Period {
			return fmt.Errorf("%w: scheduler.%s must be within [0, period)", ErrInvalid, name)
		}
	}

	if len(c.Relays.Channels) == 0 {
		return fmt.Errorf("%w: relays.channels is empty", ErrInvalid)
	}
	seen := make(map[int]bool, len(c.Relays.Channels))
	for _, ch := range c.Relays.Channels {
		if ch.Channel <= 0 || ch.Pin < 0 || seen[ch.Channel] {
			return fmt.Errorf("%w: relay channel %d pin %d", ErrInvalid, ch.Channel, ch.Pin)
		}
		seen[ch.Channel] = true
	}
	if !seen[c.Relays.IrrigationChannel] {
		return fmt.Errorf("%w: relays.irrigation_channel %d is not configured", ErrInvalid, c.Relays.IrrigationChannel)
	}
	return nil
}
