package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Garden.FlowRateLPerMin != 16 || cfg.Garden.AreaM2 != 10 || cfg.Garden.BaselineLPerM2PerDay != 5 {
		t.Fatalf("unexpected garden defaults: %+v", cfg.Garden)
	}
	if cfg.Garden.DemoPrecipCapMM != 2 {
		t.Fatalf("demo cap = %v, want 2", cfg.Garden.DemoPrecipCapMM)
	}
	if cfg.Scheduler.WeatherDelay != 20*time.Second || cfg.Scheduler.DecisionDelay != 40*time.Second {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if len(cfg.Relays.Channels) != 4 || cfg.Relays.Channels[3].Pin != 26 {
		t.Fatalf("unexpected relay defaults: %+v", cfg.Relays.Channels)
	}
	if cfg.Sensors.AirTempOffsetC != -4.5 || cfg.Sensors.Ground1OffsetC != -3 || cfg.Sensors.Ground2OffsetC != -5 {
		t.Fatalf("unexpected calibration defaults: %+v", cfg.Sensors)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_FileOverridesAndEnv(t *testing.T) {
	path := writeConfig(t, `
garden:
  area_m2: 25
  demo_mode: true
relays:
  irrigation_channel: 2
  channels:
    - { channel: 1, pin: 5 }
    - { channel: 2, pin: 12 }
`)
	t.Setenv("GARDEN_WEATHER_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Garden.AreaM2 != 25 || !cfg.Garden.DemoMode {
		t.Fatalf("file values not applied: %+v", cfg.Garden)
	}
	if cfg.Weather.APIKey != "secret" {
		t.Fatalf("env override not applied: %q", cfg.Weather.APIKey)
	}
	if len(cfg.Relays.Channels) != 2 || cfg.Relays.Channels[1].Pin != 12 {
		t.Fatalf("relay channels = %+v", cfg.Relays.Channels)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero_flow", func(c *Config) { c.Garden.FlowRateLPerMin = 0 }},
		{"negative_area", func(c *Config) { c.Garden.AreaM2 = -1 }},
		{"negative_cap", func(c *Config) { c.Garden.DemoPrecipCapMM = -1 }},
		{"unknown_hardware", func(c *Config) { c.Hardware.Mode = "arduino" }},
		{"inverted_band", func(c *Config) { c.Solar.LowDeg = 12 }},
		{"delay_past_period", func(c *Config) { c.Scheduler.DecisionDelay = 2 * time.Minute }},
		{"duplicate_channel", func(c *Config) {
			c.Relays.Channels = append(c.Relays.Channels, RelayChannel{Channel: 1, Pin: 21})
		}},
		{"irrigation_channel_missing", func(c *Config) { c.Relays.IrrigationChannel = 9 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			c.Relays.Channels = append([]RelayChannel(nil), base.Relays.Channels...)
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSite_LocationFallsBackToUTC(t *testing.T) {
	if loc := (Site{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
