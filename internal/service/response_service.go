package service

import (
	"time"

	"garden_irrigation/internal/models"
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "IRRIGATION_START", "IRRIGATION_STOP", "DECISION_SKIP", "RELAY_COMMAND", "ERROR"
}

// IrrigationConfig is the part of the configuration the cycle tasks need.
type IrrigationConfig struct {
	Garden          models.GardenConfig
	DefaultCoords   models.Coordinates
	Location        *time.Location // site time zone; "today" for precipitation is taken here
	ForecastDays    int
	HistoryDays     int
	StoreHistory    bool
	HistoryBackfill bool
}
