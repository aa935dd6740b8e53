package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	garden "garden_irrigation"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/repository"
	"garden_irrigation/internal/weather"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// ErrInvalidQuery wraps every filter validation failure.
var ErrInvalidQuery = errors.New("invalid query")

var (
	errInvalidTimeRange = fmt.Errorf("%w: From must be <= To", ErrInvalidQuery)
	errInvalidDate      = fmt.Errorf("%w: dates use YYYY-MM-DD", ErrInvalidQuery)
	errInvalidKind      = fmt.Errorf("%w: kind is current, forecast or history", ErrInvalidQuery)
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.IrrigationEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

type WeatherHistoryService struct {
	weatherRepo repository.WeatherRepo
}

func NewWeatherHistoryService(weatherRepo repository.WeatherRepo) *WeatherHistoryService {
	return &WeatherHistoryService{weatherRepo: weatherRepo}
}

// ListWeather validates the query and lists matching weather rows.
func (s *WeatherHistoryService) ListWeather(ctx context.Context, q garden.WeatherHistoryQuery) ([]models.WeatherRecord, error) {
	f, err := toWeatherFilter(q)
	if err != nil {
		return nil, err
	}
	return s.weatherRepo.List(ctx, f)
}

func toWeatherFilter(q garden.WeatherHistoryQuery) (repository.WeatherFilter, error) {
	f := repository.WeatherFilter{
		From:     strings.TrimSpace(q.From),
		To:       strings.TrimSpace(q.To),
		Kind:     strings.ToLower(strings.TrimSpace(q.Kind)),
		Location: strings.TrimSpace(q.Location),
		Limit:    q.Limit,
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(weather.DateLayout, d); err != nil {
			return repository.WeatherFilter{}, errInvalidDate
		}
	}
	// ISO dates compare correctly as strings.
	if f.From != "" && f.To != "" && f.From > f.To {
		return repository.WeatherFilter{}, errInvalidTimeRange
	}
	switch f.Kind {
	case "", models.WeatherKindCurrent, models.WeatherKindForecast, models.WeatherKindHistory:
	default:
		return repository.WeatherFilter{}, errInvalidKind
	}
	if f.Limit < 0 {
		f.Limit = 0
	}
	return f, nil
}
