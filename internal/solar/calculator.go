// Package solar finds the daily window in which the sun elevation lies in the
// irrigation band and publishes it for the relay decision.
package solar

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"garden_irrigation/internal/models"
	"garden_irrigation/internal/position"
)

// Search modes.
const (
	ModeScan   = "scan"
	ModeBisect = "bisect"
)

// Locator yields a position and timestamp. It never fails.
type Locator interface {
	Locate(ctx context.Context) position.Fix
}

// Sink receives the coordinate/countdown handoff for other processes.
type Sink interface {
	WriteCoordinates(c models.Coordinates) error
	WriteCountdown(seconds int64) error
	WriteReport(first, last time.Time) error
}

// Options tune the search.
type Options struct {
	Band     Band
	Span     time.Duration
	Step     time.Duration
	Gap      time.Duration
	Mode     string
	Location *time.Location
}

// DefaultOptions is the 24 hour, one second scan of the [10°, 11°) band.
func DefaultOptions() Options {
	return Options{
		Band:     Band{Low: 10, High: 11},
		Span:     24 * time.Hour,
		Step:     time.Second,
		Gap:      time.Minute,
		Mode:     ModeScan,
		Location: time.UTC,
	}
}

// Calculator recomputes the solar window on demand.
type Calculator struct {
	locator   Locator
	elevation ElevationFunc
	sink      Sink
	opts      Options
}

// NewCalculator builds a calculator. elev defaults to Elevation; sink may be nil.
func NewCalculator(locator Locator, elev ElevationFunc, sink Sink, opts Options) *Calculator {
	if elev == nil {
		elev = Elevation
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Calculator{locator: locator, elevation: elev, sink: sink, opts: opts}
}

// Refresh locates the controller, searches the next span for the band and
// writes the handoff. The returned window is valid even when err reports a
// handoff failure.
func (c *Calculator) Refresh(ctx context.Context) (models.SolarWindow, error) {
	fix := c.locator.Locate(ctx)
	now := fix.Time.In(c.opts.Location)

	w := models.SolarWindow{
		Position:   fix.Coordinates,
		Source:     fix.Source,
		ComputedAt: now,
	}
	if err := ctx.Err(); err != nil {
		return w, err
	}

	elev := func(t time.Time) float64 { return c.elevation(fix.Coordinates, t) }
	grid := Grid{Start: now, Span: c.opts.Span, Step: c.opts.Step}

	var (
		first, last time.Time
		ok          bool
	)
	if c.opts.Mode == ModeBisect {
		first, last, ok = Bisect(elev, grid, c.opts.Band, c.opts.Gap)
	} else {
		first, last, ok = Scan(elev, grid, c.opts.Band)
	}
	if ok {
		w.Start, w.End = &first, &last
	}

	if c.sink == nil {
		return w, nil
	}
	return w, c.publish(w, now)
}

func (c *Calculator) publish(w models.SolarWindow, now time.Time) error {
	var errs []error
	if err := c.sink.WriteCoordinates(w.Position); err != nil {
		errs = append(errs, fmt.Errorf("write coordinates: %w", err))
	}
	if w.Start != nil {
		if err := c.sink.WriteCountdown(Countdown(now, *w.Start)); err != nil {
			errs = append(errs, fmt.Errorf("write countdown: %w", err))
		}
		if err := c.sink.WriteReport(*w.Start, *w.End); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Countdown is the whole seconds from now until start, never negative.
func Countdown(now, start time.Time) int64 {
	return int64(math.Max(0, math.Floor(start.Sub(now).Seconds())))
}
