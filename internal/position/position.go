// Package position resolves where and when the controller is, degrading
// from a GPS fix to default coordinates with network time to the local clock.
package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
)

// Fix sources.
const (
	SourceGPS   = "gps"
	SourceNTP   = "ntp"
	SourceLocal = "local"
)

// ErrNoFix is returned by providers that currently have nothing to offer.
var ErrNoFix = errors.New("no position fix")

// Fix is a coordinate and a timestamp with the provider that produced it.
type Fix struct {
	models.Coordinates
	Time   time.Time
	Source string
}

// Provider yields a Fix or an error meaning "try the next provider".
type Provider interface {
	Name() string
	Locate(ctx context.Context) (Fix, error)
}

// Chain tries providers in order and falls back to the default coordinates
// and the local clock. Locate never fails.
type Chain struct {
	providers []Provider
	fallback  models.Coordinates
	now       func() time.Time
	log       *logger.Logger
}

// NewChain builds a chain. log may be nil.
func NewChain(fallback models.Coordinates, log *logger.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, fallback: fallback, now: time.Now, log: log}
}

// Locate returns the first successful provider fix.
func (c *Chain) Locate(ctx context.Context) Fix {
	for _, p := range c.providers {
		if ctx.Err() != nil {
			break
		}
		fix, err := tryProvider(ctx, p)
		if err == nil {
			return fix
		}
		if c.log != nil {
			c.log.Debugw("position_provider_failed", "provider", p.Name(), "err", err)
		}
	}
	return Fix{Coordinates: c.fallback, Time: c.now(), Source: SourceLocal}
}

func tryProvider(ctx context.Context, p Provider) (fix Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Locate(ctx)
}
