package position

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stratoberry/go-gpsd"

	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
)

// GPS caches the latest 2D/3D fix reported by gpsd.
type GPS struct {
	addr   string
	maxAge time.Duration
	now    func() time.Time
	log    *logger.Logger

	mu     sync.RWMutex
	coords models.Coordinates
	seenAt time.Time
}

// NewGPS returns a provider fed by a gpsd daemon at addr.
// Fixes older than maxAge are ignored.
func NewGPS(addr string, maxAge time.Duration, log *logger.Logger) *GPS {
	return &GPS{addr: addr, maxAge: maxAge, now: time.Now, log: log}
}

func (g *GPS) Name() string { return SourceGPS }

// Locate returns the cached fix stamped with the local clock, which gpsd
// keeps disciplined when it has a fix.
func (g *GPS) Locate(context.Context) (Fix, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	now := g.now()
	if g.seenAt.IsZero() || now.Sub(g.seenAt) > g.maxAge {
		return Fix{}, ErrNoFix
	}
	return Fix{Coordinates: g.coords, Time: now, Source: SourceGPS}, nil
}

// Observe records a fix. mode follows gpsd: 2 is 2D, 3 is 3D.
func (g *GPS) Observe(mode int, lat, lon float64) {
	if mode < int(gpsd.Mode2D) {
		return
	}
	g.mu.Lock()
	g.coords = models.Coordinates{Latitude: lat, Longitude: lon}
	g.seenAt = g.now()
	g.mu.Unlock()
}

// Run keeps a gpsd watch open until ctx is canceled, redialing with
// exponential backoff.
func (g *GPS) Run(ctx context.Context) {
	for ctx.Err() == nil {
		var session *gpsd.Session
		dial := func() error {
			s, err := gpsd.Dial(g.addr)
			if err != nil {
				if g.log != nil {
					g.log.Debugw("gpsd_dial_failed", "addr", g.addr, "err", err)
				}
				return err
			}
			session = s
			return nil
		}
		expo := backoff.NewExponentialBackOff()
		expo.MaxElapsedTime = 0
		if err := backoff.Retry(dial, backoff.WithContext(expo, ctx)); err != nil {
			return
		}

		session.AddFilter("TPV", func(r interface{}) {
			tpv, ok := r.(*gpsd.TPVReport)
			if !ok {
				return
			}
			g.Observe(int(tpv.Mode), tpv.Lat, tpv.Lon)
		})
		if g.log != nil {
			g.log.Infow("gpsd_connected", "addr", g.addr)
		}

		select {
		case <-ctx.Done():
			return
		case <-session.Watch():
			if g.log != nil {
				g.log.Warnw("gpsd_watch_ended", "addr", g.addr)
			}
		}
	}
}
