package position

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"

	"garden_irrigation/internal/models"
)

// NTP pairs the default coordinates with network time.
type NTP struct {
	server string
	coords models.Coordinates
	query  func(server string) (time.Time, error)
}

// NewNTP returns a provider querying server with the given timeout.
func NewNTP(server string, timeout time.Duration, coords models.Coordinates) *NTP {
	return &NTP{
		server: server,
		coords: coords,
		query: func(server string) (time.Time, error) {
			resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
			if err != nil {
				return time.Time{}, err
			}
			if err := resp.Validate(); err != nil {
				return time.Time{}, err
			}
			return time.Now().Add(resp.ClockOffset), nil
		},
	}
}

func (n *NTP) Name() string { return SourceNTP }

func (n *NTP) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	t, err := n.query(n.server)
	if err != nil {
		return Fix{}, fmt.Errorf("ntp query %s: %w", n.server, err)
	}
	return Fix{Coordinates: n.coords, Time: t, Source: SourceNTP}, nil
}
