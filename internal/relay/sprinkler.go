package relay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"garden_irrigation/internal/clock"
)

// Hold describes one continuous ON period of the sprinkler channel.
type Hold struct {
	Channel    int       `json:"channel"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	RequestedL float64   `json:"requested_l"`
	DeliveredL float64   `json:"delivered_l"`
	Triggers   int       `json:"triggers"`
	Completed  bool      `json:"completed"`
}

// Sprinkler runs at most one hold on its channel. A trigger that arrives
// while a hold is in progress extends it to the union of both windows.
type Sprinkler struct {
	act     Actuator
	channel int
	flow    float64
	clock   clock.Clock

	mu         sync.Mutex
	active     bool
	startedAt  time.Time
	deadline   time.Time
	requestedL float64
	triggers   int
	stop       chan struct{}
}

// NewSprinkler drives channel at flowLPerMin. clk may be nil for the wall clock.
func NewSprinkler(act Actuator, channel int, flowLPerMin float64, clk clock.Clock) *Sprinkler {
	if clk == nil {
		clk = clock.Wall
	}
	return &Sprinkler{act: act, channel: channel, flow: flowLPerMin, clock: clk}
}

// Channel is the relay channel the sprinkler drives.
func (s *Sprinkler) Channel() int { return s.channel }

// Active reports whether a hold is in progress.
func (s *Sprinkler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Outstanding returns the liters committed to the running hold. They are
// credited only when the hold ends. It is zero when the sprinkler is idle.
func (s *Sprinkler) Outstanding() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0
	}
	return s.requestedL
}

// Stop ends the running hold early. The owner's Run returns an incomplete
// Hold crediting flow*elapsed. It reports whether a hold was running.
func (s *Sprinkler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.stop == nil {
		return false
	}
	close(s.stop)
	s.stop = nil
	return true
}

// Run switches the channel ON for d, then OFF. When a hold is already in
// progress the request is merged into it and Run returns at once with
// owner=false; the owner's Hold then accounts for the merged liters.
// Cancelling ctx or calling Stop switches the relay OFF early and delivers
// flow*elapsed.
func (s *Sprinkler) Run(ctx context.Context, liters float64, d time.Duration) (hold Hold, owner bool, err error) {
	s.mu.Lock()
	now := s.clock.Now()
	if s.active {
		if end := now.Add(d); end.After(s.deadline) {
			s.deadline = end
		}
		s.requestedL += liters
		s.triggers++
		s.mu.Unlock()
		return Hold{}, false, nil
	}
	if err := s.act.Set(s.channel, true); err != nil {
		s.mu.Unlock()
		return Hold{}, false, fmt.Errorf("sprinkler on: %w", err)
	}
	s.active = true
	s.startedAt, s.deadline = now, now.Add(d)
	s.requestedL, s.triggers = liters, 1
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.finish(false)
		case <-stop:
			return s.finish(false)
		case <-timer.C():
			s.mu.Lock()
			remaining := s.deadline.Sub(s.clock.Now())
			s.mu.Unlock()
			if remaining > 0 {
				timer.Reset(remaining)
				continue
			}
			return s.finish(true)
		}
	}
}

// finish switches OFF under the lock so a new trigger cannot interleave.
func (s *Sprinkler) finish(completed bool) (Hold, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	offErr := s.act.Set(s.channel, false)

	h := Hold{
		Channel:    s.channel,
		StartedAt:  s.startedAt,
		EndedAt:    now,
		RequestedL: s.requestedL,
		Triggers:   s.triggers,
		Completed:  completed,
	}
	switch {
	case completed && s.triggers == 1:
		h.DeliveredL = s.requestedL
	case completed:
		h.DeliveredL = math.Min(s.requestedL, s.flow*s.deadline.Sub(s.startedAt).Minutes())
	default:
		h.DeliveredL = math.Min(s.requestedL, s.flow*now.Sub(s.startedAt).Minutes())
	}
	s.active = false
	s.stop = nil

	if offErr != nil {
		return h, true, fmt.Errorf("sprinkler off: %w", offErr)
	}
	return h, true, nil
}
