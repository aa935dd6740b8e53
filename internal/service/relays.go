package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"garden_irrigation/internal/clock"
	"garden_irrigation/internal/logger"
	"garden_irrigation/internal/models"
	"garden_irrigation/internal/relay"
	"garden_irrigation/internal/repository"
)

// ErrNoRelays is returned when the controller runs without a relay bank.
var ErrNoRelays = errors.New("relay bank not configured")

// RelayService applies operator commands. Every source goes through the
// queue so commands are applied one at a time in arrival order.
type RelayService struct {
	relays    relay.Actuator
	sprinkler Sprinkler
	queue     *relay.Queue
	eventRepo repository.EventRepo
	rec       Recorder
	clock     clock.Clock
	log       *logger.Logger
}

func NewRelayService(eventRepo repository.EventRepo, deps Deps) *RelayService {
	deps = deps.withDefaults()
	return &RelayService{
		relays:    deps.Relays,
		sprinkler: deps.Sprinkler,
		queue:     deps.Queue,
		eventRepo: eventRepo,
		rec:       deps.Recorder,
		clock:     deps.Clock,
		log:       deps.Log,
	}
}

// Submit enqueues cmd and waits for the queue consumer to apply it. Without
// a queue the command is applied directly.
func (s *RelayService) Submit(ctx context.Context, cmd relay.Command) error {
	if s.queue == nil {
		return s.Apply(ctx, cmd)
	}
	return s.queue.Submit(ctx, cmd)
}

// Apply switches the relay and records the command. It is the queue consumer.
// Switching the sprinkler channel OFF also ends a running hold, so only the
// water actually delivered is credited.
func (s *RelayService) Apply(ctx context.Context, cmd relay.Command) error {
	if s.relays == nil {
		return ErrNoRelays
	}
	if err := s.relays.Set(cmd.Channel, cmd.On); err != nil {
		s.log.Warnw("relay_command_failed", "command", cmd.String(), "source", cmd.Source, "err", err)
		return err
	}
	if !cmd.On && s.sprinkler != nil && cmd.Channel == s.sprinkler.Channel() && s.sprinkler.Stop() {
		s.log.Infow("irrigation_interrupted", "channel", cmd.Channel, "source", cmd.Source)
	}
	s.rec.ObserveRelays(s.relays.States())
	s.log.Infow("relay_command", "channel", cmd.Channel, "state", relay.StateWord(cmd.On), "source", cmd.Source)

	if s.eventRepo != nil {
		err := s.eventRepo.Append(ctx, models.IrrigationEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  s.clock.Now().UTC(),
			Type:        models.EventRelayCommand,
			Description: fmt.Sprintf("relay %s (%s)", cmd, cmd.Source),
			Metadata:    map[string]any{"channel": cmd.Channel, "on": cmd.On, "source": cmd.Source},
		})
		if err != nil {
			s.log.Warnw("event_append_failed", "type", models.EventRelayCommand, "err", err)
		}
	}
	return nil
}

// States lists the relay channels in ascending order.
func (s *RelayService) States() []models.RelayState {
	if s.relays == nil {
		return nil
	}
	return s.relays.States()
}
