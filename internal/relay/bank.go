package relay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"garden_irrigation/internal/models"
)

// Actuator switches relay channels. Set is idempotent.
type Actuator interface {
	Set(channel int, on bool) error
	States() []models.RelayState
}

// Driver writes a logic level to a BCM pin.
type Driver interface {
	Setup(pin int, high bool) error
	Write(pin int, high bool) error
}

// Bank maps logical channels to pins and remembers their state.
type Bank struct {
	driver    Driver
	activeLow bool
	now       func() time.Time

	mu     sync.Mutex
	pins   map[int]int
	states map[int]models.RelayState
}

// NewBank configures every pin as an output in the OFF position.
func NewBank(driver Driver, pins map[int]int, activeLow bool) (*Bank, error) {
	b := &Bank{
		driver:    driver,
		activeLow: activeLow,
		now:       time.Now,
		pins:      make(map[int]int, len(pins)),
		states:    make(map[int]models.RelayState, len(pins)),
	}
	for ch, pin := range pins {
		if err := driver.Setup(pin, b.level(false)); err != nil {
			return nil, fmt.Errorf("setup relay %d on pin %d: %w", ch, pin, err)
		}
		b.pins[ch] = pin
		b.states[ch] = models.RelayState{Channel: ch, Pin: pin}
	}
	return b, nil
}

func (b *Bank) level(on bool) bool {
	if b.activeLow {
		return !on
	}
	return on
}

// Set switches channel. Unknown channels return ErrInvalidChannel and leave
// every relay untouched.
func (b *Bank) Set(channel int, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pin, ok := b.pins[channel]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	if err := b.driver.Write(pin, b.level(on)); err != nil {
		return fmt.Errorf("write relay %d: %w", channel, err)
	}
	st := b.states[channel]
	if st.On != on || st.ChangedAt.IsZero() {
		st.On, st.ChangedAt = on, b.now()
		b.states[channel] = st
	}
	return nil
}

// States lists channels in ascending order.
func (b *Bank) States() []models.RelayState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.RelayState, 0, len(b.states))
	for _, st := range b.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Has reports whether channel is configured.
func (b *Bank) Has(channel int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pins[channel]
	return ok
}

// AllOff switches every channel OFF and returns the joined write errors.
func (b *Bank) AllOff() error {
	b.mu.Lock()
	channels := make([]int, 0, len(b.pins))
	for ch := range b.pins {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	var errs []error
	for _, ch := range channels {
		if err := b.Set(ch, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
