package relay

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// GPIODriver drives BCM pins through /dev/gpiomem. rpio.Open must have succeeded.
type GPIODriver struct{}

func (GPIODriver) Setup(pin int, high bool) error {
	p := rpio.Pin(pin)
	p.Output()
	writeLevel(p, high)
	return nil
}

func (GPIODriver) Write(pin int, high bool) error {
	writeLevel(rpio.Pin(pin), high)
	return nil
}

func writeLevel(p rpio.Pin, high bool) {
	if high {
		p.High()
	} else {
		p.Low()
	}
}

// MemoryDriver records pin levels. It backs simulated hardware and tests.
type MemoryDriver struct {
	mu     sync.Mutex
	levels map[int]bool
	writes int
}

func NewMemoryDriver() *MemoryDriver { return &MemoryDriver{levels: make(map[int]bool)} }

func (m *MemoryDriver) Setup(pin int, high bool) error { return m.Write(pin, high) }

func (m *MemoryDriver) Write(pin int, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = high
	m.writes++
	return nil
}

// Level returns the last written level of pin.
func (m *MemoryDriver) Level(pin int) (high, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	high, ok = m.levels[pin]
	return high, ok
}
