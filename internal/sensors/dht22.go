package sensors

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const (
	dhtMinInterval = 2 * time.Second
	dhtIdleTimeout = 8 * time.Millisecond
	dhtBits        = 40
	dhtPulseBuffer = 50
)

// DHT22 bit-bangs an AM2302/DHT22 on a BCM pin. Reads closer together than
// the sensor's two second sampling period return the previous value.
type DHT22 struct {
	pin rpio.Pin

	mu     sync.Mutex
	lastAt time.Time
	temp   float64
	hum    float64
}

func NewDHT22(bcm int) *DHT22 { return &DHT22{pin: rpio.Pin(bcm)} }

func (d *DHT22) ReadAir() (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastAt.IsZero() && time.Since(d.lastAt) < dhtMinInterval {
		return d.temp, d.hum, nil
	}

	syncCycles, dataCycles, n := d.capture()
	bits, err := pulsesToBits(syncCycles, dataCycles, n)
	if err != nil {
		return 0, 0, err
	}
	t, h, err := decodeDHT22(bits)
	if err != nil {
		return 0, 0, err
	}
	d.temp, d.hum, d.lastAt = t, h, time.Now()
	return t, h, nil
}

// capture triggers a transmission and records the high/low pulse lengths.
func (d *DHT22) capture() (syncCycles, dataCycles []uint16, n int) {
	pin := d.pin
	pin.Input()
	time.Sleep(time.Millisecond)
	pin.Output()
	pin.Low()
	time.Sleep(1100 * time.Microsecond)
	pin.Input()

	syncCycles, dataCycles = make([]uint16, dhtPulseBuffer), make([]uint16, dhtPulseBuffer)
	level := rpio.Low
	lastChange := time.Now()
	for {
		now := time.Now()
		if pin.Read() != level {
			elapsed := uint16(now.Sub(lastChange).Microseconds())
			if level == rpio.Low {
				level = rpio.High
				syncCycles[n] = elapsed
			} else {
				level = rpio.Low
				dataCycles[n] = elapsed
				n++
				if n >= dhtPulseBuffer {
					break
				}
			}
			lastChange = now
		} else if now.Sub(lastChange) >= dhtIdleTimeout {
			break
		}
	}
	return syncCycles, dataCycles, n
}

// pulsesToBits keeps the last 40 pulses and classifies each data pulse
// against the mean sync pulse.
func pulsesToBits(syncCycles, dataCycles []uint16, n int) ([5]byte, error) {
	var data [5]byte
	if n < dhtBits {
		return data, fmt.Errorf("%w: dht22 timeout after %d pulses", ErrNotReady, n)
	}
	offset := n - dhtBits
	var avg float64
	for i := offset; i < n; i++ {
		avg += float64(syncCycles[i])
	}
	avg /= dhtBits

	for i := 0; i < dhtBits; i++ {
		if float64(dataCycles[i+offset]) > avg {
			data[i/8] |= 1 << (7 - i%8)
		}
	}
	return data, nil
}

// decodeDHT22 validates the checksum and converts the payload.
func decodeDHT22(data [5]byte) (tempC, humidity float64, err error) {
	if data[4] != data[0]+data[1]+data[2]+data[3] {
		return 0, 0, fmt.Errorf("%w: dht22 checksum mismatch", ErrNotReady)
	}
	humidity = float64(uint16(data[0])<<8|uint16(data[1])) * 0.1
	tempC = float64(uint16(data[2]&0x7F)<<8|uint16(data[3])) * 0.1
	if data[2]&0x80 != 0 {
		tempC = -tempC
	}
	if tempC < -40 || tempC > 80 || humidity < 0 || humidity > 100 {
		return 0, 0, fmt.Errorf("%w: dht22 reading out of range (%.1f °C, %.1f %%)", ErrNotReady, tempC, humidity)
	}
	return tempC, humidity, nil
}
