package sensors

import "github.com/stianeikeland/go-rpio/v4"

// WaterContact reads a digital water sensor; a high level means water.
type WaterContact struct {
	pin rpio.Pin
}

// NewWaterContact configures bcm as an input.
func NewWaterContact(bcm int) *WaterContact {
	pin := rpio.Pin(bcm)
	pin.Input()
	return &WaterContact{pin: pin}
}

func (w *WaterContact) WaterPresent() (bool, error) {
	return w.pin.Read() == rpio.High, nil
}
